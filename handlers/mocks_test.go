package handlers

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dkotenko/taskvault/models"
	"github.com/dkotenko/taskvault/tasks"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository keeps users in a map keyed by email.
type MockUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func setupMockUser(email, password string) *MockUserRepository {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	now := time.Now().UTC()
	repo.users[email] = &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return repo
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return sql.ErrNoRows
	}
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID.String() == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; !ok {
		return sql.ErrNoRows
	}
	m.users[user.Email] = user
	return nil
}

// MockTaskService serves tasks from a map; only what the handler tests need.
type MockTaskService struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
	err   error
}

func NewMockTaskService() *MockTaskService {
	return &MockTaskService{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *MockTaskService) add(task *models.Task) { m.tasks[task.ID] = task }

func (m *MockTaskService) Create(ctx context.Context, userID uuid.UUID, in tasks.CreateInput) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	now := time.Now().UTC()
	task := &models.Task{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  in.Category,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		Status:    models.TaskStatusActive,
		Type:      models.TaskTypeCustom,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tasks[task.ID] = task
	return task, nil
}

func (m *MockTaskService) List(ctx context.Context, userID uuid.UUID, f models.TaskFilters, s models.SortSpec, opts models.ListOptions) ([]models.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	out := []models.Task{}
	for _, task := range m.tasks {
		if task.UserID == userID {
			out = append(out, *task)
		}
	}
	return out, len(out), nil
}

func (m *MockTaskService) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrTaskNotFound
	}
	return task, nil
}

func (m *MockTaskService) Update(ctx context.Context, id uuid.UUID, in tasks.UpdateInput) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrTaskNotFound
	}
	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	task.UpdatedAt = time.Now().UTC()
	return task, nil
}

func (m *MockTaskService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.setStatus(id, models.TaskStatusDeleted)
}

func (m *MockTaskService) HardDelete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return tasks.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockTaskService) ToggleFavorite(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrTaskNotFound
	}
	task.IsFavorite = !task.IsFavorite
	return task, nil
}

func (m *MockTaskService) Archive(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if err := m.setStatus(id, models.TaskStatusArchived); err != nil {
		return nil, err
	}
	return m.tasks[id], nil
}

func (m *MockTaskService) Restore(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if err := m.setStatus(id, models.TaskStatusActive); err != nil {
		return nil, err
	}
	return m.tasks[id], nil
}

func (m *MockTaskService) setStatus(id uuid.UUID, status models.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return tasks.ErrTaskNotFound
	}
	task.Status = status
	return nil
}

func (m *MockTaskService) Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.TaskStats{}
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		stats.Total++
		if task.Status == models.TaskStatusActive {
			stats.Active++
		}
	}
	return stats, nil
}

func (m *MockTaskService) ByCategory(ctx context.Context, userID uuid.UUID, category string) ([]models.Task, error) {
	items, _, _ := m.List(ctx, userID, models.TaskFilters{}, models.SortSpec{}, models.ListOptions{})
	out := []models.Task{}
	for _, task := range items {
		if task.Category == category {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m *MockTaskService) Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Task, error) {
	items, _, err := m.List(ctx, userID, models.TaskFilters{}, models.SortSpec{}, models.ListOptions{})
	return items, err
}

func (m *MockTaskService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Task, error) {
	items, _, err := m.List(ctx, userID, models.TaskFilters{}, models.SortSpec{}, models.ListOptions{})
	return items, err
}

func (m *MockTaskService) Favorites(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	items, _, err := m.List(ctx, userID, models.TaskFilters{}, models.SortSpec{}, models.ListOptions{})
	return items, err
}
