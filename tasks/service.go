package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dkotenko/taskvault/models"
	"github.com/dkotenko/taskvault/query"
	"github.com/google/uuid"
)

// ErrTaskNotFound reports that the requested task does not exist. It is kept
// distinct from transport errors so callers can tell an absent row from a
// failed call.
var ErrTaskNotFound = errors.New("task not found")

// defines the task data-access operations consumed by the state store and
// the HTTP handlers
type ServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.Task, error)
	List(ctx context.Context, userID uuid.UUID, f models.TaskFilters, s models.SortSpec, opts models.ListOptions) ([]models.Task, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Task, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	ToggleFavorite(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Archive(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Restore(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error)
	ByCategory(ctx context.Context, userID uuid.UUID, category string) ([]models.Task, error)
	Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Task, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Task, error)
	Favorites(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
}

// Service executes one remote query per operation against the tasks table.
// Errors are logged and returned unchanged; there is no retry.
type Service struct {
	db      *sql.DB
	dialect query.Dialect
}

func NewService(db *sql.DB, dialect query.Dialect) *Service {
	return &Service{db: db, dialect: dialect}
}

// CreateInput is the task payload at creation; the owner is passed
// separately and is immutable afterwards.
type CreateInput struct {
	Category string
	Title    string
	Content  string
	Tags     []string
	Type     models.TaskType
	IsShared bool
	Metadata map[string]any
}

// UpdateInput carries the fields to merge; nil fields are left untouched.
type UpdateInput struct {
	Category   *string
	Title      *string
	Content    *string
	Tags       []string
	Status     *models.TaskStatus
	Type       *models.TaskType
	IsFavorite *bool
	IsShared   *bool
	SharedLink *string
	Metadata   map[string]any
}

const taskColumns = `id, user_id, category, title, content, tags, status, type,
	is_favorite, is_shared, shared_link, metadata, created_at, updated_at`

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  in.Category,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		Status:    models.TaskStatusActive,
		Type:      in.Type,
		IsShared:  in.IsShared,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if task.Type == "" {
		task.Type = models.TaskTypeCustom
	}

	tags, err := encodeTags(task.Tags)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMetadata(task.Metadata)
	if err != nil {
		return nil, err
	}

	ph := make([]string, 14)
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	q := fmt.Sprintf(`INSERT INTO tasks (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		taskColumns,
		ph[0], ph[1], ph[2], ph[3], ph[4], ph[5], ph[6], ph[7], ph[8], ph[9], ph[10], ph[11], ph[12], ph[13])

	_, err = s.db.ExecContext(ctx, q,
		task.ID, task.UserID, task.Category, task.Title, task.Content, tags,
		task.Status, task.Type, task.IsFavorite, task.IsShared, nil, meta,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Printf("tasks: create: %v", err)
		return nil, err
	}
	return task, nil
}

// List returns one page of the user's tasks plus the total count of the full
// filtered set. An offset with no limit yields a 10-row window.
func (s *Service) List(ctx context.Context, userID uuid.UUID, f models.TaskFilters, sort models.SortSpec, opts models.ListOptions) ([]models.Task, int, error) {
	preds := query.TaskPredicates(userID, f)
	where, args := query.Where(preds, s.dialect)

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM tasks %s", where)
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		log.Printf("tasks: list count: %v", err)
		return nil, 0, err
	}

	items, err := s.selectTasks(ctx, where, args, sort, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) selectTasks(ctx context.Context, where string, args []any, sort models.SortSpec, opts models.ListOptions) ([]models.Task, error) {
	q := fmt.Sprintf("SELECT %s FROM tasks %s %s %s",
		taskColumns, where, query.OrderBy(sort), query.Window(opts))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		log.Printf("tasks: select: %v", err)
		return nil, err
	}
	defer rows.Close()

	items, err := collectTasks(rows)
	if err != nil {
		log.Printf("tasks: select scan: %v", err)
		return nil, err
	}
	return items, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	q := fmt.Sprintf("SELECT %s FROM tasks WHERE id = %s", taskColumns, s.dialect.Placeholder(1))
	task, err := scanTask(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		log.Printf("tasks: get %s: %v", id, err)
		return nil, err
	}
	return task, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Task, error) {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(len(args)+1)))
		args = append(args, v)
	}

	if in.Category != nil {
		add("category", *in.Category)
	}
	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Content != nil {
		add("content", *in.Content)
	}
	if in.Tags != nil {
		tags, err := encodeTags(in.Tags)
		if err != nil {
			return nil, err
		}
		add("tags", tags)
	}
	if in.Status != nil {
		add("status", *in.Status)
	}
	if in.Type != nil {
		add("type", *in.Type)
	}
	if in.IsFavorite != nil {
		add("is_favorite", *in.IsFavorite)
	}
	if in.IsShared != nil {
		add("is_shared", *in.IsShared)
	}
	if in.SharedLink != nil {
		add("shared_link", *in.SharedLink)
	}
	if in.Metadata != nil {
		meta, err := encodeMetadata(in.Metadata)
		if err != nil {
			return nil, err
		}
		add("metadata", meta)
	}
	// updated_at is always refreshed, even on an otherwise empty update
	add("updated_at", time.Now().UTC())

	q := fmt.Sprintf("UPDATE tasks SET %s WHERE id = %s RETURNING %s",
		joinSets(sets), s.dialect.Placeholder(len(args)+1), taskColumns)
	args = append(args, id)

	task, err := scanTask(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		log.Printf("tasks: update %s: %v", id, err)
		return nil, err
	}
	return task, nil
}

// SoftDelete marks the task deleted without removing the row; Restore can
// bring it back.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.setStatus(ctx, id, models.TaskStatusDeleted)
	return err
}

// HardDelete removes the row permanently.
func (s *Service) HardDelete(ctx context.Context, id uuid.UUID) error {
	q := fmt.Sprintf("DELETE FROM tasks WHERE id = %s", s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		log.Printf("tasks: hard delete %s: %v", id, err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ToggleFavorite flips is_favorite in a single UPDATE so concurrent toggles
// cannot act on a stale read.
func (s *Service) ToggleFavorite(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	q := fmt.Sprintf(
		"UPDATE tasks SET is_favorite = NOT is_favorite, updated_at = %s WHERE id = %s RETURNING %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), taskColumns)
	task, err := scanTask(s.db.QueryRowContext(ctx, q, time.Now().UTC(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		log.Printf("tasks: toggle favorite %s: %v", id, err)
		return nil, err
	}
	return task, nil
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.setStatus(ctx, id, models.TaskStatusArchived)
}

// Restore returns the task to active from either archived or deleted.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.setStatus(ctx, id, models.TaskStatusActive)
}

// No transition guard here: the status paths are permissive on purpose and
// any row can be moved to any status.
func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) (*models.Task, error) {
	q := fmt.Sprintf(
		"UPDATE tasks SET status = %s, updated_at = %s WHERE id = %s RETURNING %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), taskColumns)
	task, err := scanTask(s.db.QueryRowContext(ctx, q, status, time.Now().UTC(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		log.Printf("tasks: set status %s %s: %v", id, status, err)
		return nil, err
	}
	return task, nil
}

// Stats scans every row the user owns and counts in memory; cost is linear
// in the user's task count.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error) {
	q := fmt.Sprintf("SELECT status, type, is_favorite FROM tasks WHERE user_id = %s",
		s.dialect.Placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		log.Printf("tasks: stats %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	stats := &models.TaskStats{}
	for rows.Next() {
		var status models.TaskStatus
		var typ models.TaskType
		var fav bool
		if err := rows.Scan(&status, &typ, &fav); err != nil {
			log.Printf("tasks: stats scan: %v", err)
			return nil, err
		}
		stats.Total++
		switch status {
		case models.TaskStatusActive:
			stats.Active++
		case models.TaskStatusArchived:
			stats.Archived++
		case models.TaskStatusDeleted:
			stats.Deleted++
		}
		switch typ {
		case models.TaskTypeGenerated:
			stats.Generated++
		case models.TaskTypeCustom:
			stats.Custom++
		}
		if fav {
			stats.Favorites++
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("tasks: stats rows: %v", err)
		return nil, err
	}
	return stats, nil
}

func (s *Service) ByCategory(ctx context.Context, userID uuid.UUID, category string) ([]models.Task, error) {
	return s.fixedList(ctx, userID, models.TaskFilters{
		Status:   models.TaskStatusActive,
		Category: category,
	}, models.ListOptions{})
}

func (s *Service) Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Task, error) {
	return s.fixedList(ctx, userID, models.TaskFilters{
		Status: models.TaskStatusActive,
		Search: term,
	}, models.ListOptions{})
}

func (s *Service) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.fixedList(ctx, userID, models.TaskFilters{
		Status: models.TaskStatusActive,
	}, models.ListOptions{Limit: &limit})
}

func (s *Service) Favorites(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	fav := true
	return s.fixedList(ctx, userID, models.TaskFilters{
		Status:     models.TaskStatusActive,
		IsFavorite: &fav,
	}, models.ListOptions{})
}

// fixedList is the shared body of the fixed-filter reads: active tasks,
// newest first. These carry no total, so the count query is skipped and one
// SELECT is the whole call.
func (s *Service) fixedList(ctx context.Context, userID uuid.UUID, f models.TaskFilters, opts models.ListOptions) ([]models.Task, error) {
	preds := query.TaskPredicates(userID, f)
	where, args := query.Where(preds, s.dialect)
	return s.selectTasks(ctx, where, args,
		models.SortSpec{Field: "created_at", Descending: true}, opts)
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func encodeMetadata(meta map[string]any) (any, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}
