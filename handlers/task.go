package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkotenko/taskvault/models"
	"github.com/dkotenko/taskvault/tasks"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks - list tasks with filters/sort/pagination
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

/*
handles routes under /tasks/:
- GET /tasks/stats, /tasks/recent, /tasks/favorites, /tasks/search
- GET/PATCH/DELETE /tasks/{id}
- POST /tasks/{id}/favorite, /tasks/{id}/archive, /tasks/{id}/restore
*/
func (h *Handler) HandleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
	switch rest {
	case "":
		h.HandleTasks(w, r)
		return
	case "stats":
		h.taskStats(w, r)
		return
	case "recent":
		h.recentTasks(w, r)
		return
	case "favorites":
		h.favoriteTasks(w, r)
		return
	case "search":
		h.searchTasks(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	taskID, err := uuid.Parse(parts[0])
	if err != nil {
		SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "favorite":
			h.taskAction(w, r, taskID, h.Tasks.ToggleFavorite, "task_updated")
		case "archive":
			h.taskAction(w, r, taskID, h.Tasks.Archive, "task_updated")
		case "restore":
			h.taskAction(w, r, taskID, h.Tasks.Restore, "task_updated")
		default:
			SendError(w, "Unknown task action", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := models.TaskFilters{
		Category: q.Get("category"),
		Status:   models.TaskStatus(q.Get("status")),
		Type:     models.TaskType(q.Get("type")),
		Search:   q.Get("search"),
	}
	if v := q.Get("favorite"); v != "" {
		fav := v == "true"
		filters.IsFavorite = &fav
	}
	if v := q.Get("shared"); v != "" {
		shared := v == "true"
		filters.IsShared = &shared
	}
	if v := q.Get("tags"); v != "" {
		filters.Tags = strings.Split(v, ",")
	}

	sort := models.SortSpec{
		Field:      q.Get("sort"),
		Descending: q.Get("order") != "asc",
	}

	var opts models.ListOptions
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		opts.Limit = &v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		opts.Offset = &v
	}

	items, total, err := h.Tasks.List(r.Context(), userID, filters, sort, opts)
	if err != nil {
		SendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"tasks": items, "total": total})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !isJSONContentType(r) {
		SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input struct {
		Category string         `json:"category"`
		Title    string         `json:"title"`
		Content  string         `json:"content"`
		Tags     []string       `json:"tags"`
		Type     string         `json:"type"`
		IsShared bool           `json:"is_shared"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Title == "" || input.Content == "" || input.Category == "" {
		SendError(w, "title, content and category are required", http.StatusBadRequest)
		return
	}

	task, err := h.Tasks.Create(r.Context(), userID, tasks.CreateInput{
		Category: input.Category,
		Title:    input.Title,
		Content:  input.Content,
		Tags:     input.Tags,
		Type:     models.TaskType(input.Type),
		IsShared: input.IsShared,
		Metadata: input.Metadata,
	})
	if err != nil {
		SendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	h.Hub.Broadcast(userID, "task_created", task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	sendJSON(w, http.StatusCreated, task)
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	task, _, ok := h.authorizedTask(w, r, taskID)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	_, userID, ok := h.authorizedTask(w, r, taskID)
	if !ok {
		return
	}
	if !isJSONContentType(r) {
		SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input struct {
		Category   *string        `json:"category"`
		Title      *string        `json:"title"`
		Content    *string        `json:"content"`
		Tags       []string       `json:"tags"`
		Status     *string        `json:"status"`
		Type       *string        `json:"type"`
		IsFavorite *bool          `json:"is_favorite"`
		IsShared   *bool          `json:"is_shared"`
		SharedLink *string        `json:"shared_link"`
		Metadata   map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		SendError(w, "title cannot be empty", http.StatusBadRequest)
		return
	}

	in := tasks.UpdateInput{
		Category:   input.Category,
		Title:      input.Title,
		Content:    input.Content,
		Tags:       input.Tags,
		IsFavorite: input.IsFavorite,
		IsShared:   input.IsShared,
		SharedLink: input.SharedLink,
		Metadata:   input.Metadata,
	}
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		switch status {
		case models.TaskStatusActive, models.TaskStatusArchived, models.TaskStatusDeleted:
			in.Status = &status
		default:
			SendError(w, "Invalid status value", http.StatusBadRequest)
			return
		}
	}
	if input.Type != nil {
		typ := models.TaskType(*input.Type)
		switch typ {
		case models.TaskTypeCustom, models.TaskTypeGenerated:
			in.Type = &typ
		default:
			SendError(w, "Invalid type value", http.StatusBadRequest)
			return
		}
	}

	task, err := h.Tasks.Update(r.Context(), taskID, in)
	if err != nil {
		SendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	h.Hub.Broadcast(userID, "task_updated", task)
	sendJSON(w, http.StatusOK, task)
}

// DELETE soft-deletes by default; ?permanent=true removes the row for good.
func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	task, userID, ok := h.authorizedTask(w, r, taskID)
	if !ok {
		return
	}

	var err error
	if r.URL.Query().Get("permanent") == "true" {
		err = h.Tasks.HardDelete(r.Context(), taskID)
	} else {
		err = h.Tasks.SoftDelete(r.Context(), taskID)
	}
	if err != nil {
		SendError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	h.Hub.Broadcast(userID, "task_deleted", task)
	w.WriteHeader(http.StatusNoContent)
}

// taskAction is the shared body of the favorite/archive/restore routes:
// ownership check, one service call, broadcast, respond with the new task.
func (h *Handler) taskAction(w http.ResponseWriter, r *http.Request, taskID uuid.UUID,
	op func(ctx context.Context, id uuid.UUID) (*models.Task, error), event string) {
	_, userID, ok := h.authorizedTask(w, r, taskID)
	if !ok {
		return
	}
	task, err := op(r.Context(), taskID)
	if err != nil {
		SendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	h.Hub.Broadcast(userID, event, task)
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) taskStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	stats, err := h.Tasks.Stats(r.Context(), userID)
	if err != nil {
		SendError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

func (h *Handler) recentTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.Tasks.Recent(r.Context(), userID, limit)
	if err != nil {
		SendError(w, "Failed to list recent tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"tasks": items})
}

func (h *Handler) favoriteTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Tasks.Favorites(r.Context(), userID)
	if err != nil {
		SendError(w, "Failed to list favorite tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"tasks": items})
}

// searchTasks also serves /tasks?category=... style category listing when
// only a category is given; the dedicated query is ?q= for the search term.
func (h *Handler) searchTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var (
		items []models.Task
		err   error
	)
	if category := q.Get("category"); category != "" && q.Get("q") == "" {
		items, err = h.Tasks.ByCategory(r.Context(), userID, category)
	} else {
		term := q.Get("q")
		if term == "" {
			SendError(w, "q is required", http.StatusBadRequest)
			return
		}
		items, err = h.Tasks.Search(r.Context(), userID, term)
	}
	if err != nil {
		SendError(w, "Search failed", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"tasks": items})
}

// authorizedTask fetches the task and checks the caller owns it.
func (h *Handler) authorizedTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) (*models.Task, uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}

	task, err := h.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			SendError(w, "Task not found", http.StatusNotFound)
		} else {
			SendError(w, "Failed to fetch task", http.StatusInternalServerError)
		}
		return nil, uuid.Nil, false
	}
	if task.UserID != userID {
		SendError(w, "Forbidden", http.StatusForbidden)
		return nil, uuid.Nil, false
	}
	return task, userID, true
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, _ := r.Context().Value("user_id").(string)
	if raw == "" {
		SendError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		SendError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}
