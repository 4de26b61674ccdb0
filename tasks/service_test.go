package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkotenko/taskvault/models"
	"github.com/dkotenko/taskvault/query"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTasksDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ddl := `
CREATE TABLE tasks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  tags TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'active',
  type TEXT NOT NULL DEFAULT 'custom',
  is_favorite BOOLEAN NOT NULL DEFAULT 0,
  is_shared BOOLEAN NOT NULL DEFAULT 0,
  shared_link TEXT,
  metadata TEXT,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_tasks_user_id ON tasks(user_id);
`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTasksDB(t), query.SQLite{})
}

type seed struct {
	userID   uuid.UUID
	category string
	title    string
	tags     []string
	status   models.TaskStatus
	typ      models.TaskType
	favorite bool
	created  time.Time
}

func insertTask(t *testing.T, svc *Service, s seed) uuid.UUID {
	t.Helper()
	if s.category == "" {
		s.category = "general"
	}
	if s.title == "" {
		s.title = "task"
	}
	if s.status == "" {
		s.status = models.TaskStatusActive
	}
	if s.typ == "" {
		s.typ = models.TaskTypeCustom
	}
	if s.created.IsZero() {
		s.created = time.Now().UTC()
	}
	tags, err := json.Marshal(append([]string{}, s.tags...))
	if err != nil {
		t.Fatalf("marshal tags: %v", err)
	}
	id := uuid.New()
	_, err = svc.db.Exec(`INSERT INTO tasks
	 (id, user_id, category, title, content, tags, status, type, is_favorite, is_shared, shared_link, metadata, created_at, updated_at)
	 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, s.userID, s.category, s.title, "content of "+s.title, string(tags),
		s.status, s.typ, s.favorite, false, nil, nil, s.created, s.created)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return id
}

func TestService_Create_GetByID(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	task, err := svc.Create(context.Background(), userID, CreateInput{
		Category: "writing",
		Title:    "Draft outline",
		Content:  "three sections",
		Tags:     []string{"draft", "q3"},
		Metadata: map[string]any{"source": "import"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.TaskStatusActive {
		t.Errorf("new task status = %s, want active", task.Status)
	}
	if task.Type != models.TaskTypeCustom {
		t.Errorf("new task type = %s, want custom", task.Type)
	}

	got, err := svc.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != userID || got.Title != "Draft outline" {
		t.Errorf("GetByID mismatch: %#v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "draft" {
		t.Errorf("tags not round-tripped: %v", got.Tags)
	}
	if got.Metadata["source"] != "import" {
		t.Errorf("metadata not round-tripped: %v", got.Metadata)
	}
}

func TestService_GetByID_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestService_List_ScopedToUserAndStatus(t *testing.T) {
	svc := newTestService(t)
	me, other := uuid.New(), uuid.New()

	insertTask(t, svc, seed{userID: me, status: models.TaskStatusActive})
	insertTask(t, svc, seed{userID: me, status: models.TaskStatusArchived})
	insertTask(t, svc, seed{userID: other, status: models.TaskStatusActive})

	items, total, err := svc.List(context.Background(), me,
		models.TaskFilters{Status: models.TaskStatusArchived},
		models.SortSpec{}, models.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected exactly one archived task, got %d (total %d)", len(items), total)
	}
	if items[0].UserID != me || items[0].Status != models.TaskStatusArchived {
		t.Errorf("wrong task returned: %#v", items[0])
	}
}

func TestService_List_TagOverlap(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	withA := insertTask(t, svc, seed{userID: userID, tags: []string{"a", "c"}})
	insertTask(t, svc, seed{userID: userID, tags: []string{"x"}})
	insertTask(t, svc, seed{userID: userID})

	items, _, err := svc.List(context.Background(), userID,
		models.TaskFilters{Tags: []string{"a", "b"}},
		models.SortSpec{}, models.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != withA {
		t.Errorf("tag overlap should match only the task sharing a tag: %+v", items)
	}
}

func TestService_List_SearchCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	match := insertTask(t, svc, seed{userID: userID, title: "Quarterly REPORT"})
	insertTask(t, svc, seed{userID: userID, title: "unrelated"})

	items, _, err := svc.List(context.Background(), userID,
		models.TaskFilters{Search: "report"},
		models.SortSpec{}, models.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != match {
		t.Errorf("search should match title case-insensitively: %+v", items)
	}
}

func TestService_List_OffsetWithoutLimitIsTenRows(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 20; i++ {
		insertTask(t, svc, seed{
			userID:  userID,
			title:   fmt.Sprintf("task-%02d", i),
			created: base.Add(time.Duration(i) * time.Minute),
		})
	}

	offset := 5
	items, total, err := svc.List(context.Background(), userID,
		models.TaskFilters{},
		models.SortSpec{Field: "title"},
		models.ListOptions{Offset: &offset})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 20 {
		t.Errorf("total = %d, want 20", total)
	}
	// rows 6..15 of the sorted set: the legacy 10-row fallback window
	if len(items) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(items))
	}
	if items[0].Title != "task-05" || items[9].Title != "task-14" {
		t.Errorf("window off: first %s last %s", items[0].Title, items[9].Title)
	}
}

func TestService_List_CategorySortedPage(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()
	titles := []string{"edit", "brief", "ad copy", "deck", "calendar"}
	for _, title := range titles {
		insertTask(t, svc, seed{userID: userID, category: "marketing", title: title})
	}
	insertTask(t, svc, seed{userID: userID, category: "ops", title: "aaa"})

	limit, offset := 2, 0
	items, total, err := svc.List(context.Background(), userID,
		models.TaskFilters{Category: "marketing"},
		models.SortSpec{Field: "title"},
		models.ListOptions{Limit: &limit, Offset: &offset})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 || items[0].Title != "ad copy" || items[1].Title != "brief" {
		t.Errorf("unexpected page: %+v", items)
	}
}

func TestService_Update_PartialMerge(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()
	id := insertTask(t, svc, seed{userID: userID, title: "before", created: time.Now().UTC().Add(-time.Minute)})

	title := "after"
	updated, err := svc.Update(context.Background(), id, UpdateInput{
		Title: &title,
		Tags:  []string{"kept"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "after" {
		t.Errorf("title not updated: %s", updated.Title)
	}
	if updated.Category != "general" {
		t.Errorf("untouched field changed: %s", updated.Category)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "kept" {
		t.Errorf("tags not updated: %v", updated.Tags)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("updated_at not refreshed: %v vs %v", updated.UpdatedAt, updated.CreatedAt)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(t)
	title := "x"
	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Title: &title})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestService_SoftDelete_KeepsRow(t *testing.T) {
	svc := newTestService(t)
	id := insertTask(t, svc, seed{userID: uuid.New()})

	if err := svc.SoftDelete(context.Background(), id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	got, err := svc.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("row should survive a soft delete: %v", err)
	}
	if got.Status != models.TaskStatusDeleted {
		t.Errorf("status = %s, want deleted", got.Status)
	}
}

func TestService_HardDelete_RemovesRow(t *testing.T) {
	svc := newTestService(t)
	id := insertTask(t, svc, seed{userID: uuid.New()})

	if err := svc.HardDelete(context.Background(), id); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), id); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound after hard delete, got %v", err)
	}
	if err := svc.HardDelete(context.Background(), id); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("second hard delete should report not found, got %v", err)
	}
}

func TestService_ToggleFavorite_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	id := insertTask(t, svc, seed{userID: uuid.New()})

	once, err := svc.ToggleFavorite(context.Background(), id)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !once.IsFavorite {
		t.Errorf("first toggle should set the flag")
	}
	twice, err := svc.ToggleFavorite(context.Background(), id)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if twice.IsFavorite {
		t.Errorf("double toggle should restore the original value")
	}
}

func TestService_Archive_Restore(t *testing.T) {
	svc := newTestService(t)
	id := insertTask(t, svc, seed{userID: uuid.New()})

	archived, err := svc.Archive(context.Background(), id)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived.Status != models.TaskStatusArchived {
		t.Errorf("status = %s, want archived", archived.Status)
	}

	restored, err := svc.Restore(context.Background(), id)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Status != models.TaskStatusActive {
		t.Errorf("status = %s, want active", restored.Status)
	}
}

func TestService_Restore_FromDeleted(t *testing.T) {
	svc := newTestService(t)
	id := insertTask(t, svc, seed{userID: uuid.New(), status: models.TaskStatusDeleted})

	restored, err := svc.Restore(context.Background(), id)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Status != models.TaskStatusActive {
		t.Errorf("status = %s, want active", restored.Status)
	}
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	insertTask(t, svc, seed{userID: userID, favorite: true})
	insertTask(t, svc, seed{userID: userID})
	insertTask(t, svc, seed{userID: userID, typ: models.TaskTypeGenerated})
	insertTask(t, svc, seed{userID: userID, status: models.TaskStatusDeleted})
	// another user's task must not count
	insertTask(t, svc, seed{userID: uuid.New()})

	stats, err := svc.Stats(context.Background(), userID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := models.TaskStats{Total: 4, Active: 3, Deleted: 1, Favorites: 1, Generated: 1, Custom: 3}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestService_FixedFilters(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	insertTask(t, svc, seed{userID: userID, category: "work", title: "old", created: base})
	newest := insertTask(t, svc, seed{userID: userID, category: "work", title: "new", created: base.Add(time.Minute)})
	insertTask(t, svc, seed{userID: userID, category: "home", favorite: true, created: base.Add(2 * time.Minute)})
	// archived rows are excluded from every fixed-filter read
	insertTask(t, svc, seed{userID: userID, category: "work", status: models.TaskStatusArchived, favorite: true})

	byCat, err := svc.ByCategory(context.Background(), userID, "work")
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if len(byCat) != 2 || byCat[0].ID != newest {
		t.Errorf("ByCategory should return active work tasks newest first: %+v", byCat)
	}

	found, err := svc.Search(context.Background(), userID, "NEW")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0].ID != newest {
		t.Errorf("Search mismatch: %+v", found)
	}

	recent, err := svc.Recent(context.Background(), userID, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Category != "home" {
		t.Errorf("Recent should cap and order newest first: %+v", recent)
	}

	favs, err := svc.Favorites(context.Background(), userID)
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(favs) != 1 || favs[0].Category != "home" {
		t.Errorf("Favorites should skip the archived favorite: %+v", favs)
	}
}
