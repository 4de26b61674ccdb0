// Package state holds the UI-facing view of one user's tasks. The Store owns
// the only mutable copy of that view; collaborators read snapshots and issue
// intents, never touch the fields directly.
package state

import (
	"context"
	"sync"

	"github.com/dkotenko/taskvault/models"
	"github.com/dkotenko/taskvault/tasks"
	"github.com/google/uuid"
)

// Loading carries one independent flag per operation family, so a list fetch
// and a stats fetch in flight at the same time do not mask each other.
type Loading struct {
	Tasks       bool
	CurrentTask bool
	Stats       bool
	Saving      bool
	Deleting    bool
}

type Pagination struct {
	Page  int
	Limit int
	Total int
}

// State is the store's full view. Error holds the message of the most recent
// failed operation; a new failure overwrites it.
type State struct {
	Tasks       []models.Task
	CurrentTask *models.Task
	Stats       *models.TaskStats
	Filters     models.TaskFilters
	Sort        models.SortSpec
	Pagination  Pagination
	Loading     Loading
	Error       string
}

type flag int

const (
	flagTasks flag = iota
	flagCurrentTask
	flagStats
	flagSaving
	flagDeleting
)

func (l *Loading) set(f flag, v bool) {
	switch f {
	case flagTasks:
		l.Tasks = v
	case flagCurrentTask:
		l.CurrentTask = v
	case flagStats:
		l.Stats = v
	case flagSaving:
		l.Saving = v
	case flagDeleting:
		l.Deleting = v
	}
}

// Store mediates every task service call through a uniform begin/finish
// lifecycle and reconciles successful results into the state without a
// re-fetch.
//
// The lock is released while a remote call is in flight, so outcomes of
// concurrent intents apply in completion order: a slow list fetch finishing
// after a create will overwrite the created task's prepend. Last write wins,
// matching the behavior this store mirrors; there is no generation guard and
// no cancellation beyond the context passed in.
type Store struct {
	svc    tasks.ServiceInterface
	userID uuid.UUID

	mu    sync.Mutex
	state State
	subs  map[chan State]bool
}

// NewStore builds a store scoped to one user; every fetch and create issued
// through it is bound to that user id.
func NewStore(svc tasks.ServiceInterface, userID uuid.UUID) *Store {
	return &Store{
		svc:    svc,
		userID: userID,
		state:  initialState(),
		subs:   make(map[chan State]bool),
	}
}

func initialState() State {
	return State{
		Tasks:      []models.Task{},
		Sort:       models.SortSpec{Field: "created_at", Descending: true},
		Pagination: Pagination{Page: 1, Limit: 10},
	}
}

// Snapshot returns a copy of the current state. The task slice is copied;
// the tasks themselves are shared and must be treated as read-only.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Tasks = make([]models.Task, len(s.state.Tasks))
	copy(st.Tasks, s.state.Tasks)
	return st
}

// Subscribe registers a listener that receives a state snapshot after every
// change. Slow listeners miss intermediate snapshots rather than block the
// store. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)
	s.mu.Lock()
	s.subs[ch] = true
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if s.subs[ch] {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
}

func (s *Store) broadcastLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// begin marks the operation family pending and clears the previous error.
func (s *Store) begin(f flag) {
	s.mu.Lock()
	s.state.Loading.set(f, true)
	s.state.Error = ""
	s.broadcastLocked()
	s.mu.Unlock()
}

// finish clears the pending flag and either records the failure message or
// applies the operation's reconciliation.
func (s *Store) finish(f flag, err error, apply func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading.set(f, false)
	if err != nil {
		s.state.Error = err.Error()
	} else if apply != nil {
		apply(&s.state)
	}
	s.broadcastLocked()
	return err
}

// FetchTasks loads one page using the last-applied filters, sort and
// pagination, replacing the task list wholesale and recording the
// server-side total of the full filtered set.
func (s *Store) FetchTasks(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	f := s.state.Filters
	sort := s.state.Sort
	limit := s.state.Pagination.Limit
	offset := (s.state.Pagination.Page - 1) * s.state.Pagination.Limit
	s.mu.Unlock()

	s.begin(flagTasks)
	items, total, err := s.svc.List(ctx, userID, f, sort,
		models.ListOptions{Limit: &limit, Offset: &offset})
	return s.finish(flagTasks, err, func(st *State) {
		st.Tasks = items
		st.Pagination.Total = total
	})
}

// SearchTasks, FetchRecent, FetchFavorites and FetchByCategory are the
// fixed-filter fetches: they replace the list wholesale and, carrying no
// server count, record the slice length as the total.
func (s *Store) SearchTasks(ctx context.Context, term string) error {
	s.begin(flagTasks)
	items, err := s.svc.Search(ctx, s.userID, term)
	return s.finish(flagTasks, err, replaceAll(items))
}

func (s *Store) FetchRecent(ctx context.Context, limit int) error {
	s.begin(flagTasks)
	items, err := s.svc.Recent(ctx, s.userID, limit)
	return s.finish(flagTasks, err, replaceAll(items))
}

func (s *Store) FetchFavorites(ctx context.Context) error {
	s.begin(flagTasks)
	items, err := s.svc.Favorites(ctx, s.userID)
	return s.finish(flagTasks, err, replaceAll(items))
}

func (s *Store) FetchByCategory(ctx context.Context, category string) error {
	s.begin(flagTasks)
	items, err := s.svc.ByCategory(ctx, s.userID, category)
	return s.finish(flagTasks, err, replaceAll(items))
}

// FetchTask loads a single task into CurrentTask; the list is untouched.
func (s *Store) FetchTask(ctx context.Context, id uuid.UUID) error {
	s.begin(flagCurrentTask)
	task, err := s.svc.GetByID(ctx, id)
	return s.finish(flagCurrentTask, err, func(st *State) {
		st.CurrentTask = task
	})
}

// CreateTask prepends the new task (newest first) and bumps the total.
func (s *Store) CreateTask(ctx context.Context, in tasks.CreateInput) (*models.Task, error) {
	s.begin(flagSaving)
	task, err := s.svc.Create(ctx, s.userID, in)
	err = s.finish(flagSaving, err, func(st *State) {
		st.Tasks = append([]models.Task{*task}, st.Tasks...)
		st.Pagination.Total++
	})
	return task, err
}

func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, in tasks.UpdateInput) (*models.Task, error) {
	s.begin(flagSaving)
	task, err := s.svc.Update(ctx, id, in)
	err = s.finish(flagSaving, err, replaceOne(task))
	return task, err
}

func (s *Store) ToggleFavorite(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.begin(flagSaving)
	task, err := s.svc.ToggleFavorite(ctx, id)
	err = s.finish(flagSaving, err, replaceOne(task))
	return task, err
}

func (s *Store) ArchiveTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.begin(flagSaving)
	task, err := s.svc.Archive(ctx, id)
	err = s.finish(flagSaving, err, replaceOne(task))
	return task, err
}

func (s *Store) RestoreTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.begin(flagSaving)
	task, err := s.svc.Restore(ctx, id)
	err = s.finish(flagSaving, err, replaceOne(task))
	return task, err
}

// DeleteTask soft-deletes on the server and drops the task from the local
// list either way.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.begin(flagDeleting)
	err := s.svc.SoftDelete(ctx, id)
	return s.finish(flagDeleting, err, removeOne(id))
}

func (s *Store) PermanentlyDeleteTask(ctx context.Context, id uuid.UUID) error {
	s.begin(flagDeleting)
	err := s.svc.HardDelete(ctx, id)
	return s.finish(flagDeleting, err, removeOne(id))
}

func (s *Store) FetchStats(ctx context.Context) error {
	s.begin(flagStats)
	stats, err := s.svc.Stats(ctx, s.userID)
	return s.finish(flagStats, err, func(st *State) {
		st.Stats = stats
	})
}

func replaceAll(items []models.Task) func(*State) {
	return func(st *State) {
		st.Tasks = items
		st.Pagination.Total = len(items)
	}
}

// replaceOne swaps the task in place by id. A miss leaves the list alone:
// the task may simply be on another page. CurrentTask is kept in sync when
// it holds the same id.
func replaceOne(task *models.Task) func(*State) {
	return func(st *State) {
		for i := range st.Tasks {
			if st.Tasks[i].ID == task.ID {
				st.Tasks[i] = *task
				break
			}
		}
		if st.CurrentTask != nil && st.CurrentTask.ID == task.ID {
			st.CurrentTask = task
		}
	}
}

// removeOne drops the task from the list when present and always shrinks the
// total: the server-side set lost a row even if the task was on another page.
func removeOne(id uuid.UUID) func(*State) {
	return func(st *State) {
		for i := range st.Tasks {
			if st.Tasks[i].ID == id {
				st.Tasks = append(st.Tasks[:i], st.Tasks[i+1:]...)
				break
			}
		}
		st.Pagination.Total--
		if st.CurrentTask != nil && st.CurrentTask.ID == id {
			st.CurrentTask = nil
		}
	}
}
