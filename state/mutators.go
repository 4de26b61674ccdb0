package state

import "github.com/dkotenko/taskvault/models"

// Synchronous mutators. These touch only local state and never trigger a
// fetch; after changing filters, sort or pagination the caller re-issues
// FetchTasks itself.

func (s *Store) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.broadcastLocked()
	s.mu.Unlock()
}

// SetFilters replaces the filter set and resets the page to 1, since the
// old page position is meaningless against a different result set.
func (s *Store) SetFilters(f models.TaskFilters) {
	s.mu.Lock()
	s.state.Filters = f
	s.state.Pagination.Page = 1
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *Store) SetSort(sort models.SortSpec) {
	s.mu.Lock()
	s.state.Sort = sort
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *Store) SetPagination(page, limit int) {
	s.mu.Lock()
	if page > 0 {
		s.state.Pagination.Page = page
	}
	if limit > 0 {
		s.state.Pagination.Limit = limit
	}
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *Store) ClearCurrentTask() {
	s.mu.Lock()
	s.state.CurrentTask = nil
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *Store) ClearTasks() {
	s.mu.Lock()
	s.state.Tasks = []models.Task{}
	s.state.Pagination.Total = 0
	s.broadcastLocked()
	s.mu.Unlock()
}

// Reset returns the store to its initial state; filters, sort, pagination,
// loaded data and any error are all discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = initialState()
	s.broadcastLocked()
	s.mu.Unlock()
}
