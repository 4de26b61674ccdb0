package models

// TaskFilters narrows a task listing. Zero values / nil pointers mean the
// filter is not applied. Search matches title or content, case-insensitive.
type TaskFilters struct {
	Category   string
	Status     TaskStatus
	Type       TaskType
	IsFavorite *bool
	IsShared   *bool
	Tags       []string
	Search     string
}

type SortSpec struct {
	Field      string // "created_at", "updated_at", "title", "category"
	Descending bool
}

// ListOptions is the page window. Offset without Limit falls back to a
// 10-row window; callers relying on a prior limit must pass it again.
type ListOptions struct {
	Limit  *int
	Offset *int
}
