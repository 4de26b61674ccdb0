package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusActive   TaskStatus = "active"
	TaskStatusArchived TaskStatus = "archived"
	TaskStatusDeleted  TaskStatus = "deleted"
)

type TaskType string

const (
	TaskTypeCustom    TaskType = "custom"
	TaskTypeGenerated TaskType = "generated"
)

type Task struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Category   string         `json:"category"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Tags       []string       `json:"tags,omitempty"`
	Status     TaskStatus     `json:"status"`
	Type       TaskType       `json:"type"`
	IsFavorite bool           `json:"is_favorite"`
	IsShared   bool           `json:"is_shared"`
	SharedLink *string        `json:"shared_link,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TaskStats is computed by a full scan of one user's tasks; it is never
// maintained incrementally.
type TaskStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Archived  int `json:"archived"`
	Deleted   int `json:"deleted"`
	Favorites int `json:"favorites"`
	Generated int `json:"generated"`
	Custom    int `json:"custom"`
}
