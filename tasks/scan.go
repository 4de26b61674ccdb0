package tasks

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dkotenko/taskvault/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one row in taskColumns order. Tags and metadata are stored
// as JSON text; shared_link and metadata may be NULL.
func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task       models.Task
		tags       sql.NullString
		sharedLink sql.NullString
		metadata   sql.NullString
	)
	err := row.Scan(
		&task.ID, &task.UserID, &task.Category, &task.Title, &task.Content,
		&tags, &task.Status, &task.Type, &task.IsFavorite, &task.IsShared,
		&sharedLink, &metadata, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &task.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if sharedLink.Valid {
		task.SharedLink = &sharedLink.String
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
