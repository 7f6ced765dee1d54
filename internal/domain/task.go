package domain

import "time"

// Task is a single to-do item. Tasks are not owned by any user.
type Task struct {
	ID          string
	Title       string
	Description *string
	DueDate     *Date
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
