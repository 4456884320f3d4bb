package provider

import (
	"context"

	"github.com/taskpane/app/domain"
)

// TaskTable is the boundary to the remote "tasks" collection. Row storage,
// ownership enforcement and query execution belong to the backend; every
// call here is a plain request against its query API, authorized by the
// caller's session.
type TaskTable interface {
	// Select returns the tasks owned by userID, newest-created first.
	Select(ctx context.Context, session *domain.Session, userID string) ([]domain.Task, error)

	// Insert creates a task and returns the server-assigned row.
	Insert(ctx context.Context, session *domain.Session, userID, title string) (*domain.Task, error)

	// UpdateCompletion persists the completion flag for one task.
	UpdateCompletion(ctx context.Context, session *domain.Session, id string, completed bool) error

	// Delete removes one task.
	Delete(ctx context.Context, session *domain.Session, id string) error
}
