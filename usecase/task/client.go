package task

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/provider"
)

// Client mediates between app state and the remote tasks table. It keeps
// an in-memory mirror of the user's tasks, newest-created first. The
// mirror is a cache, not a source of truth: mutations touch it only after
// the backend confirms, and it is invalidated wholesale on session change.
type Client struct {
	table  provider.TaskTable
	logger *zap.Logger

	mu      sync.Mutex
	session *domain.Session
	tasks   []domain.Task
	// generation moves on every session change; responses captured under
	// an older generation are discarded instead of overwriting the mirror.
	generation uint64
}

// NewClient builds a task client bound to the table boundary.
func NewClient(table provider.TaskTable, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		table:  table,
		logger: logger,
	}
}

// SetSession points the client at a new session and clears the mirror.
func (c *Client) SetSession(session *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.tasks = nil
	c.generation++
}

// UpdateSession swaps in a refreshed token bundle. The mirror survives
// when the identity is unchanged; a different user is a session change.
func (c *Client) UpdateSession(session *domain.Session) {
	c.mu.Lock()
	if session != nil && c.session != nil && session.User.ID == c.session.User.ID {
		c.session = session
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.SetSession(session)
}

// Invalidate clears the session binding and the mirror.
func (c *Client) Invalidate() {
	c.SetSession(nil)
}

// Snapshot returns a copy of the mirrored task list.
func (c *Client) Snapshot() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Refresh fetches the user's tasks and replaces the mirror. A response
// arriving after the session changed is dropped; on error the mirror is
// left untouched.
func (c *Client) Refresh(ctx context.Context) error {
	session, gen, err := c.begin()
	if err != nil {
		return err
	}

	tasks, err := c.table.Select(ctx, session, session.User.ID)
	if err != nil {
		c.logger.Warn("task fetch failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.logger.Debug("dropping stale task fetch", zap.String("user_id", session.User.ID))
		return nil
	}
	c.tasks = tasks
	return nil
}

// Add inserts a task and prepends the server-returned record. A title
// that is empty after trimming is a no-op.
func (c *Client) Add(ctx context.Context, title string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	session, gen, err := c.begin()
	if err != nil {
		return nil, err
	}

	created, err := c.table.Insert(ctx, session, session.User.ID, title)
	if err != nil {
		c.logger.Warn("task insert failed", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return created, nil
	}
	c.tasks = append([]domain.Task{*created}, c.tasks...)
	return created, nil
}

// Toggle persists the inverse of the mirrored completion flag and flips
// the local record once the backend confirms.
func (c *Client) Toggle(ctx context.Context, id string) error {
	session, gen, err := c.begin()
	if err != nil {
		return err
	}

	current, ok := c.lookup(id)
	if !ok {
		return domain.ErrTaskNotFound
	}

	next := !current.IsCompleted
	if err := c.table.UpdateCompletion(ctx, session, id, next); err != nil {
		c.logger.Warn("task update failed", zap.String("task_id", id), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			c.tasks[i].IsCompleted = next
			break
		}
	}
	return nil
}

// Delete removes a task and drops the local record once the backend
// confirms.
func (c *Client) Delete(ctx context.Context, id string) error {
	session, gen, err := c.begin()
	if err != nil {
		return err
	}

	if err := c.table.Delete(ctx, session, id); err != nil {
		c.logger.Warn("task delete failed", zap.String("task_id", id), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	return nil
}

// begin captures the session and generation for one operation.
func (c *Client) begin() (*domain.Session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, 0, domain.ErrNoSession
	}
	return c.session, c.generation, nil
}

func (c *Client) lookup(id string) (domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}
