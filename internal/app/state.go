package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskpane/app/domain"
	sessionUC "github.com/taskpane/app/usecase/session"
	taskUC "github.com/taskpane/app/usecase/task"
)

// Screen names the two UI states of the single page.
type Screen string

const (
	ScreenSignedOut Screen = "signed_out"
	ScreenSignedIn  Screen = "signed_in"
)

// View is the read-only snapshot handlers render from.
type View struct {
	Screen     Screen        `json:"screen"`
	User       *domain.User  `json:"user,omitempty"`
	LinkSentTo string        `json:"link_sent_to,omitempty"`
	Tasks      []domain.Task `json:"tasks"`
	LastError  string        `json:"last_error,omitempty"`
}

// State is the composition root's state container. It owns the session
// subscription and is the single writer of screen-level state; task and
// session data live in their respective components and are snapshotted
// into the View on read.
type State struct {
	sessions *sessionUC.Manager
	tasks    *taskUC.Client
	logger   *zap.Logger
	timeout  time.Duration

	mu         sync.RWMutex
	linkSentTo string
	lastError  string

	sub  *sessionUC.Subscription
	done chan struct{}
}

// New wires the state container. Call Start to begin consuming session
// events and Close to release the subscription.
func New(sessions *sessionUC.Manager, tasks *taskUC.Client, timeout time.Duration, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &State{
		sessions: sessions,
		tasks:    tasks,
		logger:   logger,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// Start subscribes to session changes and reacts to them: a sign-in
// rebinds the task client and hydrates the mirror, a sign-out invalidates
// it, a token refresh swaps the bundle in place.
func (s *State) Start() {
	s.sub = s.sessions.Subscribe()
	go s.consume()
}

// Close releases the session subscription.
func (s *State) Close() {
	if s.sub != nil {
		s.sub.Cancel()
	}
	<-s.done
}

func (s *State) consume() {
	defer close(s.done)
	for event := range s.sub.Events() {
		switch event.Type {
		case sessionUC.EventSignedIn:
			s.tasks.SetSession(event.Session)
			s.setLinkSent("")
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			if err := s.tasks.Refresh(ctx); err != nil {
				s.recordError(err)
			} else {
				s.clearError()
			}
			cancel()
		case sessionUC.EventTokenRefreshed:
			s.tasks.UpdateSession(event.Session)
		case sessionUC.EventSignedOut:
			s.tasks.Invalidate()
			s.setLinkSent("")
		}
	}
}

// View snapshots the app state for rendering.
func (s *State) View() View {
	s.mu.RLock()
	linkSent := s.linkSentTo
	lastErr := s.lastError
	s.mu.RUnlock()

	view := View{
		Screen:     ScreenSignedOut,
		LinkSentTo: linkSent,
		Tasks:      []domain.Task{},
		LastError:  lastErr,
	}
	if current := s.sessions.Current(); current != nil {
		view.Screen = ScreenSignedIn
		user := current.User
		view.User = &user
		view.Tasks = s.tasks.Snapshot()
	}
	return view
}

// SignInWithProvider returns the OAuth authorize URL to navigate to.
func (s *State) SignInWithProvider(name string) (string, error) {
	url, err := s.sessions.SignInWithProvider(name)
	s.outcome(err)
	return url, err
}

// SignInWithEmail requests a one-time link and records the confirmation.
func (s *State) SignInWithEmail(ctx context.Context, email string) error {
	if err := s.sessions.SignInWithEmail(ctx, email); err != nil {
		s.recordError(err)
		return err
	}
	s.clearError()
	s.setLinkSent(email)
	return nil
}

// CompleteCallback finishes either flavor of sign-in redirect.
func (s *State) CompleteCallback(ctx context.Context, accessToken, refreshToken, tokenHash string) error {
	var err error
	if tokenHash != "" {
		err = s.sessions.CompleteOTP(ctx, tokenHash)
	} else {
		err = s.sessions.AdoptTokens(accessToken, refreshToken)
	}
	s.outcome(err)
	return err
}

// SignOut invalidates the session.
func (s *State) SignOut(ctx context.Context) error {
	err := s.sessions.SignOut(ctx)
	s.outcome(err)
	return err
}

// RefreshTasks re-reads the remote list.
func (s *State) RefreshTasks(ctx context.Context) error {
	err := s.tasks.Refresh(ctx)
	s.outcome(err)
	return err
}

// AddTask inserts a task; empty titles are ignored.
func (s *State) AddTask(ctx context.Context, title string) (*domain.Task, error) {
	created, err := s.tasks.Add(ctx, title)
	s.outcome(err)
	return created, err
}

// ToggleTask flips a task's completion flag.
func (s *State) ToggleTask(ctx context.Context, id string) error {
	err := s.tasks.Toggle(ctx, id)
	s.outcome(err)
	return err
}

// DeleteTask removes a task.
func (s *State) DeleteTask(ctx context.Context, id string) error {
	err := s.tasks.Delete(ctx, id)
	s.outcome(err)
	return err
}

func (s *State) outcome(err error) {
	if err != nil {
		s.recordError(err)
		return
	}
	s.clearError()
}

func (s *State) recordError(err error) {
	s.logger.Warn("action failed", zap.Error(err))
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *State) clearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func (s *State) setLinkSent(email string) {
	s.mu.Lock()
	s.linkSentTo = email
	s.mu.Unlock()
}
