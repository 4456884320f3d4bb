// Package testutil provides in-memory fakes for the provider boundaries.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/provider"
)

// NewSession builds a non-expired session bundle for userID.
func NewSession(userID, email string) *domain.Session {
	return &domain.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         domain.User{ID: userID, Email: email},
	}
}

// FakeAuth is an in-memory implementation of provider.Auth.
type FakeAuth struct {
	mu      sync.Mutex
	otpSent []string

	// Responses
	VerifySession *domain.Session
	RefreshResult *domain.Session
	TokenSession  *domain.Session
	SignOutCalls  int
	RefreshCalls  int

	// Error injection
	OAuthErr             error
	SendOTPErr           error
	VerifyOTPErr         error
	RefreshErr           error
	SignOutErr           error
	SessionFromTokensErr error
}

var _ provider.Auth = (*FakeAuth)(nil)

func (f *FakeAuth) OAuthURL(providerName, redirectTo string) (string, error) {
	if f.OAuthErr != nil {
		return "", f.OAuthErr
	}
	return fmt.Sprintf("https://auth.example/authorize?provider=%s&redirect_to=%s", providerName, redirectTo), nil
}

func (f *FakeAuth) SendOTP(ctx context.Context, email string) error {
	if f.SendOTPErr != nil {
		return f.SendOTPErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpSent = append(f.otpSent, email)
	return nil
}

// OTPSent returns the addresses one-time links were requested for.
func (f *FakeAuth) OTPSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.otpSent...)
}

func (f *FakeAuth) VerifyOTP(ctx context.Context, tokenHash string) (*domain.Session, error) {
	if f.VerifyOTPErr != nil {
		return nil, f.VerifyOTPErr
	}
	if f.VerifySession == nil {
		return nil, domain.NewError(domain.ErrCodeAuth, "unknown one-time token")
	}
	return f.VerifySession, nil
}

func (f *FakeAuth) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	if f.RefreshResult == nil {
		return nil, domain.NewError(domain.ErrCodeAuth, "unknown refresh token")
	}
	return f.RefreshResult, nil
}

func (f *FakeAuth) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.SignOutCalls++
	f.mu.Unlock()
	return f.SignOutErr
}

func (f *FakeAuth) SessionFromTokens(accessToken, refreshToken string) (*domain.Session, error) {
	if f.SessionFromTokensErr != nil {
		return nil, f.SessionFromTokensErr
	}
	if f.TokenSession != nil {
		return f.TokenSession, nil
	}
	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         domain.User{ID: "user-from-token"},
	}, nil
}

// FakeTable is an in-memory implementation of provider.TaskTable. Rows are
// kept newest-created first, matching the server-side ordering.
type FakeTable struct {
	mu     sync.Mutex
	rows   map[string][]domain.Task
	nextID int

	// OnSelect runs while a Select request is "in flight", before the
	// response is produced. Lets tests change the session mid-fetch.
	OnSelect func()

	// Error injection
	SelectErr error
	InsertErr error
	UpdateErr error
	DeleteErr error

	InsertCalls int
}

var _ provider.TaskTable = (*FakeTable)(nil)

func NewFakeTable() *FakeTable {
	return &FakeTable{rows: make(map[string][]domain.Task)}
}

// Seed adds a row for userID and returns it.
func (f *FakeTable) Seed(userID, title string, completed bool) domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	task := domain.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		UserID:      userID,
		Title:       title,
		IsCompleted: completed,
		CreatedAt:   time.Now().Add(time.Duration(f.nextID) * time.Second),
	}
	f.rows[userID] = append([]domain.Task{task}, f.rows[userID]...)
	return task
}

func (f *FakeTable) Select(ctx context.Context, session *domain.Session, userID string) ([]domain.Task, error) {
	if hook := f.OnSelect; hook != nil {
		hook()
	}
	if f.SelectErr != nil {
		return nil, f.SelectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Task(nil), f.rows[userID]...), nil
}

func (f *FakeTable) Insert(ctx context.Context, session *domain.Session, userID, title string) (*domain.Task, error) {
	f.mu.Lock()
	f.InsertCalls++
	f.mu.Unlock()
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	task := f.Seed(userID, title, false)
	return &task, nil
}

func (f *FakeTable) UpdateCompletion(ctx context.Context, session *domain.Session, id string, completed bool) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, tasks := range f.rows {
		for i := range tasks {
			if tasks[i].ID == id {
				f.rows[userID][i].IsCompleted = completed
				return nil
			}
		}
	}
	return domain.ErrTaskNotFound
}

func (f *FakeTable) Delete(ctx context.Context, session *domain.Session, id string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, tasks := range f.rows {
		for i := range tasks {
			if tasks[i].ID == id {
				f.rows[userID] = append(tasks[:i:i], tasks[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrTaskNotFound
}
