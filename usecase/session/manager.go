package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/provider"
)

// Persistence stores the session bundle between process runs. A nil
// Persistence keeps the session in memory only.
type Persistence interface {
	Load() (*domain.Session, error)
	Save(session *domain.Session) error
	Clear() error
}

// Config tunes the manager's refresh behavior.
type Config struct {
	// RedirectURL is where OAuth flows return with the token pair.
	RedirectURL string
	// RefreshInterval is how often the refresh job wakes up.
	RefreshInterval time.Duration
	// RefreshThreshold refreshes sessions expiring within this window.
	RefreshThreshold time.Duration
}

// Manager owns the current session: it restores it at startup, exposes it
// to the rest of the app, runs sign-in/sign-out against the provider and
// broadcasts every change to subscribers.
type Manager struct {
	auth    provider.Auth
	persist Persistence
	logger  *zap.Logger
	cfg     Config

	mu      sync.RWMutex
	current *domain.Session

	events *broadcaster
	cron   *cron.Cron
}

// New builds a Manager. It performs no IO; call Restore to load a
// persisted session.
func New(auth provider.Auth, persist Persistence, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = 5 * time.Minute
	}
	return &Manager{
		auth:    auth,
		persist: persist,
		logger:  logger,
		cfg:     cfg,
		events:  newBroadcaster(),
		cron:    cron.New(),
	}
}

// Current returns the active session, or nil when signed out.
func (m *Manager) Current() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers a session-change listener. The returned handle must
// be canceled on teardown.
func (m *Manager) Subscribe() *Subscription {
	return m.events.subscribe()
}

// Restore loads the persisted session. An expired bundle gets one refresh
// attempt; if that fails it is discarded. A restored session is announced
// like a fresh sign-in so consumers hydrate their state.
func (m *Manager) Restore(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	stored, err := m.persist.Load()
	if err != nil {
		return err
	}
	if stored == nil {
		return nil
	}

	if stored.IsExpired(time.Now()) {
		refreshed, err := m.auth.Refresh(ctx, stored.RefreshToken)
		if err != nil {
			m.logger.Info("discarding expired session", zap.Error(err))
			return m.persist.Clear()
		}
		stored = refreshed
	}

	m.adopt(stored, EventSignedIn)
	m.logger.Info("session restored", zap.String("user_id", stored.User.ID))
	return nil
}

// SignInWithProvider starts a redirect-based OAuth flow and returns the
// authorize URL. There is no direct success value; the session arrives via
// AdoptTokens on the callback and is observed through Subscribe.
func (m *Manager) SignInWithProvider(name string) (string, error) {
	return m.auth.OAuthURL(name, m.cfg.RedirectURL)
}

// SignInWithEmail asks the provider to email a one-time sign-in link.
// Success means "link sent"; no session exists yet.
func (m *Manager) SignInWithEmail(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" || !strings.Contains(address, "@") {
		return domain.ErrInvalidEmail
	}
	if err := m.auth.SendOTP(ctx, address); err != nil {
		m.logger.Warn("one-time link request failed", zap.Error(err))
		return err
	}
	m.logger.Info("one-time link sent", zap.String("email", address))
	return nil
}

// CompleteOTP redeems an emailed one-time token and adopts the session.
func (m *Manager) CompleteOTP(ctx context.Context, tokenHash string) error {
	if tokenHash == "" {
		return domain.NewError(domain.ErrCodeInvalid, "missing one-time token")
	}
	session, err := m.auth.VerifyOTP(ctx, tokenHash)
	if err != nil {
		return err
	}
	m.adopt(session, EventSignedIn)
	return nil
}

// AdoptTokens accepts the token pair delivered by the OAuth redirect.
func (m *Manager) AdoptTokens(accessToken, refreshToken string) error {
	session, err := m.auth.SessionFromTokens(accessToken, refreshToken)
	if err != nil {
		return err
	}
	m.adopt(session, EventSignedIn)
	return nil
}

// SignOut invalidates the session with the provider and clears local
// state. On provider failure the local session is left untouched.
func (m *Manager) SignOut(ctx context.Context) error {
	current := m.Current()
	if current == nil {
		return nil
	}
	if err := m.auth.SignOut(ctx, current.AccessToken); err != nil {
		m.logger.Warn("sign-out failed", zap.Error(err))
		return err
	}
	m.drop()
	return nil
}

// StartAutoRefresh schedules the background token-refresh job.
func (m *Manager) StartAutoRefresh() error {
	spec := fmt.Sprintf("@every %ds", int(m.cfg.RefreshInterval.Seconds()))
	if _, err := m.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshInterval)
		defer cancel()
		m.refreshDue(ctx)
	}); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("session auto-refresh started", zap.Duration("interval", m.cfg.RefreshInterval))
	return nil
}

// Close stops the refresh job. Subscriptions are canceled by their owners.
func (m *Manager) Close(ctx context.Context) error {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

// refreshDue replaces the session when it is close to expiry. A session
// already past expiry that cannot be refreshed is dropped.
func (m *Manager) refreshDue(ctx context.Context) {
	current := m.Current()
	if current == nil || !current.ExpiresWithin(m.cfg.RefreshThreshold) {
		return
	}

	refreshed, err := m.auth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if current.IsExpired(time.Now()) {
			m.logger.Warn("session expired and refresh failed, signing out", zap.Error(err))
			m.drop()
			return
		}
		m.logger.Warn("session refresh failed, will retry", zap.Error(err))
		return
	}

	m.adopt(refreshed, EventTokenRefreshed)
	m.logger.Debug("session refreshed", zap.Time("expires_at", refreshed.ExpiresAt))
}

func (m *Manager) adopt(session *domain.Session, eventType EventType) {
	m.mu.Lock()
	m.current = session
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist.Save(session); err != nil {
			m.logger.Warn("failed to persist session", zap.Error(err))
		}
	}
	m.events.publish(Event{Type: eventType, Session: session})
}

func (m *Manager) drop() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist.Clear(); err != nil {
			m.logger.Warn("failed to clear persisted session", zap.Error(err))
		}
	}
	m.events.publish(Event{Type: EventSignedOut})
}
