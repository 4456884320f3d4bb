package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/internal/testutil"
)

// memPersistence is an in-memory Persistence for tests.
type memPersistence struct {
	session *domain.Session
	saveErr error
}

func (p *memPersistence) Load() (*domain.Session, error) { return p.session, nil }
func (p *memPersistence) Save(s *domain.Session) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.session = s
	return nil
}
func (p *memPersistence) Clear() error {
	p.session = nil
	return nil
}

func newManager(auth *testutil.FakeAuth, persist Persistence) *Manager {
	return New(auth, persist, Config{RedirectURL: "http://localhost:3000/auth/callback"}, nil)
}

func waitEvent(t *testing.T, sub *Subscription, want EventType) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed while waiting for %s", want)
		}
		if event.Type != want {
			t.Fatalf("got event %s, want %s", event.Type, want)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("no %s event", want)
	}
	return Event{}
}

func TestSignInWithEmailSendsLink(t *testing.T) {
	auth := &testutil.FakeAuth{}
	m := newManager(auth, nil)

	if err := m.SignInWithEmail(context.Background(), "  a@x.com  "); err != nil {
		t.Fatalf("SignInWithEmail: %v", err)
	}

	sent := auth.OTPSent()
	if len(sent) != 1 || sent[0] != "a@x.com" {
		t.Fatalf("link requested for %v", sent)
	}
	// link sent means no session yet
	if m.Current() != nil {
		t.Fatal("session appeared before the link was redeemed")
	}
}

func TestSignInWithEmailValidation(t *testing.T) {
	auth := &testutil.FakeAuth{}
	m := newManager(auth, nil)

	for _, address := range []string{"", "   ", "not-an-email"} {
		err := m.SignInWithEmail(context.Background(), address)
		if !errors.Is(err, domain.ErrInvalidEmail) {
			t.Errorf("SignInWithEmail(%q) = %v, want ErrInvalidEmail", address, err)
		}
	}
	if len(auth.OTPSent()) != 0 {
		t.Error("invalid addresses reached the provider")
	}
}

func TestSignInWithEmailProviderError(t *testing.T) {
	auth := &testutil.FakeAuth{SendOTPErr: domain.NewError(domain.ErrCodeAuth, "address rejected")}
	m := newManager(auth, nil)

	err := m.SignInWithEmail(context.Background(), "a@x.com")
	if !domain.IsDomainError(err, domain.ErrCodeAuth) {
		t.Fatalf("got %v, want AUTH error", err)
	}
}

func TestCompleteOTPAdoptsSession(t *testing.T) {
	auth := &testutil.FakeAuth{VerifySession: testutil.NewSession("alice", "a@x.com")}
	persist := &memPersistence{}
	m := newManager(auth, persist)

	sub := m.Subscribe()
	defer sub.Cancel()

	if err := m.CompleteOTP(context.Background(), "token-hash"); err != nil {
		t.Fatalf("CompleteOTP: %v", err)
	}

	event := waitEvent(t, sub, EventSignedIn)
	if event.Session.User.ID != "alice" {
		t.Fatalf("signed in as %q", event.Session.User.ID)
	}
	if m.Current() == nil || m.Current().User.ID != "alice" {
		t.Fatal("current session not set")
	}
	if persist.session == nil {
		t.Fatal("session not persisted")
	}
}

func TestAdoptTokensBroadcasts(t *testing.T) {
	auth := &testutil.FakeAuth{TokenSession: testutil.NewSession("alice", "a@x.com")}
	m := newManager(auth, nil)

	sub := m.Subscribe()
	defer sub.Cancel()

	if err := m.AdoptTokens("access", "refresh"); err != nil {
		t.Fatalf("AdoptTokens: %v", err)
	}
	waitEvent(t, sub, EventSignedIn)
}

func TestSignOutClearsState(t *testing.T) {
	auth := &testutil.FakeAuth{VerifySession: testutil.NewSession("alice", "")}
	persist := &memPersistence{}
	m := newManager(auth, persist)

	if err := m.CompleteOTP(context.Background(), "token-hash"); err != nil {
		t.Fatalf("CompleteOTP: %v", err)
	}

	sub := m.Subscribe()
	defer sub.Cancel()

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	waitEvent(t, sub, EventSignedOut)

	if m.Current() != nil {
		t.Fatal("session survived sign-out")
	}
	if persist.session != nil {
		t.Fatal("persisted session survived sign-out")
	}
	if auth.SignOutCalls != 1 {
		t.Fatalf("provider sign-out called %d times", auth.SignOutCalls)
	}
}

func TestSignOutProviderFailureKeepsSession(t *testing.T) {
	auth := &testutil.FakeAuth{VerifySession: testutil.NewSession("alice", "")}
	m := newManager(auth, nil)

	if err := m.CompleteOTP(context.Background(), "token-hash"); err != nil {
		t.Fatalf("CompleteOTP: %v", err)
	}

	auth.SignOutErr = domain.NewError(domain.ErrCodeAuth, "provider unavailable")
	if err := m.SignOut(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if m.Current() == nil {
		t.Fatal("session cleared despite provider failure")
	}
}

func TestSignOutWithoutSessionIsNoop(t *testing.T) {
	auth := &testutil.FakeAuth{}
	m := newManager(auth, nil)

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if auth.SignOutCalls != 0 {
		t.Fatal("provider called without a session")
	}
}

func TestSignInWithProviderURL(t *testing.T) {
	auth := &testutil.FakeAuth{}
	m := newManager(auth, nil)

	url, err := m.SignInWithProvider("github")
	if err != nil {
		t.Fatalf("SignInWithProvider: %v", err)
	}
	if !strings.Contains(url, "provider=github") || !strings.Contains(url, "auth/callback") {
		t.Fatalf("unexpected authorize URL %q", url)
	}
	// redirect-based flow: no session until the callback lands
	if m.Current() != nil {
		t.Fatal("session appeared before the redirect returned")
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	m := newManager(&testutil.FakeAuth{}, nil)

	sub := m.Subscribe()
	sub.Cancel()
	sub.Cancel()

	if _, ok := <-sub.Events(); ok {
		t.Fatal("channel still open after cancel")
	}

	// canceled subscribers no longer receive events
	m.events.publish(Event{Type: EventSignedOut})
}

func TestRestoreValidSession(t *testing.T) {
	persist := &memPersistence{session: testutil.NewSession("alice", "a@x.com")}
	m := newManager(&testutil.FakeAuth{}, persist)

	sub := m.Subscribe()
	defer sub.Cancel()

	if err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	waitEvent(t, sub, EventSignedIn)
	if m.Current() == nil {
		t.Fatal("session not restored")
	}
}

func TestRestoreExpiredSessionRefreshes(t *testing.T) {
	expired := testutil.NewSession("alice", "")
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	auth := &testutil.FakeAuth{RefreshResult: testutil.NewSession("alice", "")}
	persist := &memPersistence{session: expired}
	m := newManager(auth, persist)

	if err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if auth.RefreshCalls != 1 {
		t.Fatalf("refresh called %d times", auth.RefreshCalls)
	}
	if current := m.Current(); current == nil || current.IsExpired(time.Now()) {
		t.Fatal("expired bundle not replaced")
	}
}

func TestRestoreExpiredSessionDiscardedWhenRefreshFails(t *testing.T) {
	expired := testutil.NewSession("alice", "")
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	auth := &testutil.FakeAuth{RefreshErr: domain.NewError(domain.ErrCodeAuth, "revoked")}
	persist := &memPersistence{session: expired}
	m := newManager(auth, persist)

	if err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m.Current() != nil {
		t.Fatal("unusable bundle kept")
	}
	if persist.session != nil {
		t.Fatal("unusable bundle still persisted")
	}
}

func TestRefreshDueReplacesExpiringSession(t *testing.T) {
	expiring := testutil.NewSession("alice", "")
	expiring.ExpiresAt = time.Now().Add(time.Minute)

	replacement := testutil.NewSession("alice", "")
	replacement.AccessToken = "rotated"
	auth := &testutil.FakeAuth{VerifySession: expiring, RefreshResult: replacement}
	m := New(auth, nil, Config{RefreshThreshold: 5 * time.Minute}, nil)

	if err := m.CompleteOTP(context.Background(), "token-hash"); err != nil {
		t.Fatalf("CompleteOTP: %v", err)
	}

	sub := m.Subscribe()
	defer sub.Cancel()

	m.refreshDue(context.Background())
	waitEvent(t, sub, EventTokenRefreshed)
	if m.Current().AccessToken != replacement.AccessToken {
		t.Fatal("bundle not replaced")
	}
}

func TestRefreshDueDropsDeadSession(t *testing.T) {
	dead := testutil.NewSession("alice", "")
	dead.ExpiresAt = time.Now().Add(-time.Minute)

	auth := &testutil.FakeAuth{VerifySession: dead, RefreshErr: domain.NewError(domain.ErrCodeAuth, "revoked")}
	m := New(auth, nil, Config{RefreshThreshold: 5 * time.Minute}, nil)

	if err := m.CompleteOTP(context.Background(), "token-hash"); err != nil {
		t.Fatalf("CompleteOTP: %v", err)
	}

	sub := m.Subscribe()
	defer sub.Cancel()

	m.refreshDue(context.Background())
	waitEvent(t, sub, EventSignedOut)
	if m.Current() != nil {
		t.Fatal("dead session kept")
	}
}
