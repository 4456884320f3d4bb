package domain

import "time"

// Session is the opaque token bundle issued by the auth provider. The
// client references it (bearer token, refresh token, expiry) but never
// mints or validates it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// ExpiresWithin reports whether the bundle is due for a refresh.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.After(time.Now().Add(d))
}
