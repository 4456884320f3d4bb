package provider

import (
	"context"

	"github.com/taskpane/app/domain"
)

// Auth is the boundary to the hosted authentication provider. OAuth flows,
// one-time-link issuance and token validation all happen on the provider
// side; this interface only reaches them over their API.
type Auth interface {
	// OAuthURL returns the authorize URL for a redirect-based OAuth flow.
	// The session resulting from the flow arrives on the redirect callback.
	OAuthURL(providerName, redirectTo string) (string, error)

	// SendOTP asks the provider to email a one-time sign-in link.
	SendOTP(ctx context.Context, email string) error

	// VerifyOTP redeems an emailed one-time token for a session.
	VerifyOTP(ctx context.Context, tokenHash string) (*domain.Session, error)

	// Refresh exchanges a refresh token for a replacement session.
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)

	// SignOut invalidates the session identified by the access token.
	SignOut(ctx context.Context, accessToken string) error

	// SessionFromTokens rebuilds a session bundle from a token pair handed
	// over by the provider redirect, decoding identity and expiry claims.
	SessionFromTokens(accessToken, refreshToken string) (*domain.Session, error)
}
