package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"

	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/provider"
)

// AuthClient talks to the hosted auth provider's HTTP surface.
type AuthClient struct {
	httpClient
}

// NewAuthClient returns an HTTP-backed implementation of provider.Auth.
func NewAuthClient(baseURL, apiKey string, timeout time.Duration) *AuthClient {
	return &AuthClient{httpClient: newHTTPClient(baseURL, apiKey, timeout)}
}

var _ provider.Auth = (*AuthClient)(nil)

// sessionPayload is the provider's session response body.
type sessionPayload struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         userPayload `json:"user"`
}

type userPayload struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata"`
}

func (p sessionPayload) toDomain() *domain.Session {
	expiresAt := time.Unix(p.ExpiresAt, 0)
	if p.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return &domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresAt:    expiresAt,
		User:         p.User.toDomain(),
	}
}

func (p userPayload) toDomain() domain.User {
	user := domain.User{ID: p.ID, Email: p.Email}
	if name, ok := p.Metadata["full_name"].(string); ok {
		user.Name = name
	}
	if avatar, ok := p.Metadata["avatar_url"].(string); ok {
		user.AvatarURL = avatar
	}
	return user
}

func (c *AuthClient) OAuthURL(providerName, redirectTo string) (string, error) {
	if providerName == "" {
		return "", domain.NewError(domain.ErrCodeInvalid, "missing oauth provider name")
	}
	query := url.Values{}
	query.Set("provider", providerName)
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return fmt.Sprintf("%s/auth/v1/authorize?%s", c.baseURL, query.Encode()), nil
}

func (c *AuthClient) SendOTP(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]interface{}{
		"email":       email,
		"create_user": true,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPost, c.baseURL+"/auth/v1/otp", "")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return domain.WrapError(domain.ErrCodeAuth, "one-time link request failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return decodeError(domain.ErrCodeAuth, "one-time link rejected", resp)
	}
	return nil
}

func (c *AuthClient) VerifyOTP(ctx context.Context, tokenHash string) (*domain.Session, error) {
	body, err := json.Marshal(map[string]string{
		"type":       "magiclink",
		"token_hash": tokenHash,
	})
	if err != nil {
		return nil, err
	}
	return c.sessionRequest(ctx, c.baseURL+"/auth/v1/verify", body, "one-time link verification failed")
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	return c.sessionRequest(ctx, c.baseURL+"/auth/v1/token?grant_type=refresh_token", body, "session refresh failed")
}

func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPost, c.baseURL+"/auth/v1/logout", accessToken)

	if err := c.do(ctx, req, resp); err != nil {
		return domain.WrapError(domain.ErrCodeAuth, "sign-out request failed", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return decodeError(domain.ErrCodeAuth, "sign-out rejected", resp)
	}
	return nil
}

// SessionFromTokens decodes the access token claims without signature
// verification. The signing secret never leaves the provider; tokens
// presented here were already validated server-side.
func (c *AuthClient) SessionFromTokens(accessToken, refreshToken string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, domain.WrapError(domain.ErrCodeAuth, "malformed access token", err)
	}

	user := domain.User{}
	if sub, ok := claims["sub"].(string); ok {
		user.ID = sub
	}
	if user.ID == "" {
		return nil, domain.NewError(domain.ErrCodeAuth, "access token has no subject")
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		if name, ok := meta["full_name"].(string); ok {
			user.Name = name
		}
		if avatar, ok := meta["avatar_url"].(string); ok {
			user.AvatarURL = avatar
		}
	}

	session := &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         user,
	}
	if exp, ok := claims["exp"].(float64); ok {
		session.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return session, nil
}

// Ping probes the auth surface's health endpoint.
func (c *AuthClient) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodGet, c.baseURL+"/auth/v1/health", "")
	if err := c.do(ctx, req, resp); err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode()) {
		return domain.NewError(domain.ErrCodeAuth, "auth endpoint unhealthy")
	}
	return nil
}

func (c *AuthClient) sessionRequest(ctx context.Context, uri string, body []byte, fallback string) (*domain.Session, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.prepare(req, fasthttp.MethodPost, uri, "")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, domain.WrapError(domain.ErrCodeAuth, fallback, err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, decodeError(domain.ErrCodeAuth, fallback, resp)
	}

	var payload sessionPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, domain.WrapError(domain.ErrCodeAuth, "malformed session response", err)
	}
	if payload.AccessToken == "" {
		return nil, domain.NewError(domain.ErrCodeAuth, "session response has no access token")
	}
	return payload.toDomain(), nil
}
