package rest

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/taskpane/app/domain"
)

// serve runs handler on an in-memory listener and rewires client to it.
func serve(t *testing.T, client *httpClient, handler fasthttp.RequestHandler) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { ln.Close() })

	client.client = &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestSendOTP(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)

	var gotPath, gotKey string
	var gotBody map[string]interface{}
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotKey = string(ctx.Request.Header.Peek("apikey"))
		_ = json.Unmarshal(ctx.PostBody(), &gotBody)
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	if err := client.SendOTP(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if gotPath != "/auth/v1/otp" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "anon-key" {
		t.Errorf("apikey = %q", gotKey)
	}
	if gotBody["email"] != "a@x.com" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSendOTPRejected(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		ctx.SetBodyString(`{"msg":"address is not allowed"}`)
	})

	err := client.SendOTP(context.Background(), "a@x.com")
	if !domain.IsDomainError(err, domain.ErrCodeAuth) {
		t.Fatalf("got %v, want AUTH error", err)
	}
	if err.Error() != "address is not allowed" {
		t.Fatalf("provider message lost: %q", err.Error())
	}
}

func TestVerifyOTP(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/auth/v1/verify" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(`{
			"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":3600,
			"user":{"id":"alice","email":"a@x.com","user_metadata":{"full_name":"Alice","avatar_url":"https://img/a.png"}}
		}`)
	})

	session, err := client.VerifyOTP(context.Background(), "token-hash")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if session.AccessToken != "at" || session.RefreshToken != "rt" {
		t.Fatalf("token bundle: %+v", session)
	}
	if session.User.ID != "alice" || session.User.Name != "Alice" || session.User.AvatarURL != "https://img/a.png" {
		t.Fatalf("user: %+v", session.User)
	}
	if session.IsExpired(time.Now()) {
		t.Fatal("expires_in not applied")
	}
}

func TestRefreshUsesGrantType(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)

	var gotGrant string
	serve(t, &client.httpClient, func(ctx *fasthttp.RequestCtx) {
		gotGrant = string(ctx.QueryArgs().Peek("grant_type"))
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(`{"access_token":"at2","refresh_token":"rt2","token_type":"bearer","expires_in":3600,"user":{"id":"alice"}}`)
	})

	session, err := client.Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if gotGrant != "refresh_token" {
		t.Errorf("grant_type = %q", gotGrant)
	}
	if session.AccessToken != "at2" {
		t.Errorf("bundle not replaced: %+v", session)
	}
}

func TestOAuthURL(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)

	url, err := client.OAuthURL("github", "http://localhost:3000/auth/callback")
	if err != nil {
		t.Fatalf("OAuthURL: %v", err)
	}
	want := "http://backend/auth/v1/authorize?provider=github&redirect_to=http%3A%2F%2Flocalhost%3A3000%2Fauth%2Fcallback"
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}

	if _, err := client.OAuthURL("", ""); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("missing provider name accepted: %v", err)
	}
}

func TestSessionFromTokens(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)

	exp := time.Now().Add(45 * time.Minute).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "alice",
		"email": "a@x.com",
		"exp":   exp,
		"user_metadata": map[string]interface{}{
			"full_name": "Alice",
		},
	})
	accessToken, err := token.SignedString([]byte("provider-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	session, err := client.SessionFromTokens(accessToken, "rt")
	if err != nil {
		t.Fatalf("SessionFromTokens: %v", err)
	}
	if session.User.ID != "alice" || session.User.Email != "a@x.com" || session.User.Name != "Alice" {
		t.Fatalf("claims not decoded: %+v", session.User)
	}
	if session.ExpiresAt.Unix() != exp {
		t.Fatalf("exp = %v, want %v", session.ExpiresAt.Unix(), exp)
	}
	if session.RefreshToken != "rt" {
		t.Fatalf("refresh token lost: %+v", session)
	}
}

func TestSessionFromTokensMalformed(t *testing.T) {
	client := NewAuthClient("http://backend", "anon-key", time.Second)
	if _, err := client.SessionFromTokens("not-a-jwt", "rt"); !domain.IsDomainError(err, domain.ErrCodeAuth) {
		t.Fatalf("got %v, want AUTH error", err)
	}
}
