package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpane/app/api/transport"
	"github.com/taskpane/app/domain"
	"github.com/taskpane/app/internal/app"
	"github.com/taskpane/app/pkg/httpcontext"
)

type AuthHandler struct {
	baseHandler
	state *app.State
}

func NewAuthHandler(state *app.State, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		state:       state,
	}
}

// @Summary Start a redirect-based OAuth sign-in
// @Tags auth
// @Router /api/signin/oauth [post]
func (h *AuthHandler) SignInOAuth(ctx *fasthttp.RequestCtx) {
	var req transport.OAuthSignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Provider == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	url, err := h.state.SignInWithProvider(req.Provider)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.OAuthRedirectResponse{RedirectURL: url})
}

// @Summary Request a one-time sign-in link by email
// @Tags auth
// @Router /api/signin/email [post]
func (h *AuthHandler) SignInEmail(ctx *fasthttp.RequestCtx) {
	var req transport.EmailSignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.state.SignInWithEmail(stdCtx, req.Email); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.LinkSentResponse{LinkSentTo: req.Email})
}

// @Summary Complete a sign-in redirect from the auth provider
// @Tags auth
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	accessToken := string(args.Peek("access_token"))
	refreshToken := string(args.Peek("refresh_token"))
	tokenHash := string(args.Peek("token_hash"))

	if accessToken == "" && tokenHash == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "callback carries no credentials", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.state.CompleteCallback(stdCtx, accessToken, refreshToken, tokenHash); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Redirect("/", http.StatusFound)
}

// @Summary Sign out
// @Tags auth
// @Router /api/signout [post]
func (h *AuthHandler) SignOut(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.state.SignOut(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}
