package middleware

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpane/app/api/transport"
	"github.com/taskpane/app/domain"
)

// SessionSource exposes the active session to the gate.
type SessionSource interface {
	Current() *domain.Session
}

// RequireSession gates task routes on "has session"; without one the
// operations are unreachable and the caller gets a 401 envelope.
func RequireSession(sessions SessionSource, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if sessions.Current() == nil {
				logger.Debug("rejected request without session", zap.ByteString("path", ctx.Path()))
				ctx.Response.Header.SetContentType("application/json")
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), "sign in required", nil))
				ctx.SetBody(body)
				return
			}
			next(ctx)
		}
	}
}
