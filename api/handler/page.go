package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskpane/app/internal/app"
	"github.com/taskpane/app/pkg/httpcontext"
	"github.com/taskpane/app/web"
)

// PageHandler serves the single page and the state snapshot it renders from.
type PageHandler struct {
	baseHandler
	state *app.State
}

func NewPageHandler(state *app.State, adapter *httpcontext.Adapter, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		baseHandler: newBaseHandler(adapter, logger),
		state:       state,
	}
}

// @Summary Serve the single page
// @Tags page
// @Router / [get]
func (h *PageHandler) Index(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.SetContentType("text/html; charset=utf-8")
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(web.IndexHTML)
}

// @Summary Current app state (screen, tasks, confirmations)
// @Tags page
// @Router /api/state [get]
func (h *PageHandler) State(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.state.View())
}
