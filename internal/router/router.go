package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskpane/app/api/handler"
)

type Handlers struct {
	Page   *apiHandler.PageHandler
	Auth   *apiHandler.AuthHandler
	Task   *apiHandler.TaskHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, sessionGate func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Single page + its state feed
	r.GET("/", handlers.Page.Index)
	r.GET("/api/state", handlers.Page.State)

	// Auth routes
	r.POST("/api/signin/oauth", handlers.Auth.SignInOAuth)
	r.POST("/api/signin/email", handlers.Auth.SignInEmail)
	r.GET("/auth/callback", handlers.Auth.Callback)
	r.POST("/api/signout", handlers.Auth.SignOut)

	// Task routes, reachable only with a session
	r.GET("/api/tasks", sessionGate(handlers.Task.GetTasks))
	r.POST("/api/tasks", sessionGate(handlers.Task.CreateTask))
	r.POST("/api/tasks/{id}/toggle", sessionGate(handlers.Task.ToggleTask))
	r.DELETE("/api/tasks/{id}", sessionGate(handlers.Task.DeleteTask))

	return r
}
