package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskpane/app/api/handler"
	"github.com/taskpane/app/internal/app"
	"github.com/taskpane/app/internal/config"
	"github.com/taskpane/app/internal/infrastructure/monitor"
	"github.com/taskpane/app/internal/infrastructure/sessionstore"
	"github.com/taskpane/app/internal/middleware"
	"github.com/taskpane/app/internal/router"
	"github.com/taskpane/app/internal/services/lifecycle"
	"github.com/taskpane/app/pkg/httpcontext"
	"github.com/taskpane/app/pkg/logger"
	"github.com/taskpane/app/provider/rest"
	sessionUC "github.com/taskpane/app/usecase/session"
	taskUC "github.com/taskpane/app/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	authClient := rest.NewAuthClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.RequestTimeout)
	tableClient := rest.NewTableClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.RequestTimeout)

	store, err := sessionstore.Open(cfg.Session.StorePath)
	if err != nil {
		zapLogger.Fatal("failed to open session store", zap.Error(err))
	}
	manager.Register("session_store", func(ctx context.Context) error {
		return store.Close()
	})

	mon := monitor.New(authClient, tableClient, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	sessions := sessionUC.New(authClient, store, sessionUC.Config{
		RedirectURL:      cfg.Backend.RedirectURL,
		RefreshInterval:  cfg.Session.RefreshInterval,
		RefreshThreshold: cfg.Session.RefreshThreshold,
	}, zapLogger)
	tasks := taskUC.NewClient(tableClient, zapLogger)

	state := app.New(sessions, tasks, cfg.Context.RequestTimeout, zapLogger)
	state.Start()
	manager.Register("app_state", func(ctx context.Context) error {
		state.Close()
		return nil
	})

	if err := sessions.Restore(appCtx); err != nil {
		zapLogger.Warn("session restore failed", zap.Error(err))
	}
	if err := sessions.StartAutoRefresh(); err != nil {
		zapLogger.Fatal("failed to start session refresh", zap.Error(err))
	}
	manager.Register("session_manager", func(ctx context.Context) error {
		return sessions.Close(ctx)
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Page:   apiHandler.NewPageHandler(state, ctxAdapter, zapLogger),
		Auth:   apiHandler.NewAuthHandler(state, ctxAdapter, zapLogger),
		Task:   apiHandler.NewTaskHandler(state, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	sessionGate := middleware.RequireSession(sessions, zapLogger)
	r := router.New(handlers, sessionGate)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
