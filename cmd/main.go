package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"studydesk/internal/api"
	"studydesk/internal/config"
	fileutil "studydesk/internal/file"
	"studydesk/internal/workspace"
)

func main() {

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	router := setupRouter()

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	manager := buildManager(cfg)
	wireAPI(router, manager)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager.SetBaseContext(baseCtx)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, manager, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func buildManager(cfg config.Config) *workspace.Manager {
	opts := workspace.DefaultOptions()
	opts.UploadPolicy = cfg.Upload.Policy()
	opts.GenerationPolicy = cfg.Generation.Policy()
	opts.GenerationDelay = cfg.Generation.WorkDelay()
	opts.MaxActiveUploads = cfg.MaxActiveUploads
	opts.MaxWorkspaces = cfg.MaxWorkspaces
	opts.AllowedExtensions = cfg.AllowedExtensions
	opts.MaxUploadBytes = cfg.MaxUploadBytes
	opts.DataDir = cfg.DataDir
	return workspace.NewManager(opts)
}

func wireAPI(router *gin.Engine, manager *workspace.Manager) {
	apiHandler := api.NewAPI(manager)
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

// gracefulShutdown cancels the base context first so open event streams end
// and srv.Shutdown does not wait on them.
func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, manager *workspace.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cancelBase()
	done := manager.DisposeAll(ctx)
	if !done {
		log.Warn().Msg("simulations did not stop before timeout")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}
	log.Info().Msg("server exited cleanly")
}
