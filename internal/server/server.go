// Package server exposes the Slack webhook boundary and read-only mapping
// projections over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/auth"
	"github.com/zulandar/switchboard/internal/mapping"
	syncpkg "github.com/zulandar/switchboard/internal/sync"
	"gorm.io/gorm"
)

// Runner runs one synchronization to completion. Satisfied by
// *sync.Orchestrator; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, req syncpkg.Request) error
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	DB           *gorm.DB
	Verifier     *auth.Verifier
	Orchestrator Runner
	Port         int
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Verifier == nil {
		return fmt.Errorf("server: verifier is required")
	}
	if opts.Orchestrator == nil {
		return fmt.Errorf("server: orchestrator is required")
	}
	if opts.Port <= 0 {
		opts.Port = 3000
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts.DB, opts.Verifier, opts.Orchestrator)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin engine with all routes registered.
func NewRouter(db *gorm.DB, verifier *auth.Verifier, orchestrator Runner) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	mgr := mapping.NewManager(db)

	router.POST("/slack/message-action", handleMessageAction(verifier, orchestrator))
	router.GET("/health", handleHealth(db))

	api := router.Group("/api")
	api.GET("/mappings", handleMappingList(db))
	api.GET("/mappings/:id", handleMappingDetail(db))
	api.GET("/failed-mappings", handleFailedMappings(db))
	api.POST("/mappings/:id/retry", handleRetry(mgr))

	return router
}
