// Package server exposes the background service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/types"
	"github.com/gin-gonic/gin"
)

// Generator produces replies and tests the credential.
type Generator interface {
	Generate(ctx context.Context, req types.GenerationRequest) (string, error)
	TestConnection(ctx context.Context, apiKey string) (string, error)
}

// Settings reads and writes the assistant settings.
type Settings interface {
	Assistant() (config.AssistantSettings, error)
	UpdateAssistant(data map[string]any) (config.AssistantSettings, error)
}

// NewRouter builds the service routes.
func NewRouter(gen Generator, settings Settings, log *logging.Logger) *gin.Engine {
	if log == nil {
		log = logging.Discard()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handler{gen: gen, settings: settings, log: log}
	v1 := router.Group("/v1")
	{
		v1.POST("/generate", h.generate)
		v1.GET("/settings", h.getSettings)
		v1.PUT("/settings", h.putSettings)
		v1.POST("/settings/test", h.testSettings)
	}
	return router
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Server runs the router until its context is cancelled.
type Server struct {
	http *http.Server
	log  *logging.Logger
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      3 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("background service listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Infof("shutting down background service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	<-errCh
	return nil
}
