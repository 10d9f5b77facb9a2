// Package server exposes the diagnosis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/symptra/internal/classify"
	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
)

// Service is what the HTTP layer needs from the pipeline
type Service interface {
	Diagnose(ctx context.Context, text string) (*model.Response, error)
	Retrain(ctx context.Context) (*classify.Bundle, error)
	DiseaseDetails(name string) (model.Details, bool)
	Model() *classify.Bundle
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(svc Service, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	h := NewHandler(svc)

	r.GET("/healthz", h.Health)

	apiV1 := r.Group("/api/v1")
	{
		symptoms := apiV1.Group("/symptoms")
		{
			symptoms.POST("/submit", h.Submit)
		}

		diseases := apiV1.Group("/diseases")
		{
			diseases.GET("/:name", h.Disease)
		}

		modelGroup := apiV1.Group("/model")
		{
			modelGroup.GET("", h.ModelInfo)
			modelGroup.POST("/retrain", h.Retrain)
		}
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// RequestLogger logs one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Infow("http request",
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}
