// Package service is a reference implementation of the prediction endpoint
// the client talks to.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Options struct {
	Addr      string
	RateLimit float64
	Burst     int
}

type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// NewRouter wires the endpoints and middleware around a model.
func NewRouter(model *Model, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{model: model, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverPanics(logger))
	r.Use(logRequests(logger))
	r.Use(allowAllOrigins())
	r.Use(rateLimit(opts.RateLimit, opts.Burst))

	r.Get("/", h.status)
	r.Post("/predict", h.predict)
	return r
}

func New(model *Model, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(model, opts, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("prediction service listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down prediction service")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
