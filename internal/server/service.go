package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Service owns the HTTP listener for the compliance API.
type Service struct {
	httpServer *http.Server
	log        *logger.Logger
}

func NewService(port string, handler http.Handler, log *logger.Logger) *Service {
	return &Service{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
