package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/quantfolio/trading-bot/internal/logger"
)

const (
	_readHeaderTimeout = 10 * time.Second
	_shutdownTimeout   = 5 * time.Second
)

// StatusServer serves the read-only status routes until its context ends,
// then drains in-flight requests before returning.
type StatusServer struct {
	s      *http.Server
	logger logger.Logger
}

func New(port string, handler *StatusHandler, logger logger.Logger) *StatusServer {
	return &StatusServer{
		s: &http.Server{
			Addr:              ":" + port,
			Handler:           handler.Mux(),
			ReadHeaderTimeout: _readHeaderTimeout,
		},
		logger: logger,
	}
}

func (s *StatusServer) Run(ctx context.Context) error {
	s.s.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.s.ListenAndServe()
	}()
	s.logger.Infof("status server listening on %s", s.s.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), _shutdownTimeout)
		defer cancel()
		return s.s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
