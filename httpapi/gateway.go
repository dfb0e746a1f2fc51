package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Gateway serves the router on a listener until its context is cancelled.
type Gateway struct {
	srv *http.Server
	log *zap.Logger
}

func NewGateway(handler http.Handler, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Serve blocks until ctx is cancelled or the listener fails. On cancellation
// in-flight requests get shutdownTimeout to complete.
func (g *Gateway) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.log.Info("HTTP gateway listening", zap.String("addr", l.Addr().String()))
		errCh <- g.srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	g.log.Info("HTTP gateway stopped")
	return nil
}
