// Package server accepts one JSON request per connection on a TCP or vsock
// listener and answers it through a Handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/auctionapi"
	"github.com/cloudx-io/auctionhouse/core"
)

const (
	TransportTCP   = "tcp"
	TransportVsock = "vsock"

	maxRequestBytes = 1 << 20
)

// Handler answers a decoded request.
type Handler interface {
	Handle(ctx context.Context, req auctionapi.Request) auctionapi.Response
}

// Config selects the listener and sizes the worker pool.
type Config struct {
	Transport   string        `toml:"transport" mapstructure:"transport" json:"transport"`
	Address     string        `toml:"address" mapstructure:"address" json:"address"`
	VsockPort   uint32        `toml:"vsock_port" mapstructure:"vsock_port" json:"vsock_port"`
	MaxWorkers  int           `toml:"max_workers" mapstructure:"max_workers" json:"max_workers"`
	ReadTimeout time.Duration `toml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`
}

// Listen opens the listener named by cfg.Transport.
func Listen(cfg Config) (net.Listener, error) {
	switch cfg.Transport {
	case "", TransportTCP:
		l, err := net.Listen("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return l, nil
	case TransportVsock:
		l, err := vsock.Listen(cfg.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Server runs a bounded pool of connection workers. A connection arriving
// while every worker is busy is closed immediately.
type Server struct {
	handler     Handler
	maxWorkers  int
	readTimeout time.Duration
	log         *zap.Logger

	wg sync.WaitGroup
}

func New(handler Handler, cfg Config, log *zap.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", cfg.MaxWorkers)
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		handler:     handler,
		maxWorkers:  cfg.MaxWorkers,
		readTimeout: timeout,
		log:         log,
	}, nil
}

// Serve accepts connections on l until ctx is cancelled, then closes l and
// waits for in-flight connections to finish.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("Failed to close listener", zap.Error(err))
		}
	})
	defer stop()
	defer s.wg.Wait()

	semaphore := make(chan struct{}, s.maxWorkers)
	s.log.Info("Auction server listening",
		zap.String("addr", l.Addr().String()),
		zap.Int("max_workers", s.maxWorkers))

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			s.log.Info("No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				s.log.Error("Failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic recovered in handleConnection", zap.Any("panic", r))
		}
		if err := conn.Close(); err != nil {
			s.log.Error("Failed to close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var req auctionapi.Request
	var resp auctionapi.Response
	dec := json.NewDecoder(io.LimitReader(conn, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		s.log.Error("Failed to decode request", zap.Error(err))
		resp = auctionapi.Response{
			Type:      auctionapi.TypeError,
			Code:      core.Code(core.ErrInvalidParameters),
			Message:   fmt.Sprintf("Failed to decode request: %v", err),
			Timestamp: time.Now().Unix(),
		}
	} else {
		s.log.Debug("Received request", zap.String("type", req.Type), zap.String("request_id", req.RequestID))
		resp = s.handler.Handle(ctx, req)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
		return
	}
	s.log.Debug("Sent response", zap.String("type", resp.Type), zap.Bool("success", resp.Success))
}
