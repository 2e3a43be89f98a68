package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/loganszeto/respcache/internal/config"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

const acceptBackoff = 5 * time.Millisecond

type Server struct {
	cfg    config.Config
	st     store.Store
	stats  *stats.Stats
	logger *log.Logger

	mu sync.Mutex
	ln net.Listener
}

func New(cfg config.Config, st store.Store, counters *stats.Stats, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if counters == nil {
		counters = stats.New()
	}
	if cfg.ReadChunk < 1 {
		cfg.ReadChunk = config.DefaultReadChunk
	}
	return &Server{
		cfg:    cfg,
		st:     st,
		stats:  counters,
		logger: logger,
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then closes every open
// connection and waits for their sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Printf("listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Printf("shutting down listener on %s", ln.Addr())
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Printf("accept: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr is the bound address, or nil before Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
