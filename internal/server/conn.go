package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()
	s.stats.RecordConnOpened()
	defer s.stats.RecordConnClosed()

	// Shutdown unblocks the pending Read by closing the socket.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	sess := NewSession(s.st, s.stats)
	chunk := make([]byte, s.cfg.ReadChunk)
	for {
		if s.cfg.IdleTimeout > 0 {
			if err := c.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				return
			}
		}
		n, err := c.Read(chunk)
		if n > 0 {
			if werr := sess.Feed(chunk[:n], c); werr != nil {
				s.logConnErr(ctx, c, "write", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logConnErr(ctx, c, "read", err)
			}
			return
		}
	}
}

func (s *Server) logConnErr(ctx context.Context, c net.Conn, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Printf("conn %s: %s: %v", c.RemoteAddr(), op, err)
}
