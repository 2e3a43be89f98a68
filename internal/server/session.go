package server

import (
	"errors"
	"io"

	"github.com/loganszeto/respcache/internal/protocol"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

// Buffers above this size are released once they drain.
const maxIdleBuffer = 64 * 1024

// Session holds the undecoded bytes of one connection. It is not safe for
// concurrent use; each connection owns exactly one.
type Session struct {
	st    store.Store
	stats *stats.Stats
	dec   protocol.Decoder
	buf   []byte
	out   []byte
}

func NewSession(st store.Store, counters *stats.Stats) *Session {
	if counters == nil {
		counters = stats.New()
	}
	return &Session{st: st, stats: counters}
}

// Feed appends p to the receive buffer and answers every complete frame
// in it, in order. Each reply is written to w before the next frame is
// dispatched. A trailing partial frame stays buffered for the next call.
// The only errors returned come from w.
func (s *Session) Feed(p []byte, w io.Writer) error {
	s.buf = append(s.buf, p...)

	off := 0
	defer func() { s.compact(off) }()

	for off < len(s.buf) {
		cmd, n, err := s.dec.Decode(s.buf[off:])
		off += n
		if errors.Is(err, protocol.ErrIncomplete) {
			return nil
		}

		var reply protocol.Reply
		if err != nil {
			s.stats.RecordError()
			reply = ErrorReply(err)
		} else {
			reply = Dispatch(s.st, s.stats, cmd)
		}

		s.out, err = protocol.AppendReply(s.out[:0], reply)
		if err != nil {
			return err
		}
		if _, err := w.Write(s.out); err != nil {
			return err
		}
	}
	return nil
}

// Buffered reports how many received bytes are waiting for the rest of
// their frame.
func (s *Session) Buffered() int {
	return len(s.buf)
}

func (s *Session) compact(off int) {
	if off == 0 {
		return
	}
	if off == len(s.buf) && cap(s.buf) > maxIdleBuffer {
		s.buf = nil
		return
	}
	s.buf = append(s.buf[:0], s.buf[off:]...)
}
