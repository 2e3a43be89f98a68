package store

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reclaims memory held by expired keys. Reads never
// depend on it; Get already hides expired entries.
type Sweeper struct {
	st       Store
	interval time.Duration
	logger   *log.Logger
	onSweep  func(removed int)
}

// NewSweeper returns a sweeper for st. onSweep, if non-nil, is called
// after every pass with the number of keys removed.
func NewSweeper(st Store, interval time.Duration, logger *log.Logger, onSweep func(removed int)) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		st:       st,
		interval: interval,
		logger:   logger,
		onSweep:  onSweep,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) runOnce() int {
	removed := s.st.RemoveExpired()
	if s.onSweep != nil {
		s.onSweep(removed)
	}
	if removed > 0 {
		s.logger.Printf("sweeper: removed %d expired keys", removed)
	}
	return removed
}
