package workflow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"stemforge/internal/logging"
	"stemforge/internal/queue"
)

// SweepStats describes the most recent retention pass.
type SweepStats struct {
	At      time.Time
	Evicted int
}

// Sweeper evicts terminal jobs older than the retention window.
type Sweeper struct {
	store     *queue.Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	last SweepStats
}

// NewSweeper constructs a sweeper. Non-positive durations fall back to one
// day of retention and a fifteen minute interval.
func NewSweeper(store *queue.Store, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger.With(logging.String(logging.FieldComponent, "retention_sweeper")),
		now:       time.Now,
	}
}

// Run sweeps once after a short jitter and then on every tick until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Debug("retention sweeper started",
		logging.Duration("interval", s.interval),
		logging.Duration("retention", s.retention),
	)
	s.waitWithJitter(ctx)
	if ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("retention sweeper stopping", logging.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Sweep evicts expired jobs as of now and returns how many were removed.
func (s *Sweeper) Sweep(now time.Time) int {
	evicted := s.store.EvictExpired(now, s.retention)
	s.mu.Lock()
	s.last = SweepStats{At: now, Evicted: evicted}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("expired jobs evicted",
			logging.String(logging.FieldEventType, "retention_sweep"),
			logging.Int("evicted", evicted),
			logging.Duration("retention", s.retention),
		)
	}
	return evicted
}

// Last returns the stats from the most recent sweep.
func (s *Sweeper) Last() SweepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// waitWithJitter delays up to a tenth of the interval so restarts do not
// line sweeps up with the previous process.
func (s *Sweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
