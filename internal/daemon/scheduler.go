package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mirrorbox/mirrorbox/internal/mirror"
)

// Scheduler runs synchronization passes on a single worker with a full
// interval of rest between them. The timer is armed only after a pass
// completes, so a slow pass delays the next one instead of letting
// ticks queue up. Passes never overlap.
type Scheduler struct {
	interval time.Duration
	clock    clockwork.Clock
	log      *slog.Logger
}

func NewScheduler(interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		clock:    clock,
		log:      logger,
	}
}

// Run executes pass immediately, then once per interval measured from
// each completion, until ctx is canceled. Pass errors are logged and
// never stop the loop. Cancellation takes effect between passes, a
// running pass is not interrupted.
func (s *Scheduler) Run(ctx context.Context, pass func() error) error {
	for {
		s.runPass(pass)

		s.log.Info("sleeping until next pass", "interval", s.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}
}

func (s *Scheduler) runPass(pass func() error) {
	err := pass()
	switch {
	case err == nil:
	case errors.Is(err, mirror.ErrSourceMissing):
		// already logged as a warning, the source may reappear later
	default:
		s.log.Error("synchronization pass abandoned", "error", err)
	}
}
