package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventra/eventra/internal/observability"
)

// Promoter is the store surface the sweeper needs.
type Promoter interface {
	PromoteDue(ctx context.Context, now time.Time) (toLive int64, toCompleted int64, err error)
}

// Sweeper advances event statuses on a timer: approved events go live once
// their start date passes, live events complete once their end date passes.
// Both updates are single idempotent statements, so running more than one
// sweeper instance is safe.
type Sweeper struct {
	events   Promoter
	log      *slog.Logger
	prom     *observability.Prom
	interval time.Duration
}

func NewSweeper(events Promoter, log *slog.Logger, prom *observability.Prom, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Sweeper{
		events:   events,
		log:      log,
		prom:     prom,
		interval: interval,
	}
}

// Run sweeps until the context is cancelled. It sweeps once immediately so a
// freshly started instance does not wait a full interval to catch up.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("lifecycle sweeper starting", "interval", s.interval.String())

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("lifecycle sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()

	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	toLive, toCompleted, err := s.events.PromoteDue(sweepCtx, time.Now().UTC())

	if s.prom != nil {
		s.prom.PromoterSweepTime.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		s.log.Error("lifecycle sweep failed", "error", err)
		return
	}

	if s.prom != nil {
		if toLive > 0 {
			s.prom.PromotionsTotal.WithLabelValues("approved_to_live").Add(float64(toLive))
		}
		if toCompleted > 0 {
			s.prom.PromotionsTotal.WithLabelValues("live_to_completed").Add(float64(toCompleted))
		}
	}

	if toLive > 0 || toCompleted > 0 {
		s.log.Info("lifecycle sweep applied promotions",
			"to_live", toLive,
			"to_completed", toCompleted,
		)
	}
}
