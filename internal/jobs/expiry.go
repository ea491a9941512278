// Package jobs runs the background work of the server.
package jobs

import (
	"context"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
)

// Expirer expires COMPLETED payments whose period has ended.
type Expirer interface {
	ExpireOldPayments(ctx context.Context) (int64, error)
}

// ExpirySweeper calls Expirer on a fixed interval.
type ExpirySweeper struct {
	svc      Expirer
	interval time.Duration
	log      logging.Logger
}

func NewExpirySweeper(svc Expirer, interval time.Duration, log logging.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{svc: svc, interval: interval, log: log}
}

// Run sweeps once at start and then every interval until ctx is done.  A
// failed sweep is logged and retried on the next tick.
func (s *ExpirySweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, min(s.interval, time.Minute))
	defer cancel()

	n, err := s.svc.ExpireOldPayments(sctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).Warn("payment expiry sweep failed")
		}
		return
	}
	if n > 0 {
		s.log.WithField("expired", n).Info("payments expired")
	}
}
