package sweeper

import (
	"context"
	"time"

	"auction-market/utils"
)

// Expirer closes auctions whose end time has passed.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Sweeper periodically finalizes expired auctions. Manual finalization stays
// available; the sweeper only catches auctions nobody closed.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
}

func New(expirer Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{expirer: expirer, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	utils.Info("Auction sweeper started", map[string]any{"interval": s.interval.String()})
	for {
		select {
		case <-ctx.Done():
			utils.Info("Auction sweeper stopped", nil)
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			utils.Error("Auction sweep failed", map[string]any{"error": err.Error()})
		}
		return
	}
	if n > 0 {
		utils.Info("Expired auctions finalized", map[string]any{"count": n})
	}
}
