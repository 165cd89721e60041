/*
sweeper.go - Periodic expiry sweep

PURPOSE:
  Expiry is lazy: a certificate becomes expired the first time something
  validates it after valid_until. The sweeper makes that happen on a
  schedule too, so stats and listings catch up with the clock even for
  certificates nobody presents.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass calls Service.SweepExpired per organization
  - An organization failing does not stop the others
  - Sweeping and validation race safely: whichever persists the expiry
    first wins, the other sees a terminal certificate and does nothing

CONFIGURATION:
  - Interval: How often to sweep (default: 5 minutes)
  - Organizations: Explicit list; empty means ask the store

USAGE:
  sweeper := NewExpirySweeper(svc, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - giftcert/service.go: SweepExpired
  - giftcert/validation.go: The lazy expiry itself
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/giftcert-engine/giftcert"
)

// DefaultSweepInterval is used when Interval is not positive.
const DefaultSweepInterval = 5 * time.Minute

// ExpirySweeper persists overdue expiries in the background.
type ExpirySweeper struct {
	Service       *giftcert.Service
	Logger        *slog.Logger
	Interval      time.Duration
	Organizations []giftcert.OrganizationID

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpirySweeper creates a sweeper with the default interval.
func NewExpirySweeper(svc *giftcert.Service, logger *slog.Logger) *ExpirySweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{
		Service:  svc,
		Logger:   logger.With("component", "expiry_sweeper"),
		Interval: DefaultSweepInterval,
	}
}

// Start begins sweeping. Calling Start on a running sweeper does nothing.
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, interval)

	s.Logger.Info("expiry sweeper started", "interval", interval)
}

// Stop halts the sweeper and waits for an in-flight pass to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.Logger.Info("expiry sweeper stopped")
}

func (s *ExpirySweeper) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Organizations int
	Expired       int
	Failed        int
}

// RunNow performs one pass over every organization.
func (s *ExpirySweeper) RunNow(ctx context.Context) SweepResult {
	var result SweepResult

	orgs := s.Organizations
	if len(orgs) == 0 {
		discovered, err := s.Service.Organizations(ctx)
		if err != nil {
			s.Logger.Error("listing organizations failed", "error", err)
			result.Failed++
			return result
		}
		orgs = discovered
	}

	for _, org := range orgs {
		if ctx.Err() != nil {
			break
		}
		result.Organizations++
		n, err := s.Service.SweepExpired(ctx, org)
		result.Expired += n
		if err != nil {
			result.Failed++
			s.Logger.Error("expiry sweep failed",
				"organization_id", org,
				"expired_before_failure", n,
				"error", err,
			)
			continue
		}
		if n > 0 {
			s.Logger.Info("expired certificates", "organization_id", org, "count", n)
		}
	}
	return result
}
