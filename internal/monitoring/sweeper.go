// Package monitoring runs background upkeep for the panel.
package monitoring

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweepable is anything with a retention window to apply, such as the event hub.
type Sweepable interface {
	Sweep(ctx context.Context) error
}

// Sweeper applies the event retention window on a ticker, so old events leave the log even
// while the scheduler is quiet.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewSweeper creates a new sweeper. Each sweep is bounded by timeout.
func NewSweeper(target Sweepable, interval, timeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run starts the sweeping loop. It returns after Stop.
func (s *Sweeper) Run() {
	defer close(s.stopped)
	log.Info().Dur("interval", s.interval).Msg("Starting event retention sweeper")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping event retention sweeper")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Stop halts the sweeper and waits for the loop to exit.
func (s *Sweeper) Stop() {
	close(s.done)
	<-s.stopped
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.target.Sweep(ctx); err != nil {
		log.Warn().Err(err).Msg("Event retention sweep failed")
	}
}
