// Package scheduler runs the periodic reservation expiry sweep.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer releases lapsed reservations; inventory.Service implements it.
type Expirer interface {
	ExpireReservations(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper calls ExpireReservations every interval.  Runs never overlap:
// a sweep still running when the next one is due pushes it back.
type Sweeper struct {
	sched   gocron.Scheduler
	expirer Expirer
	timeout time.Duration
}

// NewSweeper registers the sweep job.  Call Start to begin running it.
func NewSweeper(expirer Expirer, interval time.Duration) (*Sweeper, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	s := &Sweeper{sched: sched, expirer: expirer, timeout: interval}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("expire-reservations"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.expirer.ExpireReservations(ctx, time.Time{}); err != nil {
		log.Printf("expiry-sweeper: sweep failed: %v", err)
	}
}

// Start begins running the job in the background.
func (s *Sweeper) Start() { s.sched.Start() }

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *Sweeper) Stop() error { return s.sched.Shutdown() }
