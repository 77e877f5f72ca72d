package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper periodically reconciles every cataloged counter against the
// actual record counts. Steady state never drifts (the atomic reservation
// is the only write path to reserved), so the sweep is a backstop for
// operator error and partial outages, and it logs loudly when it has to
// correct anything.
type Sweeper struct {
	scheduler gocron.Scheduler
}

// StartSweeper schedules the reconciliation sweep at the given interval
// and starts it immediately.
func StartSweeper(svc *AdmissionService, interval time.Duration) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			results, err := svc.ReconcileAll(ctx)
			if err != nil {
				log.Printf("reconcile sweep: %v", err)
			}
			for _, res := range results {
				if res.Drift != 0 {
					log.Printf("drift corrected for %s: reserved %d -> %d", res.EventKey, res.Before, res.After)
				}
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule reconcile sweep: %w", err)
	}

	scheduler.Start()
	return &Sweeper{scheduler: scheduler}, nil
}

// Stop shuts the sweep down, waiting for a running pass to finish.
func (s *Sweeper) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		log.Printf("stop reconcile sweep: %v", err)
	}
}
