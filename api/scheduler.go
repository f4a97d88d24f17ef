/*
scheduler.go - Daily rollover scheduler

PURPOSE:
  Runs budget.Service.Rollover on a cron schedule so expired PTO is pruned
  and the snack lock rolls over to the new day even when nobody opens the
  dashboard. Reads already roll the lock lazily; the job keeps the stored
  state and the metrics current.

SCHEDULE:
  Six-field cron expression (seconds first). Default "0 5 0 * * *", five
  minutes past midnight in the server's local time zone.

USAGE:
  sched, err := NewRolloverScheduler(svc, "0 5 0 * * *", log)
  sched.Start()
  defer sched.Stop()

SEE ALSO:
  - budget/service.go: Rollover
  - handlers.go: POST /api/allowance/refresh (manual refresh)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/warp/budget-engine/budget"
)

// DefaultRolloverSchedule runs shortly after midnight.
const DefaultRolloverSchedule = "0 5 0 * * *"

// rolloverTimeout bounds one run so a stuck store cannot pile up jobs.
const rolloverTimeout = 30 * time.Second

// RolloverScheduler handles the daily housekeeping run.
type RolloverScheduler struct {
	Service *budget.Service
	Metrics *Metrics

	cron    *cron.Cron
	entry   cron.EntryID
	log     zerolog.Logger
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewRolloverScheduler registers the rollover job. The scheduler does not
// run until Start is called.
func NewRolloverScheduler(svc *budget.Service, schedule string, log zerolog.Logger) (*RolloverScheduler, error) {
	if schedule == "" {
		schedule = DefaultRolloverSchedule
	}
	rs := &RolloverScheduler{
		Service: svc,
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With().Str("component", "scheduler").Logger(),
	}
	id, err := rs.cron.AddFunc(schedule, rs.RunNow)
	if err != nil {
		return nil, fmt.Errorf("register rollover %q: %w", schedule, err)
	}
	rs.entry = id
	return rs, nil
}

// Start starts the cron scheduler.
func (rs *RolloverScheduler) Start() {
	rs.cron.Start()
	rs.log.Info().Time("next_run", rs.NextRun()).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (rs *RolloverScheduler) Stop() {
	<-rs.cron.Stop().Done()
	rs.log.Info().Msg("scheduler stopped")
}

// RunNow executes the rollover immediately.
func (rs *RolloverScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), rolloverTimeout)
	defer cancel()

	pruned, err := rs.Service.Rollover(ctx)

	rs.mu.Lock()
	rs.lastRun = rs.Service.Now()
	rs.lastErr = err
	rs.mu.Unlock()

	if err != nil {
		rs.log.Error().Err(err).Msg("rollover failed")
		return
	}
	rs.log.Info().Int("pto_pruned", pruned).Msg("rollover complete")

	if rs.Metrics != nil {
		if st, err := rs.Service.Export(ctx); err == nil {
			rs.Metrics.ObserveState(st)
		}
	}
}

// NextRun returns when the rollover will next fire (zero before Start).
func (rs *RolloverScheduler) NextRun() time.Time {
	return rs.cron.Entry(rs.entry).Next
}

// LastRun reports the time and outcome of the most recent run.
func (rs *RolloverScheduler) LastRun() (time.Time, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.lastErr
}
