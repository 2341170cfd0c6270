// Package monitoring runs the console's background upkeep.
package monitoring

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/dispatch"
)

// Janitor sweeps expired confirmations and prunes old activity entries on
// a cron schedule.
type Janitor struct {
	dispatcher *dispatch.Dispatcher
	activity   activity.RecorderProvider
	schedule   cron.Schedule
	retention  time.Duration
	done       chan bool
}

// NewJanitor creates a janitor. expr is a standard cron expression;
// retention bounds how far back the activity log reaches.
func NewJanitor(dispatcher *dispatch.Dispatcher, rec activity.RecorderProvider, expr string, retention time.Duration) (*Janitor, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		dispatcher: dispatcher,
		activity:   rec,
		schedule:   schedule,
		retention:  retention,
		done:       make(chan bool),
	}, nil
}

// Run starts the sweep loop. Runs once immediately, then on schedule.
func (j *Janitor) Run() {
	log.Info().Msg("Starting background janitor")
	j.sweep()
	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.done:
			timer.Stop()
			log.Info().Msg("Stopping background janitor")
			return
		case <-timer.C:
			j.sweep()
		}
	}
}

// Stop halts the janitor.
func (j *Janitor) Stop() {
	j.done <- true
}

func (j *Janitor) sweep() {
	now := time.Now()

	expired, err := j.dispatcher.ExpireStale(now)
	if err != nil {
		log.Error().Err(err).Msg("Janitor: failed to expire confirmations")
	} else if expired > 0 {
		log.Info().Int64("expired", expired).Msg("Janitor: expired stale confirmations")
	}

	pruned, err := j.activity.PruneOlderThan(now.Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("Janitor: failed to prune activity log")
	} else if pruned > 0 {
		log.Info().Int64("pruned", pruned).Msg("Janitor: pruned old activity entries")
	}
}
