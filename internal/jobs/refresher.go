package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Refresher re-runs a refresh function on a fixed cadence, used by watch
// mode to keep the history view current. Overlapping runs are skipped so
// a slow fetch never stacks behind the next tick.
type Refresher struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func NewRefresher(logger zerolog.Logger) *Refresher {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Refresher{
		cron: c,
		log:  logger,
	}
}

func (r *Refresher) Start(interval time.Duration, refresh func()) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := r.cron.AddFunc(spec, refresh); err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

// Stop waits for an in-flight refresh to finish, bounded at 5 seconds.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		r.log.Warn().Msg("refresh still running at shutdown")
	}
}
