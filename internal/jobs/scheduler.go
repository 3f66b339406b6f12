package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/config"
	"github.com/wanderplan/trip-engine/internal/service"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerJob triggers scheduler passes in the background. Passes run on a
// fixed interval or, when a cron expression is configured, on its fire
// times. The ops API can trigger extra passes at any time; overlap is safe
// because jobs are claimed row by row.
type SchedulerJob struct {
	scheduler *service.SchedulerService
	interval  time.Duration
	cronExpr  string
	done      chan struct{}
}

func NewSchedulerJob(scheduler *service.SchedulerService, interval time.Duration, cronExpr string) *SchedulerJob {
	return &SchedulerJob{
		scheduler: scheduler,
		interval:  interval,
		cronExpr:  cronExpr,
		done:      make(chan struct{}),
	}
}

func (j *SchedulerJob) Start() {
	go j.run()
	if j.cronExpr != "" {
		log.Info().Str("cron", j.cronExpr).Msg("scheduler job started")
	} else {
		log.Info().Dur("interval", j.interval).Msg("scheduler job started")
	}
}

func (j *SchedulerJob) Stop() {
	close(j.done)
	log.Info().Msg("scheduler job stopped")
}

func (j *SchedulerJob) run() {
	j.pass()

	for {
		wait := j.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-j.done:
			timer.Stop()
			return
		case <-timer.C:
			j.pass()
		}
	}
}

// nextWait returns the time until the next pass: the cron schedule's next
// fire time when configured, the fixed interval otherwise.
func (j *SchedulerJob) nextWait() time.Duration {
	if j.cronExpr == "" {
		return j.interval
	}
	sched, err := cronParser.Parse(j.cronExpr)
	if err != nil {
		log.Warn().Err(err).Str("cron", j.cronExpr).Msg("invalid cron expression, falling back to interval")
		return j.interval
	}
	d := time.Until(sched.Next(time.Now()))
	if d <= 0 {
		return time.Second
	}
	return d
}

func (j *SchedulerJob) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SchedulerPassTimeout)
	defer cancel()

	if _, err := j.scheduler.RunPass(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler pass failed")
	}
}
