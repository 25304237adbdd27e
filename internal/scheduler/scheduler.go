// Package scheduler drives the periodic refresh sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"feedkeeper/internal/ingest"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	sweepTimeout          = 10 * time.Minute
)

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	engine *ingest.Service
	spec   string
	secret string
	log    *slog.Logger
}

func New(
	ctx context.Context,
	engine *ingest.Service,
	spec string,
	secret string,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		engine: engine,
		spec:   spec,
		secret: secret,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	outcome, err := s.engine.CronSweep(ctx, s.secret)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run refresh sweep",
			"error", err)

		return
	}

	s.log.InfoContext(ctx, "Refresh sweep is finished",
		"usersSwept", outcome.UsersSwept,
		"usersFailed", outcome.UsersFailed,
		"feedsAttempted", outcome.Feeds.FeedsAttempted,
		"feedsFailed", outcome.Feeds.FeedsFailed,
		"newArticles", outcome.Feeds.NewArticles)
}
