package crontab

import (
	"context"

	"github.com/mileusna/crontab"

	"scribe-server/internal/config"
	"scribe-server/internal/infrastructure/logger"
	"scribe-server/internal/utils/platformerrors"
)

// Limiter is the scheduled surface of the request rate limiter: dropping
// stale window entries and applying a re-read hourly budget.
type Limiter interface {
	Purge()
	SetBudget(perHour int)
}

type Crontab struct {
	ctab    *crontab.Crontab
	limiter Limiter
}

func NewCrontab(limiter Limiter) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		limiter: limiter,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	if c.limiter != nil {
		// Hourly purge of expired rate-limit entries
		if err := c.ctab.AddJob("0 * * * *", func() {
			c.limiter.Purge()
			log.Debug().Msg("rate limiter purged")
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add rate limit purge job")
		}

		// Hourly environment reload; a changed hourly budget takes effect
		// without a restart.
		if err := c.ctab.AddJob("0 * * * *", func() {
			cfg, err := config.Load()
			if err != nil {
				log.Error().Err(err).Msg("environment reload failed")
				return
			}
			c.limiter.SetBudget(cfg.RateLimitGlobalPerHour)
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add env reload job")
		}
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}
