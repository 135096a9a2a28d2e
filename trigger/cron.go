package trigger

import (
	"context"
	"time"

	"lexflow/reminder"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Cron drives the reminder engine's periodic operations. The engine itself is
// trigger-agnostic; this is the cron-equivalent collaborator that owns the
// cadence.
type Cron struct {
	engine            *cron.Cron
	svc               *reminder.Service
	log               *logrus.Logger
	specSweep         string
	specRetry         string
	specCleanup       string
	cleanupMaxAgeDays int
}

func NewCron(svc *reminder.Service, log *logrus.Logger, specSweep, specRetry, specCleanup string, cleanupMaxAgeDays int) *Cron {
	return &Cron{
		engine:            cron.New(cron.WithLocation(time.UTC)),
		svc:               svc,
		log:               log,
		specSweep:         specSweep,
		specRetry:         specRetry,
		specCleanup:       specCleanup,
		cleanupMaxAgeDays: cleanupMaxAgeDays,
	}
}

func (c *Cron) Start() error {
	if _, err := c.engine.AddFunc(c.specSweep, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := c.svc.ProcessPendingReminders(ctx); err != nil {
			c.log.WithError(err).Error("reminder sweep failed")
		}
	}); err != nil {
		return err
	}

	if _, err := c.engine.AddFunc(c.specRetry, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := c.svc.RetryFailedReminders(ctx); err != nil {
			c.log.WithError(err).Error("reminder retry failed")
		}
	}); err != nil {
		return err
	}

	if _, err := c.engine.AddFunc(c.specCleanup, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := c.svc.CleanupOldReminders(ctx, c.cleanupMaxAgeDays); err != nil {
			c.log.WithError(err).Error("reminder cleanup failed")
		}
	}); err != nil {
		return err
	}

	c.engine.Start()
	c.log.Info("reminder cron triggers started")
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (c *Cron) Stop() {
	ctx := c.engine.Stop()
	<-ctx.Done()
	c.log.Info("reminder cron triggers stopped")
}
