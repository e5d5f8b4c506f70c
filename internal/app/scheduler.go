/**
 * @description
 * Cron scheduler for the card expiry sweep. Cards whose expiry date has
 * passed are flipped to EXPIRED in bulk so the transfer path's active-card
 * checks stay honest without reading the clock per card.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bankcards/bankcards-service/internal/store"
)

const expirySweepTimeout = 30 * time.Second

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	repo     store.Repository
	logger   *slog.Logger
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(repo store.Repository, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		repo:     repo,
		logger:   logger,
		schedule: schedule,
	}
}

// SweepExpiredCards marks every ACTIVE card past its expiry date as EXPIRED.
func (s *Scheduler) SweepExpiredCards() {
	ctx, cancel := context.WithTimeout(context.Background(), expirySweepTimeout)
	defer cancel()

	expired, err := s.repo.ExpireCards(ctx, time.Now())
	if err != nil {
		s.logger.Error("card expiry sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Info("card expiry sweep completed", "expired_cards", expired)
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.SweepExpiredCards); err != nil {
		s.logger.Error("failed to schedule card expiry sweep", "error", err)
	} else {
		s.logger.Info("scheduled card expiry sweep", "schedule", s.schedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
