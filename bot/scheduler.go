package bot

import (
	"context"
	"sync"

	"echo-helper/metrics"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler supervises the reconciliation loops and the metrics endpoint.
type Scheduler struct {
	bot    *Bot
	mu     sync.Mutex
	group  *errgroup.Group
	cancel context.CancelFunc
}

func NewScheduler(b *Bot) *Scheduler {
	return &Scheduler{bot: b}
}

// Start launches every loop. Each loop runs until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error { return s.bot.TempRoles.Run(gctx) })
	g.Go(func() error { return s.bot.AFK.Run(gctx) })
	g.Go(func() error { return s.bot.Leveling.Run(gctx) })
	g.Go(func() error { return s.bot.Tickets.RunSweeper(gctx, s.bot.GetConfig().Intervals.TicketSweep) })
	if addr := s.bot.GetConfig().MetricsAddr; addr != "" {
		g.Go(func() error {
			if err := metrics.Serve(gctx, addr); err != nil {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
			return nil
		})
	}
	logger.Info("Scheduler started")
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return nil
	}
	logger.Info("Stopping scheduler...")
	s.cancel()
	err := s.group.Wait()
	s.group = nil
	logger.Info("Scheduler stopped.")
	return err
}
