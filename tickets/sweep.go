package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echo-helper/model"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// closeGrace is how long past the delete delay a closing record may sit
// before the sweeper assumes the process died mid-close.
const closeGrace = time.Minute

// SweepResult counts what one sweep did.
type SweepResult struct {
	Orphaned int // records whose channel was deleted by hand
	Resumed  int // interrupted closes finished
}

// Sweep drops records whose channel is gone and finishes closes that were
// interrupted between marking and deleting.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	all, err := s.tickets.All(ctx)
	if err != nil && len(all) == 0 {
		return SweepResult{}, fmt.Errorf("load tickets: %w", err)
	}

	var res SweepResult
	var errs []error
	for channelID, t := range all {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		switch {
		case t.Closing && s.now().Sub(t.LastActivity) > s.cfg.CloseDelay+closeGrace:
			if err := s.resumeClose(ctx, channelID); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Resumed++
		default:
			gone, err := s.dropIfGone(ctx, channelID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if gone {
				res.Orphaned++
			}
		}
	}
	return res, errors.Join(errs...)
}

func (s *Service) dropIfGone(ctx context.Context, channelID string) (bool, error) {
	_, err := s.platform.Channel(ctx, channelID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, model.ErrChannelNotFound) {
		return false, err
	}

	unlock := s.locks.Lock(channelID)
	defer unlock()
	if err := s.tickets.Delete(ctx, channelID); err != nil {
		return false, fmt.Errorf("drop orphaned ticket %s: %w", channelID, err)
	}
	logger.Info("Dropped ticket record of deleted channel", zap.String("channel", channelID))
	return true, nil
}

func (s *Service) resumeClose(ctx context.Context, channelID string) error {
	unlock := s.locks.Lock(channelID)
	defer unlock()

	// 可能已经被正常流程删掉
	cur, ok, err := s.tickets.Get(ctx, channelID)
	if err != nil || !ok || !cur.Closing {
		return err
	}
	if err := s.platform.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, model.ErrChannelNotFound) {
		return fmt.Errorf("delete channel of interrupted close %s: %w", channelID, err)
	}
	if err := s.tickets.Delete(ctx, channelID); err != nil {
		return fmt.Errorf("drop closed ticket %s: %w", channelID, err)
	}
	logger.Info("Finished interrupted ticket close", zap.String("channel", channelID))
	return nil
}

// RunSweeper sweeps immediately and then every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Ticket sweeper started", zap.Duration("interval", interval))
	for {
		res, err := s.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("Ticket sweep finished with errors", zap.Error(err))
		}
		if res.Orphaned > 0 || res.Resumed > 0 {
			logger.Info("Ticket sweep", zap.Int("orphaned", res.Orphaned), zap.Int("resumed", res.Resumed))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}
