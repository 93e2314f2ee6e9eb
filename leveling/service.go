package leveling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"echo-helper/grants"
	"echo-helper/metrics"
	"echo-helper/model"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// KindReward labels the level-50 reward role expiry.
const KindReward = "level_reward"

// Platform is what leveling needs from the chat platform.
type Platform interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
}

// Config holds the leveling roles and channels.
type Config struct {
	GuildID         string
	AnnounceChannel string
	LevelRoles      map[int]string
	RewardRole      string
	RewardWindow    time.Duration
	RewardInterval  time.Duration
}

// Service applies XP for messages and expires the level-50 reward.
type Service struct {
	levels   *database.Collection[model.LevelRecord]
	reward   *grants.Scheduler[model.LevelRecord]
	platform Platform
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewService(db *database.DB, p Platform, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.RewardWindow <= 0 {
		cfg.RewardWindow = 30 * 24 * time.Hour
	}
	if cfg.RewardInterval <= 0 {
		cfg.RewardInterval = 10 * time.Minute
	}
	s := &Service{
		levels:   database.NewCollection[model.LevelRecord](db, database.DomainLevels),
		platform: p,
		cfg:      cfg,
		now:      now,
	}
	s.reward = grants.NewScheduler(s.levels, grants.Options[model.LevelRecord]{
		Kind:     KindReward,
		Interval: cfg.RewardInterval,
		Expiry:   rewardExpiry,
		Revoke:   s.revokeReward,
		Clear: func(rec model.LevelRecord) *model.LevelRecord {
			rec.RewardExpiresAt = nil
			return &rec
		},
		Now: now,
	})
	return s
}

func rewardExpiry(rec model.LevelRecord) (time.Time, bool) {
	if rec.Level < model.MaxLevel || rec.RewardExpiresAt == nil {
		return time.Time{}, false
	}
	return *rec.RewardExpiresAt, true
}

// Get returns userID's record, or a fresh level-1 record.
func (s *Service) Get(ctx context.Context, userID string) (model.LevelRecord, error) {
	rec, ok, err := s.levels.Get(ctx, userID)
	if err != nil {
		return model.LevelRecord{}, err
	}
	if !ok {
		return model.NewLevelRecord(), nil
	}
	return rec, nil
}

// OnMessage credits one qualifying message to userID. Role grants and
// announcements for every level reached run in the background.
func (s *Service) OnMessage(ctx context.Context, userID string) (model.LevelRecord, []int, error) {
	var crossed []int
	out, err := s.levels.Mutate(ctx, userID, func(cur *model.LevelRecord) (*model.LevelRecord, error) {
		rec := model.NewLevelRecord()
		if cur != nil {
			rec = *cur
		}
		rec, crossed = Apply(rec, Gain(rec.Level))
		for _, l := range crossed {
			if l == model.MaxLevel {
				at := s.now().Add(s.cfg.RewardWindow)
				rec.RewardExpiresAt = &at
			}
		}
		return &rec, nil
	})
	if err != nil {
		return model.LevelRecord{}, nil, fmt.Errorf("update level for %s: %w", userID, err)
	}

	if len(crossed) == 0 {
		return *out, crossed, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, level := range crossed {
		metrics.LevelUps.Inc()
		if s.closed {
			logger.Info("Skipping level up side effects during shutdown", zap.String("user", userID), zap.Int("level", level))
			continue
		}
		s.wg.Add(1)
		go func(level int) {
			defer s.wg.Done()
			bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			s.celebrate(bg, userID, level)
		}(level)
	}
	return *out, crossed, nil
}

func (s *Service) celebrate(ctx context.Context, userID string, level int) {
	if roleID, ok := s.cfg.LevelRoles[level]; ok && roleID != "" {
		if err := s.platform.AddRole(ctx, s.cfg.GuildID, userID, roleID); err != nil {
			logger.Warn("Failed to grant level role", zap.String("user", userID), zap.Int("level", level), zap.Error(err))
		}
	}
	if level == model.MaxLevel && s.cfg.RewardRole != "" {
		if err := s.platform.AddRole(ctx, s.cfg.GuildID, userID, s.cfg.RewardRole); err != nil {
			logger.Warn("Failed to grant reward role", zap.String("user", userID), zap.Error(err))
		}
	}
	if s.cfg.AnnounceChannel == "" {
		return
	}
	if _, err := s.platform.SendNotice(ctx, s.cfg.AnnounceChannel, model.Notice{
		Content: fmt.Sprintf("<@%s> reached level %d!", userID, level),
	}); err != nil {
		logger.Warn("Failed to announce level up", zap.String("user", userID), zap.Int("level", level), zap.Error(err))
	}
}

func (s *Service) revokeReward(ctx context.Context, userID string, _ model.LevelRecord) error {
	if s.cfg.RewardRole == "" {
		return nil
	}
	return s.platform.RemoveRole(ctx, s.cfg.GuildID, userID, s.cfg.RewardRole)
}

// ReconcileRewards runs one reward expiry pass.
func (s *Service) ReconcileRewards(ctx context.Context) (int, error) {
	return s.reward.Reconcile(ctx)
}

// Run drives the reward reconciler until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	err := s.reward.Run(ctx)
	s.Close()
	return err
}

// Wait blocks until background level-up side effects finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops starting new level-up side effects and waits for running ones.
// XP is still credited after Close.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
