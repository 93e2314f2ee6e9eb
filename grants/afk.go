package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echo-helper/model"
	"echo-helper/utils"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// KindAFK labels AFK nickname overlays.
const KindAFK = "afk"

// AFKSuffix is appended to the username while a member is away.
const AFKSuffix = "[AFK]"

// ErrNicknameForbidden means the bot may not edit the member's nickname.
var ErrNicknameForbidden = errors.New("cannot change nickname")

// NicknamePlatform is what AFK status needs from the chat platform.
type NicknamePlatform interface {
	SetNickname(ctx context.Context, guildID, userID, nick string) error
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
	SystemChannel(ctx context.Context, guildID string) (string, error)
}

// AFKStatus is shown when an away member is mentioned.
type AFKStatus struct {
	UserID    string
	Reason    string
	ExpiresAt time.Time
	Remaining time.Duration
}

// AFK overlays "[AFK]" on a member's nickname until expiry or their next message.
type AFK struct {
	*Scheduler[model.Grant]
	platform     NicknamePlatform
	excluded     map[string]struct{}
	defaultGuild string
}

func NewAFK(db *database.DB, p NicknamePlatform, guildID string, excludedChannels []string, interval time.Duration, now func() time.Time) *AFK {
	a := &AFK{platform: p, excluded: make(map[string]struct{}, len(excludedChannels)), defaultGuild: guildID}
	for _, id := range excludedChannels {
		a.excluded[id] = struct{}{}
	}
	a.Scheduler = NewScheduler(database.NewCollection[model.Grant](db, database.DomainAFK), Options[model.Grant]{
		Kind:     KindAFK,
		Interval: interval,
		Expiry:   grantExpiry,
		Revoke:   a.expire,
		Now:      now,
	})
	return a
}

func (a *AFK) guild(g model.Grant) string {
	if g.GuildID != "" {
		return g.GuildID
	}
	return a.defaultGuild
}

// Set marks userID as away. displayName is restored when the status ends;
// a member already AFK keeps the name recorded the first time.
func (a *AFK) Set(ctx context.Context, guildID, userID, username, displayName, reason string, d time.Duration) (model.Grant, error) {
	if d <= 0 {
		return model.Grant{}, fmt.Errorf("%w: duration must be positive", utils.ErrInvalidDuration)
	}
	original := displayName
	g, err := a.Reschedule(ctx, userID, func(prev *model.Grant) (model.Grant, error) {
		if prev != nil {
			original = prev.OriginalNickname
		}
		if err := a.platform.SetNickname(ctx, guildID, userID, username+AFKSuffix); err != nil {
			return model.Grant{}, fmt.Errorf("%w: %v", ErrNicknameForbidden, err)
		}
		return model.Grant{
			UserID:           userID,
			GuildID:          guildID,
			ExpiresAt:        a.Now().Add(d),
			OriginalNickname: original,
			Reason:           reason,
		}, nil
	})
	if err != nil {
		if !errors.Is(err, ErrNicknameForbidden) {
			if rerr := a.platform.SetNickname(ctx, guildID, userID, original); rerr != nil {
				logger.Error("Failed to roll back AFK nickname", zap.String("user", userID), zap.Error(rerr))
			}
		}
		return model.Grant{}, err
	}
	return g, nil
}

// OnMessage clears the author's AFK status when they post outside the
// excluded channels. It reports whether a status was cleared.
func (a *AFK) OnMessage(ctx context.Context, channelID, authorID string) (bool, error) {
	if _, skip := a.excluded[channelID]; skip {
		return false, nil
	}
	_, ok, err := a.Take(ctx, authorID, func(cur model.Grant) error {
		if err := a.platform.SetNickname(ctx, a.guild(cur), authorID, cur.OriginalNickname); err != nil {
			return fmt.Errorf("restore nickname for %s: %w", authorID, err)
		}
		return nil
	})
	if err != nil || !ok {
		return false, err
	}
	a.post(ctx, channelID, model.Notice{
		Title: "✅ Welcome Back!",
		Body:  fmt.Sprintf("<@%s> is no longer AFK", authorID),
		Color: 0x00ff00,
	})
	return true, nil
}

// Mentioned returns the AFK status of every mentioned user with time left.
func (a *AFK) Mentioned(ctx context.Context, userIDs []string) []AFKStatus {
	now := a.Now()
	var out []AFKStatus
	for _, id := range userIDs {
		g, ok, err := a.Get(ctx, id)
		if err != nil {
			logger.Warn("Failed to read AFK status", zap.String("user", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		remaining := g.Remaining(now)
		if remaining <= 0 {
			continue
		}
		out = append(out, AFKStatus{UserID: id, Reason: g.Reason, ExpiresAt: g.ExpiresAt, Remaining: remaining})
	}
	return out
}

func (a *AFK) expire(ctx context.Context, userID string, g model.Grant) error {
	guildID := a.guild(g)
	if err := a.platform.SetNickname(ctx, guildID, userID, g.OriginalNickname); err != nil {
		return err
	}
	channelID, err := a.platform.SystemChannel(ctx, guildID)
	if err != nil || channelID == "" {
		return nil
	}
	a.post(ctx, channelID, model.Notice{
		Title: "✅ AFK Status Removed",
		Body:  fmt.Sprintf("<@%s> is no longer AFK", userID),
		Color: 0x00ff00,
	})
	return nil
}

func (a *AFK) post(ctx context.Context, channelID string, n model.Notice) {
	if _, err := a.platform.SendNotice(ctx, channelID, n); err != nil {
		logger.Warn("Failed to post AFK notice", zap.String("channel", channelID), zap.Error(err))
	}
}
