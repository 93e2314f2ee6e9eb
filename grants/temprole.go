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

// KindTempRole labels temporary role grants.
const KindTempRole = "temp_role"

// ErrNoGrant is returned when an early revoke finds no record.
var ErrNoGrant = errors.New("no active grant")

// RolePlatform is what temporary roles need from the chat platform.
type RolePlatform interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SendDirect(ctx context.Context, userID string, n model.Notice) error
}

// TempRoles grants a role now and removes it after a duration.
type TempRoles struct {
	*Scheduler[model.Grant]
	platform     RolePlatform
	audit        *utils.ChannelLogger
	defaultGuild string
}

func NewTempRoles(db *database.DB, p RolePlatform, audit *utils.ChannelLogger, guildID string, interval time.Duration, now func() time.Time) *TempRoles {
	t := &TempRoles{platform: p, audit: audit, defaultGuild: guildID}
	t.Scheduler = NewScheduler(database.NewCollection[model.Grant](db, database.DomainTempRoles), Options[model.Grant]{
		Kind:     KindTempRole,
		Interval: interval,
		Expiry:   grantExpiry,
		Revoke:   t.expire,
		Now:      now,
	})
	return t
}

func grantExpiry(g model.Grant) (time.Time, bool) {
	return g.ExpiresAt, !g.ExpiresAt.IsZero()
}

func (t *TempRoles) guild(g model.Grant) string {
	if g.GuildID != "" {
		return g.GuildID
	}
	return t.defaultGuild
}

// Grant gives roleID to userID and records when it must be taken back.
// An earlier temporary role of the same user is removed when it is replaced
// by a different one.
func (t *TempRoles) Grant(ctx context.Context, guildID, userID, roleID string, d time.Duration, label, grantedBy string) (model.Grant, error) {
	if d <= 0 {
		return model.Grant{}, fmt.Errorf("%w: duration must be positive", utils.ErrInvalidDuration)
	}
	added, kept := false, false
	g, err := t.Reschedule(ctx, userID, func(prev *model.Grant) (model.Grant, error) {
		if err := t.platform.AddRole(ctx, guildID, userID, roleID); err != nil {
			return model.Grant{}, fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
		}
		added = true
		kept = prev != nil && prev.RoleID == roleID
		if prev != nil && prev.RoleID != "" && prev.RoleID != roleID {
			if err := t.platform.RemoveRole(ctx, t.guild(*prev), userID, prev.RoleID); err != nil {
				logger.Warn("Failed to remove replaced temp role", zap.String("user", userID), zap.String("role", prev.RoleID), zap.Error(err))
			}
		}
		return model.Grant{
			UserID:    userID,
			GuildID:   guildID,
			RoleID:    roleID,
			ExpiresAt: t.Now().Add(d),
			GrantedBy: grantedBy,
			Duration:  label,
		}, nil
	})
	if err != nil {
		if added && !kept {
			// nothing records the role, so take it back
			if rerr := t.platform.RemoveRole(ctx, guildID, userID, roleID); rerr != nil {
				logger.Error("Failed to roll back temp role", zap.String("user", userID), zap.Error(rerr))
			}
		}
		return model.Grant{}, err
	}

	t.notify(ctx, userID, model.Notice{
		Title: "⏱️ Temporary Role Added",
		Body:  fmt.Sprintf("You have been given the role <@&%s>", roleID),
		Color: 0x00ff00,
		Fields: []model.NoticeField{
			{Name: "Duration", Value: label, Inline: true},
			{Name: "Added By", Value: "<@" + grantedBy + ">", Inline: true},
		},
	})
	t.audit.Info(ctx, "TempRole", "Grant", fmt.Sprintf("<@&%s> given to <@%s> for %s by <@%s>", roleID, userID, label, grantedBy))
	return g, nil
}

// Revoke removes the role before its expiry and clears the record.
func (t *TempRoles) Revoke(ctx context.Context, userID, revokedBy string) (model.Grant, error) {
	g, ok, err := t.Take(ctx, userID, func(cur model.Grant) error {
		if err := t.platform.RemoveRole(ctx, t.guild(cur), userID, cur.RoleID); err != nil {
			return fmt.Errorf("remove role %s from %s: %w", cur.RoleID, userID, err)
		}
		return nil
	})
	if err != nil {
		return model.Grant{}, err
	}
	if !ok {
		return model.Grant{}, ErrNoGrant
	}
	t.audit.Info(ctx, "TempRole", "Revoke", fmt.Sprintf("<@&%s> removed early from <@%s> by <@%s>", g.RoleID, userID, revokedBy))
	return g, nil
}

func (t *TempRoles) expire(ctx context.Context, userID string, g model.Grant) error {
	if err := t.platform.RemoveRole(ctx, t.guild(g), userID, g.RoleID); err != nil {
		return err
	}
	t.notify(ctx, userID, model.Notice{
		Title: "⏱️ Temporary Role Removed",
		Body:  fmt.Sprintf("Your temporary role <@&%s> has expired", g.RoleID),
		Color: 0xff0000,
	})
	t.audit.Info(ctx, "TempRole", "Expire", fmt.Sprintf("<@&%s> expired for <@%s> (added by <@%s>)", g.RoleID, userID, g.GrantedBy))
	return nil
}

// DM failures never undo a role change.
func (t *TempRoles) notify(ctx context.Context, userID string, n model.Notice) {
	if err := t.platform.SendDirect(ctx, userID, n); err != nil {
		logger.Warn("Failed to DM user about temp role", zap.String("user", userID), zap.Error(err))
	}
}
