package moderation

import (
	"context"
	"fmt"
	"time"

	"echo-helper/model"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// WarnPlatform is what warnings need from the chat platform.
type WarnPlatform interface {
	StripRoles(ctx context.Context, guildID, userID string) error
	SendDirect(ctx context.Context, userID string, n model.Notice) error
}

// WarnResult describes the outcome of one warning.
type WarnResult struct {
	Count    int
	Stripped bool
	// StripErr is set when the threshold was reached but stripping failed.
	StripErr error
}

// Warnings is the append-only warning history per user.
type Warnings struct {
	history  *database.Collection[[]model.Warning]
	platform WarnPlatform
	now      func() time.Time
}

func NewWarnings(db *database.DB, p WarnPlatform, now func() time.Time) *Warnings {
	if now == nil {
		now = time.Now
	}
	return &Warnings{
		history:  database.NewCollection[[]model.Warning](db, database.DomainWarnings),
		platform: p,
		now:      now,
	}
}

// Warn appends a warning. At or above the threshold every role is stripped;
// stripping an already stripped member is harmless, so it is re-applied on
// each further warning.
func (w *Warnings) Warn(ctx context.Context, guildID, userID, reason, issuerID string) (WarnResult, error) {
	entry := model.Warning{Reason: reason, WarnedBy: issuerID, Timestamp: w.now()}
	out, err := w.history.Mutate(ctx, userID, func(cur *[]model.Warning) (*[]model.Warning, error) {
		var list []model.Warning
		if cur != nil {
			list = *cur
		}
		list = append(list, entry)
		return &list, nil
	})
	if err != nil {
		return WarnResult{}, fmt.Errorf("record warning for %s: %w", userID, err)
	}

	res := WarnResult{Count: len(*out)}
	if res.Count >= model.WarningThreshold {
		if err := w.platform.StripRoles(ctx, guildID, userID); err != nil {
			logger.Error("Failed to strip roles at warning threshold", zap.String("user", userID), zap.Error(err))
			res.StripErr = err
		} else {
			res.Stripped = true
		}
	}

	dm := model.Notice{
		Title: "⚠️ You have been warned",
		Color: 0xff4444,
		Fields: []model.NoticeField{
			{Name: "Reason", Value: reason},
			{Name: "Warning Count", Value: fmt.Sprintf("%d/%d", res.Count, model.WarningThreshold), Inline: true},
		},
	}
	if res.Stripped {
		dm.Fields = append(dm.Fields, model.NoticeField{
			Name:  "⚠️ Action Taken",
			Value: fmt.Sprintf("All your roles have been stripped due to reaching %d warnings.", model.WarningThreshold),
		})
	}
	if err := w.platform.SendDirect(ctx, userID, dm); err != nil {
		logger.Warn("Failed to DM warned user", zap.String("user", userID), zap.Error(err))
	}
	return res, nil
}

// List returns userID's warnings, oldest first.
func (w *Warnings) List(ctx context.Context, userID string) ([]model.Warning, error) {
	list, _, err := w.history.Get(ctx, userID)
	return list, err
}
