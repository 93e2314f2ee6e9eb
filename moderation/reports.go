package moderation

import (
	"context"
	"errors"
	"strings"

	"echo-helper/utils/database"
)

// ErrNoEvidence means the reporter has not uploaded evidence yet.
var ErrNoEvidence = errors.New("no pending evidence")

// IsEvidenceLink reports whether a plain message counts as an evidence link.
func IsEvidenceLink(content string) bool {
	return strings.HasPrefix(content, "http://") ||
		strings.HasPrefix(content, "https://") ||
		strings.HasPrefix(content, "medal.tv/")
}

// IsEvidenceMedia reports whether an attachment content type is image or video.
func IsEvidenceMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

// Reports pairs the evidence a member uploaded with the /report that uses it.
type Reports struct {
	pending *database.Collection[string]
	counts  *Counters
}

func NewReports(db *database.DB, counts *Counters) *Reports {
	return &Reports{
		pending: database.NewCollection[string](db, database.DomainPendingReports),
		counts:  counts,
	}
}

// RecordEvidence remembers url as userID's latest evidence.
func (r *Reports) RecordEvidence(ctx context.Context, userID, url string) error {
	return r.pending.Put(ctx, userID, url)
}

// PendingEvidence returns userID's stored evidence without consuming it.
func (r *Reports) PendingEvidence(ctx context.Context, userID string) (string, bool, error) {
	return r.pending.Get(ctx, userID)
}

// File consumes the reporter's pending evidence and credits the report.
// Team members bypass the upload step and pass their evidence directly.
func (r *Reports) File(ctx context.Context, reporterID string, bypass bool, bypassEvidence string) (evidence string, count int, err error) {
	if bypass {
		evidence = bypassEvidence
		if evidence == "" {
			evidence = "No evidence found"
		}
	} else {
		_, err = r.pending.Mutate(ctx, reporterID, func(cur *string) (*string, error) {
			if cur == nil {
				return nil, ErrNoEvidence
			}
			evidence = *cur
			return nil, nil
		})
		if err != nil {
			return "", 0, err
		}
	}
	count, err = r.counts.Increment(ctx, reporterID)
	if err != nil {
		return evidence, 0, err
	}
	return evidence, count, nil
}
