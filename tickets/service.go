// Package tickets runs the support ticket lifecycle: create, claim, unclaim,
// rename, membership changes and close.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"echo-helper/metrics"
	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/utils"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// Custom IDs of the controls posted into every ticket.
const (
	ControlClaim   = "ticket_claim"
	ControlClose   = "ticket_close"
	ControlUnclaim = "ticket_unclaim"
)

// Platform is what the ticket lifecycle needs from the chat platform.
type Platform interface {
	Channel(ctx context.Context, channelID string) (model.ChannelInfo, error)
	CreateChannel(ctx context.Context, guildID, name, parentID, topic string, rules []model.VisibilityRule) (model.ChannelInfo, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetVisibility(ctx context.Context, channelID string, rules ...model.VisibilityRule) error
	History(ctx context.Context, channelID string) ([]model.HistoryMessage, error)
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
	SendDirect(ctx context.Context, userID string, n model.Notice) error
}

// Config holds ticket categories, roles and timings.
type Config struct {
	GuildID    string
	Categories map[model.TicketType]string
	Roles      model.RoleConfig
	LogChannel string
	CloseDelay time.Duration
}

// Service owns every ticket transition. Transitions on one channel are
// serialized; different channels proceed independently.
type Service struct {
	tickets  *database.Collection[model.Ticket]
	closed   *database.Collection[model.ClosedTicket]
	counts   *moderation.Counters
	platform Platform
	cfg      Config
	locks    *database.KeyedMutex
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	wg       sync.WaitGroup
}

func NewService(db *database.DB, counts *moderation.Counters, p Platform, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.CloseDelay < 0 {
		cfg.CloseDelay = 0
	}
	return &Service{
		tickets:  database.NewCollection[model.Ticket](db, database.DomainTickets),
		closed:   database.NewCollection[model.ClosedTicket](db, database.DomainClosedTickets),
		counts:   counts,
		platform: p,
		cfg:      cfg,
		locks:    database.NewKeyedMutex(),
		now:      now,
		after:    time.After,
	}
}

// Wait blocks until every scheduled channel deletion has run.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Get returns the active ticket for channelID.
func (s *Service) Get(ctx context.Context, channelID string) (model.Ticket, bool, error) {
	return s.tickets.Get(ctx, channelID)
}

// TypeFor maps a category ID back to its ticket type.
func (s *Service) TypeFor(categoryID string) (model.TicketType, bool) {
	if categoryID == "" {
		return "", false
	}
	for _, t := range model.TicketTypes {
		if s.cfg.Categories[t] == categoryID {
			return t, true
		}
	}
	return "", false
}

func normalizeType(t model.TicketType) model.TicketType {
	for _, known := range model.TicketTypes {
		if t == known {
			return t
		}
	}
	return model.TicketSupport
}

// ChannelName is the name a new ticket channel gets.
func ChannelName(t model.TicketType, requester string) string {
	return strings.ToLower(strings.ReplaceAll(string(t), " ", "-")) + "-" + strings.ToLower(requester)
}

// RenamePrefix is the fixed prefix a renamed ticket keeps.
func RenamePrefix(t model.TicketType) string {
	switch t {
	case model.TicketSupport:
		return "support-"
	case model.TicketMedia:
		return "media-"
	case model.TicketPlayerReport:
		return "reports-"
	case model.TicketAppeal:
		return "appeals-"
	default:
		return "ticket-"
	}
}

// Transcript renders history as "author: content" lines, oldest first.
func Transcript(history []model.HistoryMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.AuthorName+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func reject(transition string, err error) error {
	metrics.TicketRejections.WithLabelValues(transition).Inc()
	return err
}

// ticketChannel resolves channelID and rejects anything outside the
// configured ticket categories, before any capability check.
func (s *Service) ticketChannel(ctx context.Context, channelID string) (model.ChannelInfo, model.TicketType, error) {
	ch, err := s.platform.Channel(ctx, channelID)
	if err != nil {
		return model.ChannelInfo{}, "", fmt.Errorf("resolve channel %s: %w", channelID, err)
	}
	t, ok := s.TypeFor(ch.ParentID)
	if !ok {
		return ch, "", ErrNotTicketChannel
	}
	return ch, t, nil
}

func (s *Service) guard(ctx context.Context, transition, channelID string, actor model.Actor, capability string) (model.ChannelInfo, model.TicketType, error) {
	ch, t, err := s.ticketChannel(ctx, channelID)
	if err != nil {
		return ch, t, reject(transition, err)
	}
	if !utils.HasCapability(actor.Roles, capability, s.cfg.Roles) {
		return ch, t, reject(transition, ErrForbidden)
	}
	return ch, t, nil
}

// reconstruct builds a minimal record from channel metadata when the
// stored one is missing. The topic carries "<requester id>|...".
func (s *Service) reconstruct(ch model.ChannelInfo, t model.TicketType) model.Ticket {
	userID := ""
	if ch.Topic != "" {
		userID = strings.TrimSpace(strings.SplitN(ch.Topic, "|", 2)[0])
	}
	category := ch.ParentName
	if category == "" {
		category = string(t)
	}
	now := s.now()
	logger.Info("Reconstructing missing ticket record", zap.String("channel", ch.ID), zap.String("requester", userID))
	return model.Ticket{
		ChannelID:    ch.ID,
		UserID:       userID,
		Username:     "Unknown",
		Type:         t,
		Category:     category,
		CreatedAt:    now,
		LastActivity: now,
	}
}

func (s *Service) everyone() string {
	return s.cfg.GuildID
}

func (s *Service) post(ctx context.Context, channelID string, n model.Notice) {
	if channelID == "" {
		return
	}
	if _, err := s.platform.SendNotice(ctx, channelID, n); err != nil {
		logger.Warn("Failed to post ticket notice", zap.String("channel", channelID), zap.Error(err))
	}
}

func (s *Service) dm(ctx context.Context, userID string, n model.Notice) {
	if err := s.platform.SendDirect(ctx, userID, n); err != nil {
		logger.Warn("Failed to DM ticket participant", zap.String("user", userID), zap.Error(err))
	}
}

func (s *Service) applyVisibility(ctx context.Context, channelID string, rules []model.VisibilityRule) {
	if err := s.platform.SetVisibility(ctx, channelID, rules...); err != nil {
		logger.Error("Failed to update ticket visibility", zap.String("channel", channelID), zap.Error(err))
	}
}

// CreateRequest is a submitted ticket form.
type CreateRequest struct {
	GuildID          string
	Type             model.TicketType
	Requester        model.Actor
	DeclaredUsername string
	Evidence         string
}

// Create opens a ticket channel for the requester. Nothing is persisted when
// the category cannot be resolved.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Ticket, model.ChannelInfo, error) {
	t := normalizeType(req.Type)
	categoryID := s.cfg.Categories[t]
	if categoryID == "" {
		categoryID = s.cfg.Categories[model.TicketSupport]
	}
	if categoryID == "" {
		return model.Ticket{}, model.ChannelInfo{}, reject("create", ErrCategoryNotFound)
	}
	category, err := s.platform.Channel(ctx, categoryID)
	if err != nil {
		return model.Ticket{}, model.ChannelInfo{}, reject("create", fmt.Errorf("%w: %v", ErrCategoryNotFound, err))
	}

	guildID := req.GuildID
	if guildID == "" {
		guildID = s.cfg.GuildID
	}
	topic := req.Requester.ID + "|" + string(t)
	ch, err := s.platform.CreateChannel(ctx, guildID, ChannelName(t, req.Requester.Name), categoryID, topic,
		openRules(guildID, req.Requester.ID, s.cfg.Roles))
	if err != nil {
		return model.Ticket{}, model.ChannelInfo{}, fmt.Errorf("create ticket channel: %w", err)
	}

	now := s.now()
	ticket := model.Ticket{
		ChannelID:    ch.ID,
		UserID:       req.Requester.ID,
		Username:     req.DeclaredUsername,
		Type:         t,
		Category:     category.Name,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.tickets.Put(ctx, ch.ID, ticket); err != nil {
		if derr := s.platform.DeleteChannel(ctx, ch.ID); derr != nil {
			logger.Error("Failed to delete orphaned ticket channel", zap.String("channel", ch.ID), zap.Error(derr))
		}
		return model.Ticket{}, model.ChannelInfo{}, fmt.Errorf("save ticket: %w", err)
	}

	s.post(ctx, ch.ID, model.Notice{
		Content: "<@" + req.Requester.ID + ">",
		Title:   "🎫 " + string(t),
		Color:   0x5865F2,
		Fields: []model.NoticeField{
			{Name: "👤 Username", Value: req.DeclaredUsername, Inline: true},
			{Name: "🆔 Discord User", Value: "<@" + req.Requester.ID + ">", Inline: true},
			{Name: "📝 Proof/Evidence", Value: req.Evidence},
			{Name: "⏰ Ticket Created", Value: fmt.Sprintf("<t:%d:R>", now.Unix()), Inline: true},
			{Name: "📂 Category", Value: category.Name, Inline: true},
		},
		Controls: []model.Control{
			{CustomID: ControlClaim, Label: "✋ Claim Ticket", Style: model.ControlSuccess},
			{CustomID: ControlClose, Label: "🔒 Close Ticket", Style: model.ControlDanger},
			{CustomID: ControlUnclaim, Label: "🔄 Unclaim Ticket", Style: model.ControlSecondary},
		},
	})
	metrics.TicketTransitions.WithLabelValues("create").Inc()
	logger.Info("Ticket created", zap.String("channel", ch.ID), zap.String("type", string(t)), zap.String("requester", req.Requester.ID))
	return ticket, ch, nil
}

// Claim assigns the actor as the ticket's handler and narrows visibility.
func (s *Service) Claim(ctx context.Context, channelID string, actor model.Actor) (model.Ticket, error) {
	ch, t, err := s.guard(ctx, "claim", channelID, actor, utils.StaffCapability)
	if err != nil {
		return model.Ticket{}, err
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	out, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		ticket := s.reconstruct(ch, t)
		if cur != nil {
			ticket = *cur
		}
		if ticket.Closing {
			return nil, ErrClosing
		}
		if ticket.Claimed() {
			return nil, &AlreadyClaimedError{ClaimedBy: ticket.Claimant()}
		}
		claimant := actor.ID
		ticket.ClaimedBy = &claimant
		ticket.LastActivity = s.now()
		return &ticket, nil
	})
	if err != nil {
		return model.Ticket{}, reject("claim", err)
	}

	s.applyVisibility(ctx, channelID, claimedRules(s.everyone(), out.UserID, actor.ID, s.cfg.Roles))
	s.post(ctx, channelID, model.Notice{
		Title: "🎫 Ticket Claimed",
		Body:  fmt.Sprintf("This ticket has been claimed by <@%s>\nOnly ticket admins, the ticket creator, and the claimer can now see this ticket.", actor.ID),
		Color: 0x00ff00,
	})
	metrics.TicketTransitions.WithLabelValues("claim").Inc()
	return *out, nil
}

// Unclaim clears the claimant and restores visibility for every staff tier.
func (s *Service) Unclaim(ctx context.Context, channelID string, actor model.Actor) (model.Ticket, error) {
	_, _, err := s.guard(ctx, "unclaim", channelID, actor, utils.TicketAdminCapability)
	if err != nil {
		return model.Ticket{}, err
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	out, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		if cur == nil {
			return nil, ErrUnknownTicket
		}
		if cur.Closing {
			return nil, ErrClosing
		}
		if !cur.Claimed() {
			return nil, ErrNotClaimed
		}
		cur.ClaimedBy = nil
		cur.LastActivity = s.now()
		return cur, nil
	})
	if err != nil {
		return model.Ticket{}, reject("unclaim", err)
	}

	s.applyVisibility(ctx, channelID, openRules(s.everyone(), out.UserID, s.cfg.Roles))
	s.post(ctx, channelID, model.Notice{
		Title: "🎫 Ticket Unclaimed",
		Body:  fmt.Sprintf("This ticket has been unclaimed by <@%s>\nAll team members can now see this ticket again.", actor.ID),
		Color: 0xffff00,
	})
	metrics.TicketTransitions.WithLabelValues("unclaim").Inc()
	return *out, nil
}

// Rename renames the channel to the category prefix plus suffix.
func (s *Service) Rename(ctx context.Context, channelID string, actor model.Actor, suffix string) (string, error) {
	ch, t, err := s.guard(ctx, "rename", channelID, actor, utils.StaffCapability)
	if err != nil {
		return "", err
	}
	suffix = strings.ToLower(strings.Join(strings.Fields(suffix), "-"))
	if suffix == "" {
		return "", reject("rename", errors.New("new name cannot be empty"))
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, ok, err := s.tickets.Get(ctx, channelID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", reject("rename", ErrUnknownTicket)
	}
	if ticket.Closing {
		return "", reject("rename", ErrClosing)
	}

	name := RenamePrefix(t) + strings.TrimPrefix(suffix, RenamePrefix(t))
	if err := s.platform.RenameChannel(ctx, channelID, name); err != nil {
		return "", fmt.Errorf("rename channel %s: %w", channelID, err)
	}
	if _, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		if cur == nil {
			return nil, nil
		}
		cur.LastActivity = s.now()
		return cur, nil
	}); err != nil {
		logger.Warn("Failed to touch renamed ticket", zap.String("channel", channelID), zap.Error(err))
	}

	s.post(ctx, channelID, model.Notice{
		Title: "📝 Ticket Renamed",
		Color: 0x00ff00,
		Fields: []model.NoticeField{
			{Name: "Old Name", Value: ch.Name, Inline: true},
			{Name: "New Name", Value: name, Inline: true},
			{Name: "Renamed By", Value: "<@" + actor.ID + ">", Inline: true},
		},
	})
	metrics.TicketTransitions.WithLabelValues("rename").Inc()
	return name, nil
}

// AddParticipant lets userID see the ticket.
func (s *Service) AddParticipant(ctx context.Context, channelID string, actor model.Actor, userID string) error {
	if _, _, err := s.guard(ctx, "add_participant", channelID, actor, utils.StaffCapability); err != nil {
		return err
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	if err := s.platform.SetVisibility(ctx, channelID, memberRule(userID, true)); err != nil {
		return fmt.Errorf("add %s to ticket %s: %w", userID, channelID, err)
	}
	s.post(ctx, channelID, model.Notice{
		Title: "👥 User Added to Ticket",
		Color: 0x00ff00,
		Fields: []model.NoticeField{
			{Name: "User Added", Value: "<@" + userID + ">", Inline: true},
			{Name: "Added By", Value: "<@" + actor.ID + ">", Inline: true},
		},
	})
	s.dm(ctx, userID, model.Notice{
		Title: "🎫 Added to Ticket",
		Body:  "You have been added to a ticket",
		Color: 0x00ff00,
		Fields: []model.NoticeField{
			{Name: "Ticket Channel", Value: "<#" + channelID + ">", Inline: true},
			{Name: "Added By", Value: "<@" + actor.ID + ">", Inline: true},
		},
	})
	metrics.TicketTransitions.WithLabelValues("add_participant").Inc()
	return nil
}

// RemoveParticipant hides the ticket from userID. The requester can never be removed.
func (s *Service) RemoveParticipant(ctx context.Context, channelID string, actor model.Actor, userID string) error {
	if _, _, err := s.guard(ctx, "remove_participant", channelID, actor, utils.TicketAdminCapability); err != nil {
		return err
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	ticket, ok, err := s.tickets.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return reject("remove_participant", ErrUnknownTicket)
	}
	if userID == ticket.UserID {
		return reject("remove_participant", ErrRequesterRemoval)
	}

	if err := s.platform.SetVisibility(ctx, channelID, memberRule(userID, false)); err != nil {
		return fmt.Errorf("remove %s from ticket %s: %w", userID, channelID, err)
	}
	s.post(ctx, channelID, model.Notice{
		Title: "👥 User Removed from Ticket",
		Color: 0xff0000,
		Fields: []model.NoticeField{
			{Name: "User Removed", Value: "<@" + userID + ">", Inline: true},
			{Name: "Removed By", Value: "<@" + actor.ID + ">", Inline: true},
		},
	})
	s.dm(ctx, userID, model.Notice{
		Title: "🎫 Removed from Ticket",
		Body:  "You have been removed from a ticket",
		Color: 0xff0000,
	})
	metrics.TicketTransitions.WithLabelValues("remove_participant").Inc()
	return nil
}

// CloseResult reports what a close did.
type CloseResult struct {
	Ticket     model.Ticket
	CreditedTo string
	Count      int
	Transcript string
}

// Close archives the transcript, credits the claimant (or the closer when
// unclaimed) and deletes the channel after the grace delay. The delay
// cannot be cancelled once Close returns.
func (s *Service) Close(ctx context.Context, channelID string, actor model.Actor) (CloseResult, error) {
	ch, t, err := s.guard(ctx, "close", channelID, actor, utils.StaffCapability)
	if err != nil {
		return CloseResult{}, err
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	current, ok, err := s.tickets.Get(ctx, channelID)
	if err != nil {
		return CloseResult{}, err
	}
	if ok && current.Closing {
		return CloseResult{}, reject("close", ErrClosing)
	}

	history, err := s.platform.History(ctx, channelID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("read ticket history: %w", err)
	}
	transcript := Transcript(history)

	fresh := false
	out, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		ticket := s.reconstruct(ch, t)
		if cur != nil {
			ticket = *cur
		}
		if ticket.Closing {
			return nil, ErrClosing
		}
		ticket.Closing = true
		ticket.LastActivity = s.now()
		// 重试关闭时沿用第一次的记账对象
		if ticket.CreditedTo == "" {
			ticket.CreditedTo = ticket.Claimant()
			if ticket.CreditedTo == "" {
				ticket.CreditedTo = actor.ID
			}
			fresh = true
		}
		return &ticket, nil
	})
	if err != nil {
		return CloseResult{}, reject("close", err)
	}
	ticket := *out
	credited := ticket.CreditedTo

	var count int
	if fresh {
		count, err = s.counts.Increment(ctx, credited)
		if err != nil {
			s.abortClose(ctx, channelID)
			return CloseResult{}, fmt.Errorf("credit ticket close: %w", err)
		}
	} else if count, err = s.counts.Get(ctx, credited); err != nil {
		logger.Warn("Failed to read close count", zap.String("user", credited), zap.Error(err))
	}

	closedAt := s.now()
	if err := s.closed.Put(ctx, channelID, model.ClosedTicket{
		ChannelID:   channelID,
		ChannelName: ch.Name,
		Type:        ticket.Type,
		Category:    ticket.Category,
		UserID:      ticket.UserID,
		ClosedBy:    actor.ID,
		CreditedTo:  credited,
		ClosedAt:    closedAt,
	}); err != nil {
		logger.Warn("Failed to save closed ticket summary", zap.String("channel", channelID), zap.Error(err))
	}

	s.post(ctx, s.cfg.LogChannel, model.Notice{
		Title: "🎫 Ticket Closed",
		Color: 0xff0000,
		Fields: []model.NoticeField{
			{Name: "Ticket Type", Value: string(ticket.Type), Inline: true},
			{Name: "Category", Value: ticket.Category, Inline: true},
			{Name: "Closed By", Value: "<@" + actor.ID + ">", Inline: true},
			{Name: "Channel", Value: ch.Name, Inline: true},
		},
		Files: []model.Attachment{{Name: "transcript-" + ch.Name + ".txt", Content: []byte(transcript)}},
	})
	s.post(ctx, channelID, model.Notice{
		Content: fmt.Sprintf("Ticket will be deleted in %d seconds...", int(s.cfg.CloseDelay.Seconds())),
	})

	s.wg.Add(1)
	go s.finishClose(channelID)

	metrics.TicketTransitions.WithLabelValues("close").Inc()
	logger.Info("Ticket closed", zap.String("channel", channelID), zap.String("closed_by", actor.ID), zap.String("credited", credited))
	return CloseResult{Ticket: ticket, CreditedTo: credited, Count: count, Transcript: transcript}, nil
}

func (s *Service) finishClose(channelID string) {
	defer s.wg.Done()
	<-s.after(s.cfg.CloseDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	unlock := s.locks.Lock(channelID)
	defer unlock()

	if err := s.platform.DeleteChannel(ctx, channelID); err != nil {
		logger.Error("Failed to delete closed ticket channel", zap.String("channel", channelID), zap.Error(err))
		s.clearClosing(ctx, channelID)
		return
	}
	if err := s.tickets.Delete(ctx, channelID); err != nil {
		logger.Error("Failed to drop closed ticket record", zap.String("channel", channelID), zap.Error(err))
	}
}

// abortClose undoes a close that never credited anyone.
func (s *Service) abortClose(ctx context.Context, channelID string) {
	if _, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		if cur == nil {
			return nil, nil
		}
		cur.Closing = false
		cur.CreditedTo = ""
		return cur, nil
	}); err != nil {
		logger.Error("Failed to reset closing flag", zap.String("channel", channelID), zap.Error(err))
	}
}

// clearClosing lets a failed close be retried. The credit already given stays.
func (s *Service) clearClosing(ctx context.Context, channelID string) {
	if _, err := s.tickets.Mutate(ctx, channelID, func(cur *model.Ticket) (*model.Ticket, error) {
		if cur == nil {
			return nil, nil
		}
		cur.Closing = false
		return cur, nil
	}); err != nil {
		logger.Error("Failed to reset closing flag", zap.String("channel", channelID), zap.Error(err))
	}
}
