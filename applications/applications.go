// Package applications runs the staff application questionnaire over DMs and
// the council's accept/deny decision.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"echo-helper/model"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAnswerTimeout = time.Hour

	// ApplyControl starts a questionnaire; decision controls carry the applicant id after the prefix.
	ApplyControl  = "staff_apply"
	AcceptPrefix  = "application_accept:"
	DenyPrefix    = "application_deny:"
	timeoutNotice = "You took too long to respond. Please start over by clicking the apply button again."
)

var (
	ErrInProgress = errors.New("you already have an application in progress, check your DMs")
	ErrDMClosed   = errors.New("I couldn't send you a direct message. Please make sure your DMs are open")
	ErrForbidden  = errors.New("you don't have permission to review applications")
)

type Question struct {
	Field  string
	Prompt string
}

var Questions = []Question{
	{"Minecraft Username", "What is your Minecraft username?"},
	{"Discord Username", "What is your Discord username?"},
	{"Age", "How old are you?"},
	{"Timezone", "What is your timezone?"},
	{"Experience", "What skills or qualities do you bring to the team?\nHow familiar are you with Echo SMP and its rules?\nHave you ever been staff on a Minecraft server before?"},
	{"Team Choice", "Are you applying for the Community Team (Discord Moderation) or In-Game Team (Minecraft Moderation)?"},
	{"Moderation", "How would you handle a player breaking the rules for the first time?\nWhat would you do if two players were having a heated argument?\nHow do you handle criticism or negative feedback from other players?"},
	{"Availability", "Are you willing to help with tickets, reports, and assisting players when needed?\nHow many hours per week can you dedicate to the team?\nAre you comfortable enforcing rules fairly, even if it involves friends?"},
	{"Final Questions", "Why do you want to be part of the Echo SMP Team?\nAre you a staff member on any other server?\nAnything else to know?"},
}

type Platform interface {
	SendDirect(ctx context.Context, userID string, n model.Notice) error
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
	EditNotice(ctx context.Context, channelID, messageID string, n model.Notice) error
}

// Application is a completed questionnaire.
type Application struct {
	ID            string
	ApplicantID   string
	ApplicantName string
	Answers       map[string]string
	SubmittedAt   time.Time
}

type session struct {
	answers chan string
}

type Service struct {
	platform  Platform
	channelID string
	roles     model.RoleConfig
	timeout   time.Duration
	now       func() time.Time

	base     context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewService(p Platform, channelID string, roles model.RoleConfig, timeout time.Duration, now func() time.Time) *Service {
	if timeout <= 0 {
		timeout = DefaultAnswerTimeout
	}
	if now == nil {
		now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Service{
		platform:  p,
		channelID: channelID,
		roles:     roles,
		timeout:   timeout,
		now:       now,
		base:      base,
		stop:      stop,
		sessions:  make(map[string]*session),
	}
}

// Close abandons every running questionnaire.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

// InProgress reports whether userID is answering a questionnaire.
func (s *Service) InProgress(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

func questionNotice(i int) model.Notice {
	return model.Notice{
		Title: fmt.Sprintf("Question %d/%d", i+1, len(Questions)),
		Body:  Questions[i].Prompt,
		Color: 0x5865F2,
	}
}

// Begin sends the first question. The rest of the questionnaire runs in the
// background, fed by Answer.
func (s *Service) Begin(ctx context.Context, userID, username string) error {
	s.mu.Lock()
	if _, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return ErrInProgress
	}
	sess := &session{answers: make(chan string, 1)}
	s.sessions[userID] = sess
	s.mu.Unlock()

	if err := s.platform.SendDirect(ctx, userID, questionNotice(0)); err != nil {
		s.drop(userID)
		return fmt.Errorf("%w: %v", ErrDMClosed, err)
	}

	s.wg.Add(1)
	go s.run(userID, username, sess)
	return nil
}

// Answer hands a DM to the applicant's questionnaire. It reports false when
// the user has none running.
func (s *Service) Answer(userID, content string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case sess.answers <- content:
	default:
		// an answer is already queued for the current question
	}
	return true
}

func (s *Service) drop(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *Service) run(userID, username string, sess *session) {
	defer s.wg.Done()
	defer s.drop(userID)
	ctx := s.base

	answers := make(map[string]string, len(Questions))
	for i, q := range Questions {
		if i > 0 {
			if err := s.platform.SendDirect(ctx, userID, questionNotice(i)); err != nil {
				logger.Warn("Failed to send application question", zap.String("user", userID), zap.Error(err))
				return
			}
		}
		timer := time.NewTimer(s.timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.platform.SendDirect(ctx, userID, model.Notice{Content: timeoutNotice}); err != nil {
				logger.Warn("Failed to send application timeout notice", zap.String("user", userID), zap.Error(err))
			}
			return
		case a := <-sess.answers:
			timer.Stop()
			answers[q.Field] = a
		}
	}

	app := Application{
		ID:            uuid.NewString(),
		ApplicantID:   userID,
		ApplicantName: username,
		Answers:       answers,
		SubmittedAt:   s.now(),
	}
	if _, err := s.platform.SendNotice(ctx, s.channelID, SubmissionNotice(app)); err != nil {
		logger.Error("Failed to post staff application", zap.String("user", userID), zap.Error(err))
		_ = s.platform.SendDirect(ctx, userID, model.Notice{Content: "Error: Applications channel not found!"})
		return
	}
	logger.Info("Staff application submitted", zap.String("user", userID), zap.String("application", app.ID))
	if err := s.platform.SendDirect(ctx, userID, model.Notice{Content: "Your application has been submitted successfully! The staff team will review it soon."}); err != nil {
		logger.Warn("Failed to confirm application", zap.String("user", userID), zap.Error(err))
	}
}

// SubmissionNotice is the review card posted to the applications channel.
func SubmissionNotice(app Application) model.Notice {
	a := app.Answers
	return model.Notice{
		Title: "📝 New Staff Application",
		Color: 0x5865F2,
		Fields: []model.NoticeField{
			{Name: "Applicant", Value: app.ApplicantName + " (<@" + app.ApplicantID + ">)"},
			{Name: "1️⃣ Basic Information", Value: fmt.Sprintf("**Minecraft Username:** %s\n**Discord Username:** %s\n**Age:** %s\n**Timezone:** %s",
				a["Minecraft Username"], a["Discord Username"], a["Age"], a["Timezone"])},
			{Name: "2️⃣ Experience & Skills", Value: a["Experience"]},
			{Name: "Team Choice", Value: a["Team Choice"]},
			{Name: "3️⃣ Moderation & Responsibilities", Value: a["Moderation"]},
			{Name: "4️⃣ Availability & Commitment", Value: a["Availability"]},
			{Name: "5️⃣ Final Questions", Value: a["Final Questions"]},
			{Name: "Application ID", Value: app.ID},
		},
		Controls: []model.Control{
			{CustomID: AcceptPrefix + app.ApplicantID, Label: "✅ Accept", Style: model.ControlSuccess},
			{CustomID: DenyPrefix + app.ApplicantID, Label: "❌ Deny", Style: model.ControlDanger},
		},
	}
}

// ParseDecision splits a decision control id into applicant and verdict.
func ParseDecision(customID string) (applicantID string, accept, ok bool) {
	switch {
	case strings.HasPrefix(customID, AcceptPrefix):
		return strings.TrimPrefix(customID, AcceptPrefix), true, true
	case strings.HasPrefix(customID, DenyPrefix):
		return strings.TrimPrefix(customID, DenyPrefix), false, true
	}
	return "", false, false
}

// Decision is a council verdict on a posted application.
type Decision struct {
	ChannelID   string
	MessageID   string
	ApplicantID string
	Reviewer    model.Actor
	Accept      bool
	Original    model.Notice
}

// Decide rewrites the review card and DMs the applicant. A failed DM is logged only.
func (s *Service) Decide(ctx context.Context, d Decision) (model.Notice, error) {
	if !utils.HasCapability(d.Reviewer.Roles, utils.CouncilCapability, s.roles) {
		return model.Notice{}, ErrForbidden
	}

	card := d.Original
	card.Controls = nil
	card.Fields = append([]model.NoticeField(nil), d.Original.Fields...)
	dm := model.Notice{Fields: []model.NoticeField{}}
	if d.Accept {
		card.Title, card.Color = "✅ Application Accepted", 0x00ff00
		card.Fields = append(card.Fields, model.NoticeField{Name: "Accepted By", Value: "<@" + d.Reviewer.ID + ">", Inline: true})
		dm.Title, dm.Color = "✅ Application Accepted", 0x00ff00
		dm.Body = "Your staff application has been accepted! Please open a ticket to continue the process."
		dm.Fields = append(dm.Fields, model.NoticeField{Name: "Accepted By", Value: "<@" + d.Reviewer.ID + ">", Inline: true})
	} else {
		card.Title, card.Color = "❌ Application Denied", 0xff0000
		card.Fields = append(card.Fields, model.NoticeField{Name: "Denied By", Value: "<@" + d.Reviewer.ID + ">", Inline: true})
		dm.Title, dm.Color = "❌ Application Denied", 0xff0000
		dm.Body = "Your staff application has been denied. You can reapply in 14 days."
		dm.Fields = append(dm.Fields, model.NoticeField{Name: "Denied By", Value: "<@" + d.Reviewer.ID + ">", Inline: true})
	}

	if err := s.platform.EditNotice(ctx, d.ChannelID, d.MessageID, card); err != nil {
		return model.Notice{}, fmt.Errorf("update application card: %w", err)
	}
	if err := s.platform.SendDirect(ctx, d.ApplicantID, dm); err != nil {
		logger.Warn("Failed to DM applicant", zap.String("user", d.ApplicantID), zap.Error(err))
	}
	logger.Info("Staff application decided", zap.String("applicant", d.ApplicantID), zap.Bool("accepted", d.Accept), zap.String("reviewer", d.Reviewer.ID))
	return card, nil
}

// PanelNotice is the message /setup_staff_applications posts.
func PanelNotice() model.Notice {
	return model.Notice{
		Title: "📝 Echo Network Staff Applications",
		Body: "Interested in joining our staff team? Click the button below to apply!\n\n" +
			"**Requirements:**\n• Must be 14 years or older\n• Active on both Discord and Minecraft\n" +
			"• Good communication skills\n• Fair and unbiased\n• Willing to help others\n\n" +
			"**Available Positions:**\n• Community Team (Discord Moderation)\n• In-Game Team (Minecraft Moderation)",
		Color:    0x5865F2,
		Controls: []model.Control{{CustomID: ApplyControl, Label: "📝 Apply for Staff", Style: model.ControlSuccess}},
	}
}
