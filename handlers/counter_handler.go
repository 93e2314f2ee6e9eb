package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"echo-helper/bot"
	"echo-helper/moderation"
	"echo-helper/utils"
	"echo-helper/utils/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type counterKind struct {
	counts  func(b *bot.Bot) *moderation.Counters
	noun    string // "ticket" / "report"
	verb    string
	title   string
	lbTitle string
	prefix  string
	color   int
}

var (
	ticketCounter = counterKind{
		counts:  func(b *bot.Bot) *moderation.Counters { return b.TicketCounts },
		noun:    "ticket",
		verb:    "closed",
		title:   "🎫 Ticket Count",
		lbTitle: "🏆 Ticket Leaderboard",
		prefix:  ticketLBPrefix,
		color:   0x5865F2,
	}
	reportCounter = counterKind{
		counts:  func(b *bot.Bot) *moderation.Counters { return b.ReportCounts },
		noun:    "report",
		verb:    "submitted",
		title:   "🚨 Report Count",
		lbTitle: "🏆 Report Leaderboard",
		prefix:  reportLBPrefix,
		color:   0xff9900,
	}
)

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (k counterKind) check(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	user := targetUser(s, i, optionMap(i))
	ctx, cancel := handlerContext()
	defer cancel()

	n, err := k.counts(b).Get(ctx, user.ID)
	if err != nil {
		logger.Error("Failed to read counter", zap.String("kind", k.noun), zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to read the count.")
		return
	}
	utils.SendEmbedResponse(s, i, &discordgo.MessageEmbed{
		Title:       k.title,
		Description: fmt.Sprintf("<@%s> has %s %s", user.ID, k.verb, plural(n, k.noun)),
		Color:       k.color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}, nil, false)
}

func (k counterKind) page(b *bot.Bot, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	ctx, cancel := handlerContext()
	defer cancel()

	entries, err := k.counts(b).Top(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	page, start, end := utils.PageBounds(page, len(entries))
	total := utils.TotalPages(len(entries))

	var sb strings.Builder
	medals := []string{"🥇", "🥈", "🥉"}
	for n, e := range entries[start:end] {
		rank := start + n + 1
		label := fmt.Sprintf("%d.", rank)
		if rank <= len(medals) {
			label = medals[rank-1]
		}
		fmt.Fprintf(&sb, "%s <@%s> - %s\n", label, e.UserID, plural(e.Count, k.noun))
	}
	if sb.Len() == 0 {
		sb.WriteString("No data yet")
	}
	embed := &discordgo.MessageEmbed{
		Title:       k.lbTitle,
		Description: sb.String(),
		Color:       k.color,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", page, total)},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	return embed, utils.CreatePaginationComponents(page, total, k.prefix), nil
}

func (k counterKind) leaderboard(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	embed, components, err := k.page(b, 1)
	if err != nil {
		logger.Error("Failed to build leaderboard", zap.String("kind", k.noun), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load the leaderboard.")
		return
	}
	utils.SendEmbedResponse(s, i, embed, components, false)
}

func (k counterKind) add(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i)
	user := opts["user"].UserValue(s)
	amount := int(opts["amount"].IntValue())
	ctx, cancel := handlerContext()
	defer cancel()

	n, err := k.counts(b).Add(ctx, user.ID, amount)
	if err != nil {
		logger.Error("Failed to add to counter", zap.String("kind", k.noun), zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, errorText(err, actorOf(i), b.GetConfig().Roles))
		return
	}
	b.Audit.Info(ctx, "Counters", "Add", fmt.Sprintf("<@%s> added %s to <@%s> (now %d)", actorOf(i).ID, plural(amount, k.noun), user.ID, n))
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Added %s to <@%s>. They now have %s.", plural(amount, k.noun), user.ID, plural(n, k.noun)))
}

func (k counterKind) remove(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := optionMap(i)
	user := opts["user"].UserValue(s)
	amount := int(opts["amount"].IntValue())
	ctx, cancel := handlerContext()
	defer cancel()

	n, removed, err := k.counts(b).Remove(ctx, user.ID, amount)
	if errors.Is(err, moderation.ErrNothingToRemove) {
		utils.SendErrorResponse(s, i, fmt.Sprintf("<@%s> has no %ss to remove.", user.ID, k.noun))
		return
	}
	if err != nil {
		logger.Error("Failed to remove from counter", zap.String("kind", k.noun), zap.String("user", user.ID), zap.Error(err))
		utils.SendErrorResponse(s, i, errorText(err, actorOf(i), b.GetConfig().Roles))
		return
	}
	b.Audit.Info(ctx, "Counters", "Remove", fmt.Sprintf("<@%s> removed %s from <@%s> (now %d)", actorOf(i).ID, plural(removed, k.noun), user.ID, n))
	utils.SendSimpleResponse(s, i, fmt.Sprintf("✅ Removed %s from <@%s>. They now have %s.", plural(removed, k.noun), user.ID, plural(n, k.noun)))
}

func handleTicketCheck(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ticketCounter.check(s, i, b)
}

func handleReportCheck(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	reportCounter.check(s, i, b)
}

func handleTicketLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ticketCounter.leaderboard(s, i, b)
}

func handleReportLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	reportCounter.leaderboard(s, i, b)
}

func handleAddTicket(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ticketCounter.add(s, i, b)
}

func handleRemoveTicket(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ticketCounter.remove(s, i, b)
}

func handleAddReport(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	reportCounter.add(s, i, b)
}

func handleRemoveReport(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	reportCounter.remove(s, i, b)
}

// handleLeaderboardPage handles the Previous/Next buttons, custom id "<prefix>:<page>".
func handleLeaderboardPage(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, prefix string) {
	k := ticketCounter
	if prefix == reportLBPrefix {
		k = reportCounter
	}
	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	page := 1
	if len(parts) > 1 {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			page = p
		}
	}
	embed, components, err := k.page(b, page)
	if err != nil {
		logger.Error("Failed to build leaderboard page", zap.String("kind", k.noun), zap.Int("page", page), zap.Error(err))
		utils.SendErrorResponse(s, i, "Failed to load the leaderboard.")
		return
	}
	utils.UpdateEmbedResponse(s, i, embed, components)
}
