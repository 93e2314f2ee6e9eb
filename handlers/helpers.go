package handlers

import (
	"context"
	"errors"
	"time"

	"echo-helper/applications"
	"echo-helper/bot"
	"echo-helper/grants"
	"echo-helper/model"
	"echo-helper/moderation"
	"echo-helper/platform"
	"echo-helper/streams"
	"echo-helper/tickets"
	"echo-helper/utils"

	"github.com/bwmarrin/discordgo"
)

const handlerTimeout = 30 * time.Second

type interactionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot)

func handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

func actorOf(i *discordgo.InteractionCreate) model.Actor {
	if i.Member != nil {
		return platform.ActorFromMember(i.Member)
	}
	if i.User != nil {
		return model.Actor{ID: i.User.ID, Name: i.User.Username}
	}
	return model.Actor{}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// targetUser returns the "user" option or the caller.
func targetUser(s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	if opt, ok := opts["user"]; ok {
		if u := opt.UserValue(s); u != nil {
			return u
		}
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// requireAll gates a handler on every listed capability.
func requireAll(h interactionHandler, capabilities ...string) interactionHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
		if !utils.HasAllCapabilities(actorOf(i).Roles, b.GetConfig().Roles, capabilities...) {
			utils.SendErrorResponse(s, i, "You don't have permission to use this command!")
			return
		}
		h(s, i, b)
	}
}

// requireAny gates a handler on at least one listed capability.
func requireAny(h interactionHandler, capabilities ...string) interactionHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
		if !utils.HasAnyCapability(actorOf(i).Roles, b.GetConfig().Roles, capabilities...) {
			utils.SendErrorResponse(s, i, "You don't have permission to use this command!")
			return
		}
		h(s, i, b)
	}
}

// inChannel restricts a handler to one configured channel.
func inChannel(h interactionHandler, channel func(cfg *model.Config) string) interactionHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
		want := channel(b.GetConfig())
		if want != "" && i.ChannelID != want {
			utils.SendErrorResponse(s, i, "This command can only be used in <#"+want+">!")
			return
		}
		h(s, i, b)
	}
}

// userFacing errors are shown to the caller as their own message.
var userFacing = []error{
	tickets.ErrNotTicketChannel,
	tickets.ErrUnknownTicket,
	tickets.ErrNotClaimed,
	tickets.ErrRequesterRemoval,
	tickets.ErrClosing,
	moderation.ErrNoEvidence,
	moderation.ErrInvalidAmount,
	moderation.ErrNothingToRemove,
	grants.ErrNoGrant,
	streams.ErrInvalidURL,
	streams.ErrNoStream,
	applications.ErrInProgress,
	applications.ErrDMClosed,
	applications.ErrForbidden,
	utils.ErrInvalidDuration,
}

// errorText maps domain errors to the message shown to the caller.
func errorText(err error, actor model.Actor, roles model.RoleConfig) string {
	var claimed *tickets.AlreadyClaimedError
	if errors.As(err, &claimed) {
		if utils.HasCapability(actor.Roles, utils.TicketAdminCapability, roles) && claimed.ClaimedBy != "" {
			return "This ticket is already claimed by <@" + claimed.ClaimedBy + ">"
		}
		return "This ticket is already claimed!"
	}
	for _, target := range userFacing {
		if errors.Is(err, target) {
			return capitalize(target.Error())
		}
	}
	switch {
	case errors.Is(err, tickets.ErrForbidden):
		return "You don't have permission to do that!"
	case errors.Is(err, tickets.ErrCategoryNotFound):
		return "Error: Ticket category not found! Please contact an administrator."
	case errors.Is(err, grants.ErrNicknameForbidden):
		return "I don't have permission to change your nickname!"
	default:
		return "An error occurred. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
