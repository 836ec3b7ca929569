package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/settings"
)

// VoiceCommand picks the AI voice used for the user's future sessions.
type VoiceCommand struct {
	logger *zap.Logger
	store  *settings.Store
}

// NewVoiceCommand creates a new VoiceCommand instance.
func NewVoiceCommand(logger *zap.Logger, store *settings.Store) Command {
	return &VoiceCommand{logger: logger, store: store}
}

func (c *VoiceCommand) Name() string {
	return "voice"
}

func (c *VoiceCommand) Description() string {
	return "Choose the voice the AI speaks with"
}

func (c *VoiceCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "action",
			Description: "Action to perform",
			Required:    true,
			Choices: []discord.StringChoice{
				{Name: "set", Value: "set"},
				{Name: "list", Value: "list"},
			},
		},
		&discord.StringOption{
			OptionName:  "name",
			Description: "Voice name, see /voice list",
			Required:    false,
		},
	}
}

func (c *VoiceCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	var action, name string
	for _, option := range data.Options {
		switch option.Name {
		case "action":
			action = option.String()
		case "name":
			name = strings.TrimSpace(option.String())
		}
	}

	switch action {
	case "set":
		return c.handleSet(s, e, name)
	case "list":
		return c.handleList(s, e)
	default:
		return c.respond(s, e, "Unknown action: "+action)
	}
}

func (c *VoiceCommand) handleSet(s *session.Session, e *gateway.InteractionCreateEvent, name string) error {
	if name == "" {
		return c.respond(s, e, "Provide a voice name, see /voice list")
	}

	if err := c.store.SetVoice(e.SenderID(), name); err != nil {
		if errors.Is(err, settings.ErrUnknownVoice) {
			return c.respond(s, e, fmt.Sprintf("Unknown voice `%s`, see /voice list", name))
		}
		c.logger.Error("Failed to set voice", zap.Error(err), zap.Stringer("user_id", e.SenderID()))
		return c.respond(s, e, "Failed to set voice")
	}

	return c.respond(s, e, fmt.Sprintf("Voice set to `%s`. It applies to your next session.", name))
}

func (c *VoiceCommand) handleList(s *session.Session, e *gateway.InteractionCreateEvent) error {
	groups, err := c.store.ListVoices()
	if err != nil {
		c.logger.Error("Failed to list voices", zap.Error(err))
		return c.respond(s, e, "Failed to read available voices")
	}
	if len(groups) == 0 {
		return c.respond(s, e, "No voices available")
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var sb strings.Builder
	sb.WriteString("Available voices:\n")
	for _, label := range labels {
		sb.WriteString(fmt.Sprintf("**%s**: %s\n", label, strings.Join(groups[label], ", ")))
	}
	return c.respond(s, e, sb.String())
}

func (c *VoiceCommand) respond(s *session.Session, e *gateway.InteractionCreateEvent, message string) error {
	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(message),
			Flags:   discord.EphemeralMessage,
		},
	})
}
