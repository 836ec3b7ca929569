package commands

import (
	"context"
	"strings"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/settings"
)

// PromptCommand sets the text prompt used for the user's future sessions.
type PromptCommand struct {
	logger *zap.Logger
	store  *settings.Store
}

// NewPromptCommand creates a new PromptCommand instance.
func NewPromptCommand(logger *zap.Logger, store *settings.Store) Command {
	return &PromptCommand{logger: logger, store: store}
}

func (c *PromptCommand) Name() string {
	return "prompt"
}

func (c *PromptCommand) Description() string {
	return "Set the instructions the voice AI follows in your sessions"
}

func (c *PromptCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "text",
			Description: "Instructions for the AI",
			Required:    true,
		},
	}
}

func (c *PromptCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	var prompt string
	for _, option := range data.Options {
		if option.Name == "text" {
			prompt = strings.TrimSpace(option.String())
		}
	}

	if prompt == "" {
		return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.MessageInteractionWithSource,
			Data: &api.InteractionResponseData{
				Content: option.NewNullableString("The prompt cannot be empty"),
				Flags:   discord.EphemeralMessage,
			},
		})
	}

	c.store.SetPrompt(e.SenderID(), prompt)

	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString("Prompt saved. It applies to your next session."),
			Flags:   discord.EphemeralMessage,
		},
	})
}
