package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/bridge"
	"github.com/discordplex/discordplex/internal/personaplex"
	"github.com/discordplex/discordplex/internal/voice"
)

// PlexCommand controls the voice AI session in a guild.
type PlexCommand struct {
	logger       *zap.Logger
	voiceService *voice.Service
	state        *state.State
}

// NewPlexCommand creates a new PlexCommand instance.
func NewPlexCommand(logger *zap.Logger, voiceService *voice.Service, st *state.State) Command {
	return &PlexCommand{
		logger:       logger,
		voiceService: voiceService,
		state:        st,
	}
}

func (c *PlexCommand) Name() string {
	return "plex"
}

func (c *PlexCommand) Description() string {
	return "Control the voice AI assistant"
}

func (c *PlexCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "action",
			Description: "Action to perform",
			Required:    true,
			Choices: []discord.StringChoice{
				{Name: "start", Value: "start"},
				{Name: "stop", Value: "stop"},
				{Name: "status", Value: "status"},
			},
		},
	}
}

func (c *PlexCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	var action string
	for _, option := range data.Options {
		if option.Name == "action" {
			action = option.String()
		}
	}

	if e.GuildID == 0 {
		return c.respondError(s, e.ID, e.Token, "Voice commands can only be used in servers")
	}

	switch action {
	case "start":
		return c.handleStart(ctx, s, e)
	case "stop":
		return c.handleStop(ctx, s, e)
	case "status":
		return c.handleStatus(s, e)
	default:
		return c.respondError(s, e.ID, e.Token, "Unknown action: "+action)
	}
}

func (c *PlexCommand) handleStart(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent) error {
	userID := e.SenderID()

	voiceChannelID, err := c.userVoiceChannel(e.GuildID, userID)
	if err != nil {
		return c.respondError(s, e.ID, e.Token, "Please join a voice channel first")
	}

	// Respond before dialing: the backend handshake can take most of a
	// minute on cold start, far beyond the interaction deadline.
	err = s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString("Starting voice AI session, the model may take a moment to load..."),
		},
	})
	if err != nil {
		return err
	}

	textChannelID := e.ChannelID
	go func() {
		startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		err := c.voiceService.Start(startCtx, e.GuildID, voiceChannelID, textChannelID, userID)
		if err != nil {
			c.logger.Error("Failed to start voice session",
				zap.Error(err),
				zap.Stringer("guild_id", e.GuildID),
				zap.Stringer("user_id", userID))

			if _, sendErr := s.SendMessage(textChannelID, "Failed to start voice session: "+startFailureReason(err)); sendErr != nil {
				c.logger.Error("Failed to send error follow-up message", zap.Error(sendErr))
			}
			return
		}

		msg := fmt.Sprintf("Voice AI started in <#%s>. Just speak and I'll respond!", voiceChannelID)
		if _, sendErr := s.SendMessage(textChannelID, msg); sendErr != nil {
			c.logger.Error("Failed to send success follow-up message", zap.Error(sendErr))
		}
	}()

	return nil
}

// startFailureReason maps session start errors to user-facing text.
func startFailureReason(err error) string {
	switch {
	case errors.Is(err, bridge.ErrBusy):
		return "a session is already running, stop it first"
	case errors.Is(err, personaplex.ErrConnectionRefused):
		return "the PersonaPlex server is not reachable"
	case errors.Is(err, personaplex.ErrHandshakeTimeout):
		return "the PersonaPlex server did not become ready in time"
	default:
		return err.Error()
	}
}

func (c *PlexCommand) handleStop(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent) error {
	err := c.voiceService.Stop(ctx, e.GuildID)
	if err != nil {
		if errors.Is(err, voice.ErrNotInSession) {
			return c.respondError(s, e.ID, e.Token, "No active voice session in this server")
		}

		c.logger.Error("Failed to stop voice session",
			zap.Error(err),
			zap.Stringer("guild_id", e.GuildID))
		return c.respondError(s, e.ID, e.Token, "Failed to stop voice session: "+err.Error())
	}

	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString("Voice AI session stopped"),
		},
	})
}

func (c *PlexCommand) handleStatus(s *session.Session, e *gateway.InteractionCreateEvent) error {
	status, active := c.voiceService.Status(e.GuildID)

	var responseText string
	if !active {
		responseText = "No active voice session in this server"
	} else {
		duration := time.Since(status.StartedAt).Round(time.Second)
		responseText = fmt.Sprintf("Voice AI active in <#%s>\nVoice: `%s`\nDuration: %s",
			status.ChannelID, status.Voice, duration)
	}

	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(responseText),
		},
	})
}

func (c *PlexCommand) userVoiceChannel(guildID discord.GuildID, userID discord.UserID) (discord.ChannelID, error) {
	voiceState, err := c.state.VoiceState(guildID, userID)
	if err == nil && voiceState != nil && voiceState.ChannelID.IsValid() {
		return voiceState.ChannelID, nil
	}

	// Fall back to scanning all guild voice states in case the per-user
	// cache is cold.
	voiceStates, err := c.state.VoiceStates(guildID)
	if err != nil {
		return 0, errors.New("unable to query voice states")
	}
	for _, vs := range voiceStates {
		if vs.UserID == userID && vs.ChannelID.IsValid() {
			return vs.ChannelID, nil
		}
	}
	return 0, errors.New("user is not currently in a voice channel")
}

func (c *PlexCommand) respondError(s *session.Session, interactionID discord.InteractionID, token, message string) error {
	err := s.RespondInteraction(interactionID, token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(message),
			Flags:   discord.EphemeralMessage,
		},
	})
	if err != nil {
		c.logger.Error("Failed to send error response", zap.Error(err), zap.String("message", message))
	}
	return err
}
