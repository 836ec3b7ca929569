// Package bot wires the Discord gateway events to the command and voice
// layers.
package bot

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/commands"
	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/voice"
)

// Bot represents the Discord bot.
type Bot struct {
	session      *session.Session
	state        *state.State
	config       *config.Config
	cmdManager   *commands.CommandManager
	voiceService *voice.Service
	logger       *zap.Logger

	selfID discord.UserID
}

// NewBotParameters holds dependencies for NewBot.
type NewBotParameters struct {
	fx.In

	Cfg          *config.Config
	Session      *session.Session
	State        *state.State
	CmdManager   *commands.CommandManager
	VoiceService *voice.Service
	Logger       *zap.Logger
}

// NewBot creates and initializes a new Bot and registers its gateway
// handlers.
func NewBot(params NewBotParameters) (*Bot, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("session provided to NewBot is nil")
	}

	b := &Bot{
		session:      params.Session,
		state:        params.State,
		config:       params.Cfg,
		cmdManager:   params.CmdManager,
		voiceService: params.VoiceService,
		logger:       params.Logger.Named("bot"),
	}

	params.Session.AddHandler(func(e *gateway.InteractionCreateEvent) {
		b.handleInteraction(context.Background(), e)
	})
	params.Session.AddHandler(func(e *gateway.ReadyEvent) {
		b.selfID = e.User.ID
		b.logger.Info("Gateway ready", zap.Stringer("user_id", e.User.ID))
	})
	params.Session.AddHandler(func(e *gateway.VoiceStateUpdateEvent) {
		b.handleVoiceStateUpdate(e)
	})

	return b, nil
}

// Start registers slash commands for the configured guilds. Session opening
// is handled by the Fx lifecycle.
func (b *Bot) Start(_ context.Context) error {
	var guildIDs []discord.GuildID
	for _, idStr := range b.config.Discord.GuildIDs {
		sf, err := discord.ParseSnowflake(idStr)
		if err != nil {
			b.logger.Error("Failed to parse guild ID", zap.String("guildID", idStr), zap.Error(err))
			continue
		}
		guildIDs = append(guildIDs, discord.GuildID(sf))
	}

	if len(guildIDs) == 0 {
		b.logger.Warn("No guild IDs configured, commands will not be registered")
		return nil
	}

	b.cmdManager.RegisterCommands(guildIDs)
	return nil
}

// Stop tears down any live voice session.
func (b *Bot) Stop(ctx context.Context) error {
	for _, guildID := range b.activeGuilds() {
		if err := b.voiceService.Stop(ctx, guildID); err != nil {
			b.logger.Warn("Failed to stop voice session during shutdown",
				zap.Stringer("guild_id", guildID), zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) activeGuilds() []discord.GuildID {
	var ids []discord.GuildID
	for _, idStr := range b.config.Discord.GuildIDs {
		sf, err := discord.ParseSnowflake(idStr)
		if err != nil {
			continue
		}
		guildID := discord.GuildID(sf)
		if _, ok := b.voiceService.Status(guildID); ok {
			ids = append(ids, guildID)
		}
	}
	return ids
}
