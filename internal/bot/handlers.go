package bot

import (
	"context"
	"errors"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/bridge"
	"github.com/discordplex/discordplex/internal/voice"
)

func (b *Bot) handleInteraction(ctx context.Context, e *gateway.InteractionCreateEvent) {
	data, ok := e.Data.(*discord.CommandInteraction)
	if !ok {
		b.logger.Debug("Received unhandled interaction type", zap.Any("type", e.Data))
		return
	}

	b.logger.Info("Received slash command",
		zap.String("commandName", data.Name),
		zap.Stringer("user_id", e.SenderID()))

	cmd, ok := b.cmdManager.GetCommand(data.Name)
	if !ok {
		b.logger.Warn("Unknown command", zap.String("commandName", data.Name))
		err := b.session.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.MessageInteractionWithSource,
			Data: &api.InteractionResponseData{
				Content: option.NewNullableString("Command not found."),
			},
		})
		if err != nil {
			b.logger.Error("Failed to respond to unknown command", zap.Error(err))
		}
		return
	}

	if err := cmd.Execute(ctx, b.session, e, data); err != nil {
		b.logger.Error("Error executing command",
			zap.String("commandName", data.Name), zap.Error(err))
		errResp := b.session.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.MessageInteractionWithSource,
			Data: &api.InteractionResponseData{
				Content: option.NewNullableString("An error occurred while executing the command."),
			},
		})
		if errResp != nil {
			b.logger.Error("Failed to send command error response", zap.Error(errResp))
		}
	}
}

// handleVoiceStateUpdate follows users into and out of voice channels: the
// bot joins when a user enters a voice channel while it is idle, and leaves
// once its channel has no users left.
func (b *Bot) handleVoiceStateUpdate(e *gateway.VoiceStateUpdateEvent) {
	if e.UserID == b.selfID || !e.GuildID.IsValid() {
		return
	}
	if e.Member != nil && e.Member.User.Bot {
		return
	}

	if e.ChannelID.IsValid() {
		b.maybeFollowUser(e.GuildID, e.ChannelID, e.UserID)
		return
	}
	b.maybeLeaveEmptyChannel(e.GuildID)
}

func (b *Bot) maybeFollowUser(guildID discord.GuildID, channelID discord.ChannelID, userID discord.UserID) {
	if _, active := b.voiceService.Status(guildID); active {
		return
	}

	textChannelID := b.sessionTextChannel(guildID)
	if !textChannelID.IsValid() {
		b.logger.Warn("No text channel found for session output, not auto-joining",
			zap.Stringer("guild_id", guildID))
		return
	}

	b.logger.Info("User joined voice channel, following",
		zap.Stringer("guild_id", guildID),
		zap.Stringer("channel_id", channelID),
		zap.Stringer("user_id", userID))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		err := b.voiceService.Start(ctx, guildID, channelID, textChannelID, userID)
		if err != nil && !errors.Is(err, bridge.ErrBusy) {
			b.logger.Error("Auto-join failed",
				zap.Stringer("guild_id", guildID),
				zap.Stringer("channel_id", channelID),
				zap.Error(err))
		}
	}()
}

func (b *Bot) maybeLeaveEmptyChannel(guildID discord.GuildID) {
	channelID, active := b.voiceService.SessionChannel(guildID)
	if !active {
		return
	}
	if b.usersInChannel(guildID, channelID) > 0 {
		return
	}

	b.logger.Info("Voice channel empty, leaving",
		zap.Stringer("guild_id", guildID),
		zap.Stringer("channel_id", channelID))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.voiceService.Stop(ctx, guildID); err != nil && !errors.Is(err, voice.ErrNotInSession) {
			b.logger.Error("Auto-leave failed", zap.Stringer("guild_id", guildID), zap.Error(err))
		}
	}()
}

// usersInChannel counts non-bot users other than the bot itself in a voice
// channel.
func (b *Bot) usersInChannel(guildID discord.GuildID, channelID discord.ChannelID) int {
	voiceStates, err := b.state.VoiceStates(guildID)
	if err != nil {
		b.logger.Warn("Failed to query voice states", zap.Error(err))
		return 0
	}

	count := 0
	for _, vs := range voiceStates {
		if vs.ChannelID != channelID || vs.UserID == b.selfID {
			continue
		}
		if member, err := b.state.Member(guildID, vs.UserID); err == nil && member.User.Bot {
			continue
		}
		count++
	}
	return count
}

// sessionTextChannel picks where session text output goes: the guild's
// system channel when set, otherwise the first text channel.
func (b *Bot) sessionTextChannel(guildID discord.GuildID) discord.ChannelID {
	guild, err := b.state.Guild(guildID)
	if err == nil && guild.SystemChannelID.IsValid() {
		return guild.SystemChannelID
	}

	channels, err := b.state.Channels(guildID)
	if err != nil {
		return 0
	}
	for _, ch := range channels {
		if ch.Type == discord.GuildText {
			return ch.ID
		}
	}
	return 0
}
