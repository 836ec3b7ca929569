// Package voice manages the bot's presence in Discord voice channels: joining
// and leaving, capturing participant audio into the bridge, and playing the
// bridge's output back into the channel.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/bridge"
	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/settings"
)

// ErrNotInSession indicates no voice session exists for the guild.
var ErrNotInSession = errors.New("no voice session in guild")

// Status describes a guild's live voice session.
type Status struct {
	ChannelID     discord.ChannelID
	TextChannelID discord.ChannelID
	Voice         string
	StartedAt     time.Time
}

// Service coordinates one voice session per guild. The backend serves a
// single connection, so in practice only one guild can have a live session
// at a time; the bridge enforces that.
type Service struct {
	logger   *zap.Logger
	cfg      *config.Config
	state    *state.State
	bridge   *bridge.Bridge
	settings *settings.Store

	mu       sync.Mutex
	sessions map[discord.GuildID]*guildSession
}

// NewService creates the voice service.
func NewService(logger *zap.Logger, cfg *config.Config, st *state.State, b *bridge.Bridge, store *settings.Store) *Service {
	return &Service{
		logger:   logger.Named("voice"),
		cfg:      cfg,
		state:    st,
		bridge:   b,
		settings: store,
		sessions: make(map[discord.GuildID]*guildSession),
	}
}

// Start joins the voice channel, connects the bridge with the invoking user's
// settings, greets the channel and begins relaying audio.
func (s *Service) Start(ctx context.Context, guildID discord.GuildID, channelID, textChannelID discord.ChannelID, userID discord.UserID) error {
	s.mu.Lock()
	if _, exists := s.sessions[guildID]; exists {
		s.mu.Unlock()
		return bridge.ErrBusy
	}
	s.mu.Unlock()

	userSettings := s.settings.Get(userID)

	voiceSession, err := voice.NewSession(s.state)
	if err != nil {
		return fmt.Errorf("create voice session: %w", err)
	}
	if err := voiceSession.JoinChannel(ctx, channelID, false, false); err != nil {
		return fmt.Errorf("join voice channel: %w", err)
	}
	if err := voiceSession.Speaking(ctx, voicegateway.Microphone); err != nil {
		voiceSession.Leave(ctx)
		return fmt.Errorf("set speaking mode: %w", err)
	}
	// The UDP socket is not bidirectionally ready until the first write;
	// without it ReadPacket blocks forever.
	_, _ = voiceSession.Write(nil)

	gs := newGuildSession(s, guildID, channelID, textChannelID, voiceSession, userSettings.Voice)

	err = s.bridge.StartSession(ctx, userSettings.Prompt, userSettings.Voice, gs, gs)
	if err != nil {
		voiceSession.Leave(ctx)
		return err
	}

	s.mu.Lock()
	s.sessions[guildID] = gs
	s.mu.Unlock()

	gs.start()

	s.logger.Info("Voice session started",
		zap.Stringer("guild_id", guildID),
		zap.Stringer("channel_id", channelID),
		zap.String("voice", userSettings.Voice))
	return nil
}

// Stop ends the guild's session and leaves the voice channel.
func (s *Service) Stop(ctx context.Context, guildID discord.GuildID) error {
	s.mu.Lock()
	gs, exists := s.sessions[guildID]
	delete(s.sessions, guildID)
	s.mu.Unlock()

	if !exists {
		return ErrNotInSession
	}

	if err := s.bridge.StopSession(); err != nil && !errors.Is(err, bridge.ErrNoSession) {
		s.logger.Warn("Bridge stop failed", zap.Error(err))
	}
	gs.stop(ctx)

	s.logger.Info("Voice session stopped", zap.Stringer("guild_id", guildID))
	return nil
}

// Status returns the guild's session status.
func (s *Service) Status(guildID discord.GuildID) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs, exists := s.sessions[guildID]
	if !exists {
		return Status{}, false
	}
	return Status{
		ChannelID:     gs.channelID,
		TextChannelID: gs.textChannelID,
		Voice:         gs.voiceName,
		StartedAt:     gs.startedAt,
	}, true
}

// SessionChannel returns the voice channel the bot occupies in the guild.
func (s *Service) SessionChannel(guildID discord.GuildID) (discord.ChannelID, bool) {
	status, ok := s.Status(guildID)
	return status.ChannelID, ok
}

// handleSessionError tears the session down after a terminal bridge error and
// tells the text channel what happened.
func (s *Service) handleSessionError(guildID discord.GuildID, textChannelID discord.ChannelID, err error) {
	s.logger.Error("Voice session failed",
		zap.Stringer("guild_id", guildID),
		zap.Error(err))

	if _, sendErr := s.state.SendMessage(textChannelID, "Voice session ended: "+err.Error()); sendErr != nil {
		s.logger.Warn("Failed to report session error to channel", zap.Error(sendErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := s.Stop(ctx, guildID); stopErr != nil && !errors.Is(stopErr, ErrNotInSession) {
		s.logger.Warn("Cleanup after session error failed", zap.Error(stopErr))
	}
}
