package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discordplex/discordplex/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
discord:
  bot_token: "token"
  application_id: 1234567890
  guild_ids:
    - "111"
    - "222"
personaplex:
  url: "wss://plex.internal:9000/api/chat"
  voice_dir: "/opt/voices"
  default_voice: "NATM1.pt"
  default_prompt: "Be succinct."
  handshake_timeout_seconds: 30
bridge:
  input_queue_frames: 25
  output_queue_frames: 100
  text_flush_runes: 80
log_level: "debug"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Discord.BotToken)
	require.NotNil(t, cfg.Discord.ApplicationID)
	assert.Equal(t, []string{"111", "222"}, cfg.Discord.GuildIDs)

	assert.Equal(t, "wss://plex.internal:9000/api/chat", cfg.PersonaPlex.URL)
	assert.Equal(t, "/opt/voices", cfg.PersonaPlex.VoiceDir)
	assert.Equal(t, "NATM1.pt", cfg.PersonaPlex.DefaultVoice)
	assert.Equal(t, "Be succinct.", cfg.PersonaPlex.DefaultPrompt)
	assert.Equal(t, 30, cfg.PersonaPlex.HandshakeTimeoutSeconds)

	assert.Equal(t, 25, cfg.Bridge.InputQueueFrames)
	assert.Equal(t, 100, cfg.Bridge.OutputQueueFrames)
	assert.Equal(t, 80, cfg.Bridge.TextFlushRunes)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
discord:
  bot_token: "token"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://localhost:8998/api/chat", cfg.PersonaPlex.URL)
	assert.Equal(t, "NATF0.pt", cfg.PersonaPlex.DefaultVoice)
	assert.Equal(t, "You are a helpful assistant.", cfg.PersonaPlex.DefaultPrompt)
	assert.Equal(t, 60, cfg.PersonaPlex.HandshakeTimeoutSeconds)
	assert.Equal(t, 50, cfg.Bridge.InputQueueFrames)
	assert.Equal(t, 200, cfg.Bridge.OutputQueueFrames)
	assert.Equal(t, 50, cfg.Bridge.TextFlushRunes)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "discord: [not: valid")
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}
