package config

import (
	"fmt"
	"os"

	"github.com/diamondburned/arikawa/v3/discord"
	"gopkg.in/yaml.v3"
)

// DiscordConfig stores Discord specific configurations.
type DiscordConfig struct {
	BotToken      string             `yaml:"bot_token"`
	ApplicationID *discord.Snowflake `yaml:"application_id"`
	GuildIDs      []string           `yaml:"guild_ids"`
}

// PersonaPlexConfig stores PersonaPlex backend configurations.
type PersonaPlexConfig struct {
	// URL is the websocket endpoint of the PersonaPlex server. The server
	// runs locally with a self-signed certificate.
	URL string `yaml:"url"`

	// VoiceDir is the directory holding voice prompt files (*.pt).
	VoiceDir string `yaml:"voice_dir"`

	DefaultVoice  string `yaml:"default_voice"`
	DefaultPrompt string `yaml:"default_prompt"`

	// HandshakeTimeoutSeconds bounds the wait for the server's handshake
	// frame after connecting.
	HandshakeTimeoutSeconds int `yaml:"handshake_timeout_seconds"`
}

// BridgeConfig stores audio bridge tuning values.
type BridgeConfig struct {
	// InputQueueFrames bounds each participant's capture queue
	// (50 frames of 20 ms is one second of audio).
	InputQueueFrames int `yaml:"input_queue_frames"`

	// OutputQueueFrames bounds the playback queue; the larger bound
	// absorbs jitter in backend response timing.
	OutputQueueFrames int `yaml:"output_queue_frames"`

	// TextFlushRunes is the buffered-text length at which AI text is
	// flushed to the channel.
	TextFlushRunes int `yaml:"text_flush_runes"`
}

// Config stores the application configuration.
type Config struct {
	Discord     DiscordConfig     `yaml:"discord"`
	PersonaPlex PersonaPlexConfig `yaml:"personaplex"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	LogLevel    string            `yaml:"log_level"`
}

const (
	defaultURL           = "wss://localhost:8998/api/chat"
	defaultVoice         = "NATF0.pt"
	defaultPrompt        = "You are a helpful assistant."
	defaultHandshakeSecs = 60
	defaultInputFrames   = 50  // ~1 s
	defaultOutputFrames  = 200 // ~4 s
	defaultTextFlush     = 50
)

// LoadConfig loads the configuration from the given file path and applies
// defaults for unset values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PersonaPlex.URL == "" {
		c.PersonaPlex.URL = defaultURL
	}
	if c.PersonaPlex.DefaultVoice == "" {
		c.PersonaPlex.DefaultVoice = defaultVoice
	}
	if c.PersonaPlex.DefaultPrompt == "" {
		c.PersonaPlex.DefaultPrompt = defaultPrompt
	}
	if c.PersonaPlex.HandshakeTimeoutSeconds <= 0 {
		c.PersonaPlex.HandshakeTimeoutSeconds = defaultHandshakeSecs
	}
	if c.Bridge.InputQueueFrames <= 0 {
		c.Bridge.InputQueueFrames = defaultInputFrames
	}
	if c.Bridge.OutputQueueFrames <= 0 {
		c.Bridge.OutputQueueFrames = defaultOutputFrames
	}
	if c.Bridge.TextFlushRunes <= 0 {
		c.Bridge.TextFlushRunes = defaultTextFlush
	}
}
