// Package settings tracks per-user session preferences: the text prompt the
// AI is instructed with and the voice it speaks in.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diamondburned/arikawa/v3/discord"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/config"
)

// ErrUnknownVoice indicates a voice name without a matching prompt file.
var ErrUnknownVoice = errors.New("unknown voice")

const cacheSize = 256

// UserSettings holds one user's session preferences.
type UserSettings struct {
	Prompt string
	Voice  string
}

// Store keeps recently used per-user settings in memory. Users fall back to
// the configured defaults on cache eviction or restart.
type Store struct {
	logger   *zap.Logger
	cache    *lru.Cache[discord.UserID, UserSettings]
	voiceDir string
	defaults UserSettings
}

// NewStore creates a settings store from the application configuration.
func NewStore(logger *zap.Logger, cfg *config.Config) (*Store, error) {
	cache, err := lru.New[discord.UserID, UserSettings](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create settings cache: %w", err)
	}
	return &Store{
		logger:   logger.Named("settings"),
		cache:    cache,
		voiceDir: cfg.PersonaPlex.VoiceDir,
		defaults: UserSettings{
			Prompt: cfg.PersonaPlex.DefaultPrompt,
			Voice:  cfg.PersonaPlex.DefaultVoice,
		},
	}, nil
}

// Get returns the user's settings, falling back to defaults for unset fields.
func (s *Store) Get(userID discord.UserID) UserSettings {
	settings, ok := s.cache.Get(userID)
	if !ok {
		return s.defaults
	}
	if settings.Prompt == "" {
		settings.Prompt = s.defaults.Prompt
	}
	if settings.Voice == "" {
		settings.Voice = s.defaults.Voice
	}
	return settings
}

// SetPrompt stores the user's text prompt.
func (s *Store) SetPrompt(userID discord.UserID, prompt string) {
	settings := s.Get(userID)
	settings.Prompt = prompt
	s.cache.Add(userID, settings)
	s.logger.Debug("Updated user prompt", zap.String("user_id", userID.String()))
}

// SetVoice stores the user's voice after checking that a prompt file for it
// exists. The ".pt" suffix is optional in the given name.
func (s *Store) SetVoice(userID discord.UserID, voice string) error {
	name := voice
	if !strings.HasSuffix(name, ".pt") {
		name += ".pt"
	}
	if _, err := os.Stat(filepath.Join(s.voiceDir, name)); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, voice)
	}

	settings := s.Get(userID)
	settings.Voice = name
	s.cache.Add(userID, settings)
	s.logger.Debug("Updated user voice",
		zap.String("user_id", userID.String()),
		zap.String("voice", name))
	return nil
}

// voiceGroups maps voice file prefixes to display labels.
var voiceGroups = []struct {
	prefix string
	label  string
}{
	{"NATF", "Natural Female"},
	{"NATM", "Natural Male"},
	{"VARF", "Variant Female"},
	{"VARM", "Variant Male"},
}

// ListVoices scans the voice directory and returns available voices grouped
// by category, each group sorted by name.
func (s *Store) ListVoices() (map[string][]string, error) {
	entries, err := os.ReadDir(s.voiceDir)
	if err != nil {
		return nil, fmt.Errorf("read voice directory: %w", err)
	}

	groups := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pt") {
			continue
		}
		label := "Other"
		for _, g := range voiceGroups {
			if strings.HasPrefix(name, g.prefix) {
				label = g.label
				break
			}
		}
		groups[label] = append(groups[label], strings.TrimSuffix(name, ".pt"))
	}

	for _, voices := range groups {
		sort.Strings(voices)
	}
	return groups, nil
}
