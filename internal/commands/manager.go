package commands

import (
	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CommandManagerParams holds dependencies for NewCommandManager.
type CommandManagerParams struct {
	fx.In
	Session       *session.Session `optional:"true"`
	ApplicationID discord.AppID
	Logger        *zap.Logger `optional:"true"`
	Commands      []Command   `group:"commands"`
}

// CommandManager registers slash commands with Discord and dispatches
// incoming interactions to them by name.
type CommandManager struct {
	session       *session.Session
	applicationID discord.AppID
	logger        *zap.Logger
	commands      map[string]Command
}

// NewCommandManager creates a CommandManager from the provided command group.
// Duplicate names keep the first registration.
func NewCommandManager(params CommandManagerParams) *CommandManager {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CommandManager{
		session:       params.Session,
		applicationID: params.ApplicationID,
		logger:        logger,
		commands:      make(map[string]Command),
	}

	for _, cmd := range params.Commands {
		if cmd == nil {
			continue
		}
		if _, exists := cm.commands[cmd.Name()]; exists {
			logger.Warn("Duplicate command name, keeping first", zap.String("commandName", cmd.Name()))
			continue
		}
		cm.commands[cmd.Name()] = cmd
	}

	return cm
}

// GetCommand retrieves a registered command by its name.
func (cm *CommandManager) GetCommand(name string) (Command, bool) {
	cmd, ok := cm.commands[name]
	return cmd, ok
}

// RegisterCommands registers all loaded commands with Discord for the
// specified guilds.
func (cm *CommandManager) RegisterCommands(guildIDs []discord.GuildID) {
	var cmds []api.CreateCommandData
	for _, cmd := range cm.commands {
		cmds = append(cmds, api.CreateCommandData{
			Name:        cmd.Name(),
			Description: cmd.Description(),
			Options:     cmd.Options(),
		})
	}

	if len(cmds) == 0 {
		cm.logger.Info("No commands to register.")
		return
	}

	for _, guildID := range guildIDs {
		registered, err := cm.session.BulkOverwriteGuildCommands(cm.applicationID, guildID, cmds)
		if err != nil {
			cm.logger.Error("Failed to bulk overwrite commands for guild",
				zap.Error(err),
				zap.Stringer("applicationID", cm.applicationID),
				zap.Stringer("guildID", guildID),
			)
			continue
		}
		cm.logger.Info("Successfully registered slash commands for guild",
			zap.Int("count", len(registered)),
			zap.Stringer("guildID", guildID),
		)
	}
}

// UnregisterAllCommands unregisters all commands for the specified guilds.
func (cm *CommandManager) UnregisterAllCommands(guildIDs []discord.GuildID) {
	for _, guildID := range guildIDs {
		_, err := cm.session.BulkOverwriteGuildCommands(cm.applicationID, guildID, []api.CreateCommandData{})
		if err != nil {
			cm.logger.Error("Failed to unregister commands for guild",
				zap.Error(err),
				zap.Stringer("guildID", guildID),
			)
			continue
		}
		cm.logger.Info("Unregistered slash commands for guild", zap.Stringer("guildID", guildID))
	}
}
