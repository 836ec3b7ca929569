// Package main provides the entry point for the DiscordPlex voice bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/discordplex/discordplex/internal/app"
	"github.com/discordplex/discordplex/internal/bot"
	"github.com/discordplex/discordplex/internal/bridge"
	"github.com/discordplex/discordplex/internal/commands"
	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/discord"
	"github.com/discordplex/discordplex/internal/infrastructure"
	"github.com/discordplex/discordplex/internal/personaplex"
	"github.com/discordplex/discordplex/internal/settings"
	"github.com/discordplex/discordplex/internal/voice"
	pkginfra "github.com/discordplex/discordplex/pkg/infrastructure"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// External service modules
		discord.Module,
		personaplex.Module,

		// Application modules
		settings.Module,
		bridge.Module,
		voice.Module,
		commands.Module,
		bot.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
