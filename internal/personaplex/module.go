package personaplex

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discordplex/discordplex/internal/config"
)

// Module provides the PersonaPlex dialer.
var Module = fx.Module("personaplex",
	fx.Provide(func(logger *zap.Logger, cfg *config.Config) *Dialer {
		return NewDialer(logger, cfg)
	}),
)
