// Package config provides configuration infrastructure and Fx modules.
package config

import (
	"go.uber.org/fx"
)

// Module provides the configuration loaded from the supplied file path.
var Module = fx.Module("config",
	fx.Provide(LoadConfig),
)
