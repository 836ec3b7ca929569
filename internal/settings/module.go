package settings

import (
	"go.uber.org/fx"
)

// Module provides the per-user settings store.
var Module = fx.Module("settings",
	fx.Provide(NewStore),
)
