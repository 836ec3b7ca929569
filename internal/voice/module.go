package voice

import (
	"go.uber.org/fx"
)

// Module provides the voice service.
var Module = fx.Module("voice",
	fx.Provide(NewService),
)
