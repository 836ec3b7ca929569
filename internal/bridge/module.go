package bridge

import (
	"go.uber.org/fx"
)

// Module provides the audio bridge.
var Module = fx.Module("bridge",
	fx.Provide(NewBridge),
)
