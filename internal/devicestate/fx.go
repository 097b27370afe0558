package devicestate

import "go.uber.org/fx"

var Module = fx.Module("devicestate",
	fx.Provide(New),
)
