package syncengine

import "go.uber.org/fx"

var Module = fx.Module("sync.engine",
	fx.Provide(New),
)
