package tenant

import "go.uber.org/fx"

var Module = fx.Module("tenant.manager",
	fx.Provide(New),
)
