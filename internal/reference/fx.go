package reference

import (
	"github.com/fieldkit/salesync/internal/reference/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reference.service",
	fx.Provide(service.New),
)
