package store

import (
	"github.com/fieldkit/salesync/internal/store/repository"
	"github.com/fieldkit/salesync/internal/store/service"
	"go.uber.org/fx"
)

var Module = fx.Module("store.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
