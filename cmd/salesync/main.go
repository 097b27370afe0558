package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/internal/devicestate"
	"github.com/fieldkit/salesync/internal/logger"
	"github.com/fieldkit/salesync/internal/observability/metrics"
	"github.com/fieldkit/salesync/internal/reference"
	"github.com/fieldkit/salesync/internal/scheduler"
	"github.com/fieldkit/salesync/internal/server"
	"github.com/fieldkit/salesync/internal/session"
	"github.com/fieldkit/salesync/internal/store"
	"github.com/fieldkit/salesync/internal/syncengine"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		metrics.Module,

		// Functional domains
		tenant.Module,
		devicestate.Module,
		store.Module,
		transport.Module,
		session.Module,
		syncengine.Module,
		reference.Module,
		scheduler.Module,
		server.Module,

		fx.Invoke(resumeSession),
	)
	app.Run()
}

// resumeSession reopens a previously confirmed session before the HTTP
// surface starts serving.
func resumeSession(lc fx.Lifecycle, sessions *session.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sessions.Resume(ctx)
		},
	})
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
