package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/internal/session"
	"github.com/fieldkit/salesync/internal/syncengine"
	"github.com/fieldkit/salesync/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Sync     *config.SyncConfigHolder
	Sessions *session.Manager
	Engine   *syncengine.Engine
}

// Scheduler drives background sync and presence reporting. Every tick it
// re-reads the hot-reloadable sync config, so interval and auto-sync
// changes take effect without a restart.
type Scheduler struct {
	log      *zap.Logger
	clock    clock.Clock
	sync     *config.SyncConfigHolder
	sessions *session.Manager
	engine   *syncengine.Engine

	lastHeartbeat time.Time
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		clock:    p.Clock,
		sync:     p.Sync,
		sessions: p.Sessions,
		engine:   p.Engine,
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.sync.Get().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.RunOnce(ctx)

		if next := s.sync.Get().Interval; next != interval {
			interval = next
			ticker.Reset(interval)
			s.log.Info("sync interval changed", zap.Duration("interval", interval))
		}
	}
}

// RunOnce performs one background pass: a heartbeat when the gap has
// elapsed and a sync run when auto-sync is on. Failures are logged and
// left for the next tick; rows stay dirty until a run succeeds.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.sessions.Confirmed() {
		return
	}

	cfg := s.sync.Get()
	now := s.clock.Now()
	if now.Sub(s.lastHeartbeat) >= cfg.HeartbeatGap {
		if err := s.sessions.Heartbeat(ctx); err != nil {
			s.log.Warn("heartbeat failed", zap.Error(err))
		} else {
			s.lastHeartbeat = now
		}
	}

	if !cfg.AutoSync {
		return
	}

	summary, err := s.engine.Run(ctx)
	switch {
	case err == nil:
		if summary.SyncedCount() > 0 {
			s.log.Info("auto sync completed", zap.Int("rows", summary.SyncedCount()))
		}
	case errors.Is(err, syncengine.ErrSyncInProgress):
		// A manual run is already underway.
	case errors.Is(err, session.ErrSessionExpired):
		// Logged out between the check and the run.
	case transport.IsRetryable(err):
		s.log.Warn("auto sync postponed", zap.Error(err))
	default:
		s.log.Error("auto sync failed", zap.Error(err))
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(Start),
)

func Start(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
