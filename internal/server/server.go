package server

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/internal/devicestate"
	"github.com/fieldkit/salesync/internal/observability/metrics"
	referencedomain "github.com/fieldkit/salesync/internal/reference/domain"
	"github.com/fieldkit/salesync/internal/session"
	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/syncengine"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Server is the loopback HTTP surface consumed by the device UI.
type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	sessions     *session.Manager
	device       *devicestate.Service
	storeSvc     storedomain.Service
	referenceSvc referencedomain.Service
	engineSvc    *syncengine.Engine
	metrics      *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Sessions     *session.Manager
	Device       *devicestate.Service
	StoreSvc     storedomain.Service
	ReferenceSvc referencedomain.Service
	Engine       *syncengine.Engine
	Metrics      *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		sessions:     p.Sessions,
		device:       p.Device,
		storeSvc:     p.StoreSvc,
		referenceSvc: p.ReferenceSvc,
		engineSvc:    p.Engine,
		metrics:      p.Metrics,
	}

	svc.registerRoutes()

	return svc
}

func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}

	return r
}

type engineParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func registerGin(p engineParams) *gin.Engine {
	return NewEngine(p.Cfg, p.Log, p.Metrics)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.POST("/login", s.Login)
	api.POST("/logout", s.Logout)
	api.GET("/session", s.GetSession)
	api.DELETE("/data", s.WipeData)

	api.POST("/sync", s.RunSync)

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.PUT("/customers/:id/location", s.UpdateCustomerLocation)
	api.PUT("/customers/:id/visited", s.MarkCustomerVisited)

	api.POST("/bookings", s.CreateBooking)
	api.GET("/bookings", s.ListBookings)
	api.GET("/bookings/:id", s.GetBooking)
	api.PUT("/bookings/:id/lines", s.AdjustBookingLine)
	api.DELETE("/bookings/:id/lines/:itemID", s.DeleteBookingLine)

	api.POST("/receipts", s.CreateReceipt)
	api.GET("/receipts", s.ListReceipts)

	api.GET("/activity", s.RecentActivity)

	api.GET("/items", s.ListItems)
	api.GET("/cash-bank-accounts", s.ListCashBankAccounts)
	api.POST("/catalog/refresh", s.RefreshCatalog)
}

type runParams struct {
	fx.In

	Cfg config.Config
	Gin *gin.Engine
}

func run(lc fx.Lifecycle, p runParams) {
	srv := &http.Server{
		Addr:    p.Cfg.ListenAddr,
		Handler: p.Gin,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
