package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
)

/* ========================================================================
 * HTTP Server
 * ========================================================================
 * Fiber v3 server with fx lifecycle. The listener is bound during
 * OnStart so a taken port fails the boot instead of a goroutine.
 * ======================================================================== */

// Config is the HTTP server configuration.
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	AppName      string        `yaml:"app_name"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// LoginRateLimit caps login attempts per client per minute.
	LoginRateLimit int64 `yaml:"login_rate_limit"`
}

// ServerParams collects the server's dependencies.
type ServerParams struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger
	DB     *gorm.DB
	Cache  *cache.Client
	Router *Router
}

// NewHTTPServer builds the fiber app, mounts all routes, and registers
// the start/stop hooks.
func NewHTTPServer(p ServerParams) *fiber.App {
	cfg := p.Config
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "sinjapan-manager"
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: p.Router.ErrorHandler(),
	})

	app.Use(recoverer.New(recoverer.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			p.Logger.Error("panic recovered",
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	registerHealthEndpoints(app, p.DB, p.Cache)
	metrics.RegisterMetricsEndpoint(app)
	p.Router.Mount(app)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
			listener, err := net.Listen("tcp4", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			p.Logger.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := app.Listener(listener, fiber.ListenConfig{
					DisableStartupMessage: true,
				}); err != nil {
					p.Logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping http server")
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func registerHealthEndpoints(app *fiber.App, db *gorm.DB, redis *cache.Client) {
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Get("/readyz", func(c fiber.Ctx) error {
		checks := make(map[string]string)
		healthy := true

		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				checks["database"] = "error: " + err.Error()
				healthy = false
			} else {
				ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
				defer cancel()
				if err := sqlDB.PingContext(ctx); err != nil {
					checks["database"] = "error: " + err.Error()
					healthy = false
				} else {
					checks["database"] = "ok"
				}
			}
		}

		if redis != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := redis.Ping(ctx); err != nil {
				checks["redis"] = "error: " + err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

		status := "ok"
		statusCode := fiber.StatusOK
		if !healthy {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	})
}
