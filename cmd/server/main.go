package main

import (
	"context"
	"flag"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/conf"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/database"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/server"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/session"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/tenant"
)

func main() {
	configPath := flag.String("config", "./configs", "directory containing config.yaml")
	flag.Parse()

	cfg, err := conf.LoadApp(*configPath)
	if err != nil {
		panic(err)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(c *conf.AppConfig) logger.Config { return c.Log },
			func(c *conf.AppConfig) server.Config { return c.Server },
			func(c *conf.AppConfig) database.Config { return c.Database },
			func(c *conf.AppConfig) cache.Config { return c.Redis },
			func(c *conf.AppConfig) tenant.Config { return c.Tenant },
			func(c *conf.AppConfig) session.Config { return c.Session },
			func(c *conf.AppConfig) events.Config { return c.Events },
		),
		fx.Provide(logger.NewLogger),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Logger}
		}),

		database.Module,
		cache.Module,

		fx.Provide(newStores),
		fx.Provide(newResolver),
		fx.Provide(session.NewStore),
		fx.Provide(newPublisher),
		fx.Provide(newRouter),
		fx.Provide(server.NewHTTPServer),

		fx.Invoke(migrate),
		fx.Invoke(startPurger),
		fx.Invoke(func(*fiber.App) {}),
	)

	app.Run()
}

type stores struct {
	fx.Out
	Companies *repository.CompanyStore
	Users     *repository.UserStore
}

func newStores(cfg *conf.AppConfig, db *gorm.DB) stores {
	return stores{
		Companies: repository.NewCompanyStore(db, cfg.QueryTimeout),
		Users:     repository.NewUserStore(db, cfg.QueryTimeout),
	}
}

func newResolver(cfg tenant.Config, companies *repository.CompanyStore, c *cache.Client, log *logger.Logger) *tenant.Resolver {
	return tenant.NewResolver(cfg, companies, c, log)
}

func newPublisher(lc fx.Lifecycle, cfg events.Config, log *logger.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.NewNoop(), nil
	}
	publisher, err := events.NewKafkaPublisher(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return publisher.Close() },
	})
	return publisher, nil
}

func newRouter(
	cfg *conf.AppConfig,
	db *gorm.DB,
	log *logger.Logger,
	resolver *tenant.Resolver,
	sessions *session.Store,
	users *repository.UserStore,
	companies *repository.CompanyStore,
	c *cache.Client,
	publisher events.Publisher,
) *server.Router {
	return server.NewRouter(server.RouterDeps{
		DB:           db,
		Logger:       log,
		Config:       cfg.Server,
		Resolver:     resolver,
		Sessions:     sessions,
		Users:        users,
		Companies:    companies,
		Cache:        c,
		Verifier:     server.NewBcryptVerifier(),
		Publisher:    publisher,
		QueryTimeout: cfg.QueryTimeout,
	})
}

func migrate(db *gorm.DB, log *logger.Logger) error {
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

func startPurger(lc fx.Lifecycle, cfg *conf.AppConfig, db *gorm.DB, c *cache.Client, log *logger.Logger) {
	purger := repository.NewPurger(db, c, log, cfg.PurgeInterval, cfg.PurgeRetention)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			purger.Start()
			log.Info("purge job started", zap.Duration("interval", cfg.PurgeInterval))
			return nil
		},
		OnStop: func(context.Context) error {
			purger.Stop()
			return nil
		},
	})
}
