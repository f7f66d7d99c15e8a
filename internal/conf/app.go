package conf

import (
	"time"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/database"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/server"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/session"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/tenant"
)

// AppConfig aggregates every component config. One YAML file, one
// struct, sub-sections owned by the packages that consume them.
type AppConfig struct {
	Log      logger.Config   `yaml:"log" mapstructure:"log"`
	Server   server.Config   `yaml:"server" mapstructure:"server"`
	Database database.Config `yaml:"database" mapstructure:"database"`
	Redis    cache.Config    `yaml:"redis" mapstructure:"redis"`
	Tenant   tenant.Config   `yaml:"tenant" mapstructure:"tenant"`
	Session  session.Config  `yaml:"session" mapstructure:"session"`
	Events   events.Config   `yaml:"events" mapstructure:"events"`

	// QueryTimeout bounds every repository operation.
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`

	// PurgeInterval controls how often tombstoned tenants are reclaimed.
	PurgeInterval  time.Duration `yaml:"purge_interval" mapstructure:"purge_interval"`
	PurgeRetention time.Duration `yaml:"purge_retention" mapstructure:"purge_retention"`
}

// LoadApp reads the application config from path (directory containing
// config.yaml) and applies defaults.
func LoadApp(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := NewLoader(path, "config", "yaml").Load(&cfg); err != nil {
		return nil, err
	}

	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = time.Hour
	}
	if cfg.PurgeRetention <= 0 {
		cfg.PurgeRetention = 30 * 24 * time.Hour
	}
	return &cfg, nil
}
