package database

import (
	"go.uber.org/fx"
)

// Module provides *gorm.DB.
var Module = fx.Module("database",
	fx.Provide(NewDB),
)
