package model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/soft_delete"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/idgen"
)

/* ========================================================================
 * Base Model
 * ========================================================================
 * Common columns embedded by every table: snowflake primary key,
 * timestamps, soft-delete flag. Deletion everywhere in this codebase is
 * a tombstone; rows are reclaimed by the purge job, never by handler
 * code walking dependent tables.
 * ======================================================================== */

// BaseModel is embedded by every persisted type.
type BaseModel struct {
	ID        int64                 `json:"id,string" gorm:"primaryKey"`
	CreatedAt time.Time             `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	// DeletedAt holds the unix-milli deletion time, 0 for live rows.
	// Milli mode keeps the timestamp the purge job needs for retention.
	DeletedAt soft_delete.DeletedAt `json:"-" gorm:"column:deleted_at;default:0;softDelete:milli"`
}

// BeforeCreate assigns a snowflake id when none is set.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ID = idgen.Generate()
	}
	return nil
}

// TenantModel is embedded by every tenant-scoped table. CompanyID is
// nullable: a null company id means a global/unscoped row. Once set it
// is never reassigned; the repository layer strips company_id from
// every update payload.
type TenantModel struct {
	BaseModel
	CompanyID *int64 `json:"company_id,string,omitempty" gorm:"column:company_id;index"`
}
