package model

import (
	"time"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/database"
)

/* ========================================================================
 * Scoped business entities
 * ========================================================================
 * Every table here embeds TenantModel and therefore carries the
 * optional company_id column the repository layer filters on. Owner
 * columns (assigned_to, created_by, agency_id) feed the access policy
 * table in internal/authz.
 * ======================================================================== */

type Customer struct {
	TenantModel
	Name       string `json:"name" gorm:"column:name;size:255" validate:"required"`
	Email      string `json:"email" gorm:"column:email;size:255" validate:"omitempty,email"`
	Phone      string `json:"phone" gorm:"column:phone;size:32"`
	Address    string `json:"address" gorm:"column:address;size:512"`
	Status     string `json:"status" gorm:"column:status;size:32;default:active"`
	AssignedTo int64  `json:"assigned_to,string" gorm:"column:assigned_to;index"`
}

func (Customer) TableName() string { return "customers" }

type Task struct {
	TenantModel
	Title      string     `json:"title" gorm:"column:title;size:255" validate:"required"`
	Body       string     `json:"body" gorm:"column:body;type:text"`
	Status     string     `json:"status" gorm:"column:status;size:32;default:open"`
	Priority   int        `json:"priority" gorm:"column:priority;default:0"`
	DueAt      *time.Time `json:"due_at,omitempty" gorm:"column:due_at"`
	AssignedTo int64      `json:"assigned_to,string" gorm:"column:assigned_to;index"`
	CreatedBy  int64      `json:"created_by,string" gorm:"column:created_by;index"`
}

func (Task) TableName() string { return "tasks" }

type Business struct {
	TenantModel
	Name      string         `json:"name" gorm:"column:name;size:255" validate:"required"`
	Category  string         `json:"category" gorm:"column:category;size:64"`
	Website   string         `json:"website" gorm:"column:website;size:512"`
	Meta      database.JSONB `json:"meta" gorm:"column:meta;type:jsonb"`
	CreatedBy int64          `json:"created_by,string" gorm:"column:created_by;index"`
}

func (Business) TableName() string { return "businesses" }

type AgencySale struct {
	TenantModel
	Title    string    `json:"title" gorm:"column:title;size:255" validate:"required"`
	Amount   int64     `json:"amount" gorm:"column:amount"` // smallest currency unit
	Currency string    `json:"currency" gorm:"column:currency;size:8;default:JPY"`
	SoldAt   time.Time `json:"sold_at" gorm:"column:sold_at"`
	AgencyID int64     `json:"agency_id,string" gorm:"column:agency_id;index"`
}

func (AgencySale) TableName() string { return "agency_sales" }

type SeoArticle struct {
	TenantModel
	Title       string     `json:"title" gorm:"column:title;size:255" validate:"required"`
	Slug        string     `json:"slug" gorm:"column:slug;size:255;index"`
	Body        string     `json:"body" gorm:"column:body;type:text"`
	CategoryID  *int64     `json:"category_id,string,omitempty" gorm:"column:category_id;index"`
	PublishedAt *time.Time `json:"published_at,omitempty" gorm:"column:published_at"`
	CreatedBy   int64      `json:"created_by,string" gorm:"column:created_by;index"`
}

func (SeoArticle) TableName() string { return "seo_articles" }

type SeoCategory struct {
	TenantModel
	Name      string `json:"name" gorm:"column:name;size:128" validate:"required"`
	Slug      string `json:"slug" gorm:"column:slug;size:128;index"`
	CreatedBy int64  `json:"created_by,string" gorm:"column:created_by;index"`
}

func (SeoCategory) TableName() string { return "seo_categories" }

type Lead struct {
	TenantModel
	Name       string `json:"name" gorm:"column:name;size:255" validate:"required"`
	Email      string `json:"email" gorm:"column:email;size:255" validate:"omitempty,email"`
	Source     string `json:"source" gorm:"column:source;size:64"`
	Status     string `json:"status" gorm:"column:status;size:32;default:new"`
	AssignedTo int64  `json:"assigned_to,string" gorm:"column:assigned_to;index"`
}

func (Lead) TableName() string { return "leads" }

type Employee struct {
	TenantModel
	Name      string     `json:"name" gorm:"column:name;size:255" validate:"required"`
	Email     string     `json:"email" gorm:"column:email;size:255" validate:"omitempty,email"`
	Position  string     `json:"position" gorm:"column:position;size:128"`
	HiredAt   *time.Time `json:"hired_at,omitempty" gorm:"column:hired_at"`
	CreatedBy int64      `json:"created_by,string" gorm:"column:created_by;index"`
}

func (Employee) TableName() string { return "employees" }

type Memo struct {
	TenantModel
	Title     string `json:"title" gorm:"column:title;size:255"`
	Body      string `json:"body" gorm:"column:body;type:text"`
	CreatedBy int64  `json:"created_by,string" gorm:"column:created_by;index"`
}

func (Memo) TableName() string { return "memos" }

type Investment struct {
	TenantModel
	Name      string    `json:"name" gorm:"column:name;size:255" validate:"required"`
	Amount    int64     `json:"amount" gorm:"column:amount"`
	Currency  string    `json:"currency" gorm:"column:currency;size:8;default:JPY"`
	MadeAt    time.Time `json:"made_at" gorm:"column:made_at"`
	CreatedBy int64     `json:"created_by,string" gorm:"column:created_by;index"`
}

func (Investment) TableName() string { return "investments" }

type QuickNote struct {
	TenantModel
	Body      string `json:"body" gorm:"column:body;type:text" validate:"required"`
	Pinned    bool   `json:"pinned" gorm:"column:pinned;default:false"`
	CreatedBy int64  `json:"created_by,string" gorm:"column:created_by;index"`
}

func (QuickNote) TableName() string { return "quick_notes" }

type ClientProject struct {
	TenantModel
	Name      string     `json:"name" gorm:"column:name;size:255" validate:"required"`
	Status    string     `json:"status" gorm:"column:status;size:32;default:active"`
	StartedAt *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	DueAt     *time.Time `json:"due_at,omitempty" gorm:"column:due_at"`
	CreatedBy int64      `json:"created_by,string" gorm:"column:created_by;index"`
}

func (ClientProject) TableName() string { return "client_projects" }

type ClientInvoice struct {
	TenantModel
	ProjectID *int64     `json:"project_id,string,omitempty" gorm:"column:project_id;index"`
	Number    string     `json:"number" gorm:"column:number;size:64;index"`
	Amount    int64      `json:"amount" gorm:"column:amount"`
	Currency  string     `json:"currency" gorm:"column:currency;size:8;default:JPY"`
	IssuedAt  time.Time  `json:"issued_at" gorm:"column:issued_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedBy int64      `json:"created_by,string" gorm:"column:created_by;index"`
}

func (ClientInvoice) TableName() string { return "client_invoices" }

type AiLog struct {
	TenantModel
	Kind      string         `json:"kind" gorm:"column:kind;size:32"` // text, image, video
	Prompt    string         `json:"prompt" gorm:"column:prompt;type:text"`
	Result    database.JSONB `json:"result" gorm:"column:result;type:jsonb"`
	TokensIn  int            `json:"tokens_in" gorm:"column:tokens_in"`
	TokensOut int            `json:"tokens_out" gorm:"column:tokens_out"`
	CreatedBy int64          `json:"created_by,string" gorm:"column:created_by;index"`
}

func (AiLog) TableName() string { return "ai_logs" }

type AiConversation struct {
	TenantModel
	Title     string         `json:"title" gorm:"column:title;size:255"`
	Messages  database.JSONB `json:"messages" gorm:"column:messages;type:jsonb"`
	CreatedBy int64          `json:"created_by,string" gorm:"column:created_by;index"`
}

func (AiConversation) TableName() string { return "ai_conversations" }

// ScopedModels is the single registry of tenant-scoped tables. The
// migrator and the purge job both read it; adding an entity here is
// the only bookkeeping a new table needs.
func ScopedModels() []any {
	return []any{
		&User{},
		&Customer{},
		&Task{},
		&Business{},
		&AgencySale{},
		&SeoArticle{},
		&SeoCategory{},
		&Lead{},
		&Employee{},
		&Memo{},
		&Investment{},
		&QuickNote{},
		&ClientProject{},
		&ClientInvoice{},
		&AiLog{},
		&AiConversation{},
	}
}

// AllModels is ScopedModels plus the tenant table itself.
func AllModels() []any {
	return append([]any{&Company{}}, ScopedModels()...)
}
