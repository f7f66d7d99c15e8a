package repository

import (
	"context"
	"reflect"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

/* ========================================================================
 * Scoped Repository
 * ========================================================================
 * Generic data access confined to one company. The scoping mode is
 * fixed at construction: TenantScoped repositories refuse to exist
 * without a company id, Unrestricted ones serve the operator console.
 * Row access is the tenant filter plus the caller's policy filter;
 * rows outside either read as absent.
 * ======================================================================== */

const (
	tenantColumn = "company_id"

	// DefaultQueryTimeout bounds every repository operation.
	DefaultQueryTimeout = 5 * time.Second
)

// Repository is generic CRUD over one entity type.
type Repository[T any] struct {
	db        *gorm.DB
	entity    authz.Entity
	companyID *int64
	timeout   time.Duration

	schemaOnce sync.Once
	schema     *schema.Schema
	schemaErr  error
}

// TenantScoped builds a repository confined to companyID. A nil id is
// refused here so a missing scope can never widen into a full-table
// query later.
func TenantScoped[T any](db *gorm.DB, entity authz.Entity, companyID *int64, timeout time.Duration) (*Repository[T], error) {
	if companyID == nil {
		return nil, errors.ErrTenantScopeRequired
	}
	id := *companyID
	return &Repository[T]{db: db, entity: entity, companyID: &id, timeout: normalizeTimeout(timeout)}, nil
}

// Unrestricted builds a repository with no tenant filter. Reserved for
// platform operators and internal jobs.
func Unrestricted[T any](db *gorm.DB, entity authz.Entity, timeout time.Duration) *Repository[T] {
	return &Repository[T]{db: db, entity: entity, timeout: normalizeTimeout(timeout)}
}

func normalizeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultQueryTimeout
	}
	return d
}

// Scoped reports whether the repository carries a tenant filter.
func (r *Repository[T]) Scoped() bool {
	return r.companyID != nil
}

// Entity names the policy entity this repository serves.
func (r *Repository[T]) Entity() authz.Entity {
	return r.entity
}

func (r *Repository[T]) newModelPtr() *T {
	var model T
	return &model
}

// opCtx applies the per-operation deadline.
func (r *Repository[T]) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository[T]) withContext(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, r.db)
}

// getSchema parses and caches the gorm schema for T.
func (r *Repository[T]) getSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		r.schemaErr = stmt.Parse(r.newModelPtr())
		if r.schemaErr == nil {
			r.schema = stmt.Schema
		}
	})
	return r.schema, r.schemaErr
}

// hasTenantColumn reports whether T carries company_id. Platform-level
// tables (companies themselves) do not.
func (r *Repository[T]) hasTenantColumn() bool {
	s, err := r.getSchema()
	if err != nil {
		return false
	}
	_, ok := s.FieldsByDBName[tenantColumn]
	return ok
}

// applyScope narrows db to the repository's company.
func (r *Repository[T]) applyScope(db *gorm.DB) *gorm.DB {
	if r.companyID == nil || !r.hasTenantColumn() {
		return db
	}
	return db.Where(tenantColumn+" = ?", *r.companyID)
}

// stampTenant overwrites the model's company binding with the
// repository's. Whatever the caller put there is discarded; an
// unrestricted repository writes rows with no company at all.
func (r *Repository[T]) stampTenant(ctx context.Context, model *T) error {
	if !r.hasTenantColumn() {
		return nil
	}
	s, err := r.getSchema()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "parse model schema", err)
	}
	field := s.FieldsByDBName[tenantColumn]
	if r.companyID == nil {
		rv := field.ReflectValueOf(ctx, reflect.ValueOf(model))
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	if err := field.Set(ctx, reflect.ValueOf(model), *r.companyID); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "stamp tenant column", err)
	}
	return nil
}

// stampOwner forces the ownership column of a restricted caller's new
// rows to the caller itself, so the row stays visible to its creator.
func (r *Repository[T]) stampOwner(ctx context.Context, model *T) error {
	caller, ok := authz.GetPrincipal(ctx)
	if !ok {
		return nil
	}
	column, ownerID, ok := authz.OwnerStamp(caller, r.entity)
	if !ok {
		return nil
	}
	s, err := r.getSchema()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "parse model schema", err)
	}
	field, ok := s.FieldsByDBName[column]
	if !ok {
		return nil
	}
	if err := field.Set(ctx, reflect.ValueOf(model), ownerID); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "stamp owner column", err)
	}
	return nil
}

// accessFilter resolves the caller's policy filter for action. A nil
// scope means unrestricted access within the tenant. Repositories used
// without a principal (internal jobs) skip the policy only when they
// are already unrestricted.
func (r *Repository[T]) accessFilter(ctx context.Context, action authz.Action) (func(*gorm.DB) *gorm.DB, error) {
	caller, ok := authz.GetPrincipal(ctx)
	if !ok {
		if r.companyID == nil {
			return nil, nil
		}
		return nil, errors.ErrUnauthenticated
	}
	return authz.Filter(caller, r.entity, action)
}

func (r *Repository[T]) buildQuery(ctx context.Context, opt *QueryOption) *gorm.DB {
	db := r.applyScope(r.withContext(ctx))
	if opt == nil {
		return db
	}
	if len(opt.Select) > 0 {
		db = db.Select(opt.Select)
	}
	if opt.OrderBy != "" {
		db = db.Order(opt.OrderBy)
	}
	for _, scope := range opt.Scopes {
		db = scope(db)
	}
	for _, preload := range opt.Preloads {
		db = db.Preload(preload)
	}
	return db
}

// Transaction runs fn inside one transaction; repository calls made
// with the given context join it.
func (r *Repository[T]) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	db := r.withContext(ctx)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	}); err != nil {
		if _, ok := errors.AsBizError(err); ok {
			return err
		}
		return errors.Wrap(errors.ErrCodeInternal, "transaction failed", err)
	}
	return nil
}
