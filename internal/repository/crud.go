package repository

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
)

/* ========================================================================
 * CRUD Operations
 * ========================================================================
 * Every operation composes three filters in order: the per-operation
 * deadline, the repository's tenant scope, and the caller's policy
 * filter. A row outside any of them reads as not found.
 * ======================================================================== */

const maxPageSize = 1000

func (r *Repository[T]) observe(op string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(op, string(r.entity)).Observe(time.Since(start).Seconds())
}

// Create inserts model. The tenant column is stamped from the
// repository scope and the ownership column from the caller; whatever
// the caller supplied in either is ignored.
func (r *Repository[T]) Create(ctx context.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}
	defer r.observe("create", time.Now())

	if _, err := r.accessFilter(ctx, authz.ActionCreate); err != nil {
		return err
	}
	if err := r.stampTenant(ctx, model); err != nil {
		return err
	}
	if err := r.stampOwner(ctx, model); err != nil {
		return err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	if err := r.withContext(ctx).Create(model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrap(errors.ErrCodeAlreadyExists, "record already exists", err)
		}
		return errors.Wrap(errors.ErrCodeInternal, "create record", err)
	}
	return nil
}

// FindByID loads one row. Rows in another tenant, or hidden by the
// caller's policy filter, come back as NotFound.
func (r *Repository[T]) FindByID(ctx context.Context, id int64, opts ...Option) (*T, error) {
	defer r.observe("find", time.Now())

	filter, err := r.accessFilter(ctx, authz.ActionGet)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	model := r.newModelPtr()
	query := r.buildQuery(ctx, ApplyOptions(opts))
	if filter != nil {
		query = filter(query)
	}
	if err := query.First(model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "find record", err)
	}
	return model, nil
}

// FindPage lists one page under the caller's visibility.
func (r *Repository[T]) FindPage(ctx context.Context, page, pageSize int, opts ...Option) (*PageResult[T], error) {
	defer r.observe("list", time.Now())

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter, err := r.accessFilter(ctx, authz.ActionList)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := r.buildQuery(ctx, ApplyOptions(opts))
	if filter != nil {
		query = filter(query)
	}

	var total int64
	if err := query.Model(r.newModelPtr()).Count(&total).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "count records", err)
	}

	var list []T
	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "find records", err)
	}

	return &PageResult[T]{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    int64(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// UpdateByID applies updates to one row. The map is filtered against
// the model schema; primary key and tenant column writes are dropped
// regardless of any whitelist. A zero-row update is NotFound, which
// covers rows in other tenants and rows outside the caller's filter.
func (r *Repository[T]) UpdateByID(ctx context.Context, id int64, updates map[string]any, allowedFields ...string) error {
	if len(updates) == 0 {
		return errors.ErrInvalidArgument
	}
	defer r.observe("update", time.Now())

	filter, err := r.accessFilter(ctx, authz.ActionUpdate)
	if err != nil {
		return err
	}

	filtered, err := r.filterUpdates(updates, allowedFields)
	if err != nil {
		return err
	}
	if len(filtered) == 0 {
		return errors.ErrInvalidArgument
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := r.applyScope(r.withContext(ctx)).Model(r.newModelPtr()).Where("id = ?", id)
	if filter != nil {
		query = filter(query)
	}
	result := query.Updates(filtered)
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "update record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// DeleteByID soft-deletes one row; the tombstone stays until the purge
// job claims it.
func (r *Repository[T]) DeleteByID(ctx context.Context, id int64) error {
	defer r.observe("delete", time.Now())

	filter, err := r.accessFilter(ctx, authz.ActionDelete)
	if err != nil {
		return err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := r.applyScope(r.withContext(ctx)).Where("id = ?", id)
	if filter != nil {
		query = filter(query)
	}
	result := query.Delete(r.newModelPtr())
	if result.Error != nil {
		return errors.Wrap(errors.ErrCodeInternal, "delete record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// Count counts rows visible to the caller.
func (r *Repository[T]) Count(ctx context.Context, opts ...Option) (int64, error) {
	defer r.observe("count", time.Now())

	filter, err := r.accessFilter(ctx, authz.ActionList)
	if err != nil {
		return 0, err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	query := r.buildQuery(ctx, ApplyOptions(opts)).Model(r.newModelPtr())
	if filter != nil {
		query = filter(query)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, "count records", err)
	}
	return total, nil
}

// filterUpdates drops anything that is not an updatable column of T.
// Column names and struct field names are both accepted. The tenant
// column is never updatable through this path.
func (r *Repository[T]) filterUpdates(updates map[string]any, allowedFields []string) (map[string]any, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "parse model schema", err)
	}

	allowedSet := make(map[string]struct{}, len(allowedFields))
	for _, f := range allowedFields {
		allowedSet[f] = struct{}{}
	}
	hasWhitelist := len(allowedSet) > 0

	filtered := make(map[string]any)
	for k, v := range updates {
		if hasWhitelist {
			if _, ok := allowedSet[k]; !ok {
				continue
			}
		}
		if field, ok := s.FieldsByDBName[k]; ok {
			if updatable(field.DBName) && !field.PrimaryKey && field.Updatable {
				filtered[k] = v
			}
			continue
		}
		if field, ok := s.FieldsByName[k]; ok {
			if updatable(field.DBName) && !field.PrimaryKey && field.Updatable {
				filtered[field.DBName] = v
			}
		}
	}
	return filtered, nil
}

func updatable(dbName string) bool {
	switch dbName {
	case tenantColumn, "created_at", "deleted_at":
		return false
	}
	return true
}
