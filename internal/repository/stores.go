package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

/* ========================================================================
 * Platform Stores
 * ========================================================================
 * Lookups that run before any principal or tenant scope exists: slug
 * resolution and login. Deliberately narrow so the generic repository
 * stays the only general-purpose data path.
 * ======================================================================== */

// CompanyStore resolves companies by slug and id.
type CompanyStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewCompanyStore builds a company store.
func NewCompanyStore(db *gorm.DB, timeout time.Duration) *CompanyStore {
	return &CompanyStore{db: db, timeout: normalizeTimeout(timeout)}
}

// FindBySlug returns the company for a subdomain slug. Soft-deleted
// companies do not resolve.
func (s *CompanyStore) FindBySlug(ctx context.Context, slug string) (*model.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var company model.Company
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&company).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "find company by slug", err)
	}
	return &company, nil
}

// FindByID returns one company.
func (s *CompanyStore) FindByID(ctx context.Context, id int64) (*model.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var company model.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "find company", err)
	}
	return &company, nil
}

// UserStore serves authentication lookups.
type UserStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewUserStore builds a user store.
func NewUserStore(db *gorm.DB, timeout time.Duration) *UserStore {
	return &UserStore{db: db, timeout: normalizeTimeout(timeout)}
}

// FindByEmail loads a user for credential verification. Runs before
// any scope is bound, so it searches across tenants; the login handler
// checks company membership against the request's tenant.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "find user by email", err)
	}
	return &user, nil
}

// FindByID loads one user without tenant or policy filtering. Used to
// rebuild the principal from a session.
func (s *UserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user model.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "find user", err)
	}
	return &user, nil
}
