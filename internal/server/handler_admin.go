package server

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/response"
)

/* ========================================================================
 * Tenant Administration
 * ========================================================================
 * Company lifecycle on the operator console. Every mutation emits an
 * audit event and drops the slug from the resolver cache.
 * ======================================================================== */

var reservedCompanySlugs = map[string]bool{
	"www": true, "api": true, "admin": true, "app": true, "mail": true, "ftp": true,
}

type adminHandler struct {
	router *Router
	repo   func(fiber.Ctx) (*repository.Repository[model.Company], error)
}

func (r *Router) registerAdmin(grp fiber.Router) {
	h := &adminHandler{
		router: r,
		repo:   repoProvider[model.Company](r, authz.EntityCompanies, modeAdmin),
	}
	grp.Get("/companies", h.list)
	grp.Post("/companies", h.create)
	grp.Get("/companies/:id", h.get)
	grp.Patch("/companies/:id", h.update)
	grp.Delete("/companies/:id", h.remove)
}

func (h *adminHandler) list(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	page, pageSize := parsePage(c)
	result, err := repo.FindPage(c.Context(), page, pageSize,
		repository.WithOrderBy("created_at DESC"))
	if err != nil {
		return err
	}
	return response.OkWithData(c, result)
}

func (h *adminHandler) get(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	company, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, company)
}

func (h *adminHandler) create(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}

	var company model.Company
	if err := json.Unmarshal(c.Body(), &company); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	company.Slug = strings.ToLower(strings.TrimSpace(company.Slug))
	if err := h.router.validate.Validate(&company); err != nil {
		return err
	}
	if err := validateSlug(company.Slug); err != nil {
		return err
	}
	if err := h.checkSlugFree(c, company.Slug); err != nil {
		return err
	}

	if err := repo.Create(c.Context(), &company); err != nil {
		return err
	}
	h.audit(c, events.TypeCompanyCreated, &company)
	return response.Created(c, &company)
}

func (h *adminHandler) update(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var updates map[string]any
	if err := json.Unmarshal(c.Body(), &updates); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	if slug, ok := updates["slug"].(string); ok {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if err := validateSlug(slug); err != nil {
			return err
		}
		if err := h.checkSlugFree(c, slug, id); err != nil {
			return err
		}
		updates["slug"] = slug
	}

	// invalidate under the old slug; a rename must stop resolving
	before, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}

	if err := repo.UpdateByID(c.Context(), id, updates); err != nil {
		return err
	}
	h.router.resolver.Invalidate(c.Context(), before.Slug)

	company, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	h.audit(c, events.TypeCompanyUpdated, company)
	return response.OkWithData(c, company)
}

func (h *adminHandler) remove(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	company, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	if err := repo.DeleteByID(c.Context(), id); err != nil {
		return err
	}
	h.router.resolver.Invalidate(c.Context(), company.Slug)
	h.audit(c, events.TypeCompanyDeleted, company)
	return response.Ok(c)
}

func (h *adminHandler) audit(c fiber.Ctx, eventType string, company *model.Company) {
	caller := authz.MustGetPrincipal(c.Context())
	if err := h.router.publisher.Publish(c.Context(), events.Event{
		Type:      eventType,
		ActorID:   caller.UserID,
		CompanyID: &company.ID,
		Detail:    map[string]any{"slug": company.Slug, "name": company.Name},
	}); err != nil {
		h.router.log.Warn("audit event publish failed",
			zap.String("type", eventType), zap.Error(err))
	}
}

// checkSlugFree rejects a slug already held by any company, including
// soft-deleted ones: the unique index keeps the tombstone's slug
// reserved until the purge job reclaims it.
func (h *adminHandler) checkSlugFree(c fiber.Ctx, slug string, excludeID ...int64) error {
	query := h.router.db.WithContext(c.Context()).Unscoped().
		Model(&model.Company{}).Where("slug = ?", slug)
	if len(excludeID) > 0 {
		query = query.Where("id <> ?", excludeID[0])
	}
	var taken int64
	if err := query.Count(&taken).Error; err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "check slug availability", err)
	}
	if taken > 0 {
		return errors.Newf(errors.ErrCodeAlreadyExists, "slug %q is already in use", slug)
	}
	return nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "slug is required")
	}
	if reservedCompanySlugs[slug] {
		return errors.Newf(errors.ErrCodeInvalidArgument, "slug %q is reserved", slug)
	}
	for i, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(slug)-1:
		default:
			return errors.New(errors.ErrCodeInvalidArgument, "slug must be lowercase letters, digits, and inner hyphens")
		}
	}
	return nil
}
