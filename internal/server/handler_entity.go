package server

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/response"
)

/* ========================================================================
 * Entity Handlers
 * ========================================================================
 * One generic CRUD surface per registered entity. The repository
 * provider fixed at registration decides the scoping; handlers only
 * parse, validate, and delegate.
 * ======================================================================== */

type entityHandler[T any] struct {
	router *Router
	repo   func(fiber.Ctx) (*repository.Repository[T], error)
}

// registerEntity mounts CRUD routes for T under /<path>.
func registerEntity[T any](r *Router, grp fiber.Router, entity authz.Entity, path string) {
	h := &entityHandler[T]{
		router: r,
		repo:   repoProvider[T](r, entity, modeTenant),
	}
	grp.Get("/"+path, h.list)
	grp.Post("/"+path, h.create)
	grp.Get("/"+path+"/:id", h.get)
	grp.Patch("/"+path+"/:id", h.update)
	grp.Delete("/"+path+"/:id", h.remove)
}

func parseID(c fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidArgument, "invalid id")
	}
	return id, nil
}

func parsePage(c fiber.Ctx) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	pageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	return page, pageSize
}

func (h *entityHandler[T]) list(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	page, pageSize := parsePage(c)

	var opts []repository.Option
	if order := c.Query("order_by"); order == "" {
		opts = append(opts, repository.WithOrderBy("created_at DESC"))
	} else {
		opts = append(opts, repository.WithOrderBy(sanitizeOrder(order)))
	}

	result, err := repo.FindPage(c.Context(), page, pageSize, opts...)
	if err != nil {
		return err
	}
	return response.OkWithData(c, result)
}

func (h *entityHandler[T]) get(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	record, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, record)
}

func (h *entityHandler[T]) create(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}

	var record T
	if err := json.Unmarshal(c.Body(), &record); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	if err := h.router.validate.Validate(&record); err != nil {
		return err
	}
	if err := repo.Create(c.Context(), &record); err != nil {
		return err
	}
	return response.Created(c, &record)
}

func (h *entityHandler[T]) update(c fiber.Ctx) error {
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
	if err := repo.UpdateByID(c.Context(), id, updates); err != nil {
		return err
	}
	record, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, record)
}

func (h *entityHandler[T]) remove(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := repo.DeleteByID(c.Context(), id); err != nil {
		return err
	}
	return response.Ok(c)
}

// sanitizeOrder allows only a plain "column" or "column desc" order.
func sanitizeOrder(order string) string {
	for _, r := range order {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ' ':
		default:
			return "created_at DESC"
		}
	}
	return order
}
