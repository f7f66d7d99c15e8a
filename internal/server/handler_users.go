package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/response"
)

/* ========================================================================
 * User Handlers
 * ========================================================================
 * The generic CRUD surface plus the self-mutation guards: nobody
 * changes their own role and nobody deletes their own account, no
 * matter how privileged.
 * ======================================================================== */

type userHandler struct {
	router *Router
	repo   func(fiber.Ctx) (*repository.Repository[model.User], error)
}

func (r *Router) registerUsers(grp fiber.Router) {
	h := &userHandler{
		router: r,
		repo:   repoProvider[model.User](r, authz.EntityUsers, modeTenant),
	}
	grp.Get("/users", h.list)
	grp.Post("/users", h.create)
	grp.Get("/users/:id", h.get)
	grp.Patch("/users/:id", h.update)
	grp.Delete("/users/:id", h.remove)
}

func (h *userHandler) list(c fiber.Ctx) error {
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

func (h *userHandler) get(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	user, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, user)
}

func (h *userHandler) create(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}

	var user model.User
	if err := json.Unmarshal(c.Body(), &user); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	if err := h.router.validate.Validate(&user); err != nil {
		return err
	}
	if user.Role != "" && !user.Role.Valid() {
		return errors.Newf(errors.ErrCodeInvalidArgument, "unknown role %q", user.Role)
	}
	if err := repo.Create(c.Context(), &user); err != nil {
		return err
	}
	return response.Created(c, &user)
}

func (h *userHandler) update(c fiber.Ctx) error {
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

	caller := authz.MustGetPrincipal(c.Context())
	if err := authz.CheckUserUpdate(caller, id, updates); err != nil {
		return err
	}
	if role, ok := updates["role"].(string); ok && !model.Role(role).Valid() {
		return errors.Newf(errors.ErrCodeInvalidArgument, "unknown role %q", role)
	}

	if err := repo.UpdateByID(c.Context(), id, updates); err != nil {
		return err
	}
	user, err := repo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OkWithData(c, user)
}

func (h *userHandler) remove(c fiber.Ctx) error {
	repo, err := h.repo(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	caller := authz.MustGetPrincipal(c.Context())
	if err := authz.CheckUserDelete(caller, id); err != nil {
		return err
	}

	if err := repo.DeleteByID(c.Context(), id); err != nil {
		return err
	}
	return response.Ok(c)
}
