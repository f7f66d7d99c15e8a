package server

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/response"
)

/* ========================================================================
 * Error Handler
 * ========================================================================
 * Single sink for handler errors: response shaping, logging, and the
 * denial audit trail all happen here so no handler repeats them.
 * ======================================================================== */

// ErrorHandler returns the fiber error handler.
func (r *Router) ErrorHandler() fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		code := errors.Code(err)
		switch code {
		case errors.ErrCodePermissionDenied,
			errors.ErrCodeTenantScopeRequired,
			errors.ErrCodeSelfEscalation,
			errors.ErrCodeSelfDeletion:
			r.recordDenial(c, code)
		case errors.ErrCodeInternal, errors.ErrCodeUnknown:
			r.log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals("request_id")),
				zap.Error(err))
		}

		return response.Error(c, err)
	}
}

// recordDenial counts the rejection and emits the audit event.
func (r *Router) recordDenial(c fiber.Ctx, code errors.ErrorCode) {
	entity, action := routeEntityAction(c)
	metrics.AccessDenials.WithLabelValues(entity, action).Inc()

	var actorID int64
	var companyID *int64
	if caller, ok := authz.GetPrincipal(c.Context()); ok {
		actorID = caller.UserID
		companyID = caller.CompanyID
	}
	if err := r.publisher.Publish(c.Context(), events.Event{
		Type:      events.TypeAccessDenied,
		ActorID:   actorID,
		CompanyID: companyID,
		Entity:    entity,
		Action:    action,
		Detail:    map[string]any{"code": int(code), "path": c.Path()},
	}); err != nil {
		r.log.Warn("denial event publish failed", zap.Error(err))
	}
}

// routeEntityAction derives coarse entity/action labels from the route.
func routeEntityAction(c fiber.Ctx) (string, string) {
	parts := strings.Split(strings.Trim(c.Path(), "/"), "/")
	entity := "unknown"
	if len(parts) >= 2 {
		entity = parts[1]
	}

	action := "unknown"
	switch c.Method() {
	case fiber.MethodGet:
		if strings.HasSuffix(c.Route().Path, "/:id") {
			action = string(authz.ActionGet)
		} else {
			action = string(authz.ActionList)
		}
	case fiber.MethodPost:
		action = string(authz.ActionCreate)
	case fiber.MethodPatch, fiber.MethodPut:
		action = string(authz.ActionUpdate)
	case fiber.MethodDelete:
		action = string(authz.ActionDelete)
	}
	return entity, action
}
