package tenant

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
)

// SessionFallback yields the session's company binding for the request,
// or nil when there is no session or the session carries no company.
type SessionFallback func(c fiber.Ctx) *int64

// Middleware resolves the request host to a tenant scope and stores it
// on the request context. Precedence:
//
//  1. a subdomain that matches a company slug binds that company
//  2. the bare root domain binds unrestricted scope
//  3. anything else falls back to the session's company, when present
//
// In strict mode rule 3 is disabled for unknown subdomains of the root
// domain and the request fails with TenantNotFound.
func Middleware(r *Resolver, fallback SessionFallback, log *logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		company, decision, err := r.Resolve(c.Context(), c.Host())
		if err != nil {
			log.Error("tenant resolution failed", zap.String("host", c.Host()), zap.Error(err))
			return errors.Wrap(errors.ErrCodeInternal, "tenant resolution failed", err)
		}

		var scope Scope
		switch decision {
		case DecisionTenant:
			id := company.ID
			scope = Scope{CompanyID: &id, Slug: company.Slug, Source: SourceHost}
		case DecisionRoot:
			scope = Scope{Source: SourceRoot}
		case DecisionNoMatch:
			if r.Strict() {
				metrics.ScopeResolutions.WithLabelValues("rejected").Inc()
				return errors.ErrTenantNotFound
			}
			scope = sessionScope(c, fallback)
		case DecisionForeign:
			scope = sessionScope(c, fallback)
		}

		metrics.ScopeResolutions.WithLabelValues(string(scope.Source)).Inc()
		c.SetContext(WithScope(c.Context(), scope))
		return c.Next()
	}
}

func sessionScope(c fiber.Ctx, fallback SessionFallback) Scope {
	if fallback != nil {
		if id := fallback(c); id != nil {
			return Scope{CompanyID: id, Source: SourceSession}
		}
	}
	return Scope{Source: SourceNone}
}
