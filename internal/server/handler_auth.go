package server

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/response"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/session"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/tenant"
)

/* ========================================================================
 * Authentication Handlers
 * ======================================================================== */

// CredentialVerifier checks a password against a stored hash. The hash
// scheme is owned by whoever provisions users.
type CredentialVerifier interface {
	Verify(password, hash string) error
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *Router) handleLogin(c fiber.Ctx) error {
	var req loginRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "invalid request body", err)
	}
	if err := r.validate.Validate(&req); err != nil {
		return err
	}

	invalid := errors.New(errors.ErrCodeUnauthenticated, "invalid email or password")

	user, err := r.users.FindByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			return invalid
		}
		return err
	}
	if err := r.verifier.Verify(req.Password, user.PasswordHash); err != nil {
		return invalid
	}

	// a login on a tenant subdomain only admits that tenant's users
	scope, _ := tenant.ScopeFrom(c.Context())
	if scope.Source == tenant.SourceHost {
		if user.CompanyID == nil || *user.CompanyID != *scope.CompanyID {
			return invalid
		}
	}

	token, err := r.sessions.Create(c.Context(), session.Session{
		UserID:     user.ID,
		CompanyID:  user.CompanyID,
		TenantSlug: scope.Slug,
	})
	if err != nil {
		return err
	}
	r.setSessionCookie(c, token, r.sessions.Config().TTL)

	if err := r.publisher.Publish(c.Context(), events.Event{
		Type:      events.TypeLogin,
		ActorID:   user.ID,
		CompanyID: user.CompanyID,
	}); err != nil {
		r.log.Warn("login event publish failed", zap.Error(err))
	}

	return response.OkWithData(c, fiber.Map{
		"user": user,
	})
}

func (r *Router) handleLogout(c fiber.Ctx) error {
	token := c.Cookies(r.sessions.Config().CookieName)
	if token != "" {
		if err := r.sessions.Delete(c.Context(), token); err != nil {
			r.log.Warn("session delete failed", zap.Error(err))
		}
	}
	r.setSessionCookie(c, "", -time.Hour)

	if caller, ok := authz.GetPrincipal(c.Context()); ok {
		if err := r.publisher.Publish(c.Context(), events.Event{
			Type:      events.TypeLogout,
			ActorID:   caller.UserID,
			CompanyID: caller.CompanyID,
		}); err != nil {
			r.log.Warn("logout event publish failed", zap.Error(err))
		}
	}
	return response.Ok(c)
}

func (r *Router) handleMe(c fiber.Ctx) error {
	caller := authz.MustGetPrincipal(c.Context())
	user, err := r.users.FindByID(c.Context(), caller.UserID)
	if err != nil {
		return err
	}

	data := fiber.Map{"user": user}
	if scope, ok := tenant.ScopeFrom(c.Context()); ok && scope.Scoped() {
		if company, err := r.companies.FindByID(c.Context(), *scope.CompanyID); err == nil {
			data["company"] = company
		}
	}
	return response.OkWithData(c, data)
}

func (r *Router) setSessionCookie(c fiber.Ctx, token string, ttl time.Duration) {
	cfg := r.sessions.Config()
	c.Cookie(&fiber.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Domain:   cfg.CookieDomain,
		Path:     "/",
		HTTPOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
	})
}
