package server

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/oklog/ulid/v2"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/session"
)

/* ========================================================================
 * Request Middleware
 * ======================================================================== */

const requestIDHeader = "X-Request-Id"

// RequestID assigns a ulid to every request and echoes it back.
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
		c.Set(requestIDHeader, id)
		c.Locals("request_id", id)
		return c.Next()
	}
}

// SessionAuth loads the session named by the cookie and, when valid,
// attaches the session and the caller's principal to the request
// context. Requests without a usable session pass through anonymous;
// RequireAuth draws the line for protected routes.
func SessionAuth(store *session.Store, users *repository.UserStore, log *logger.Logger) fiber.Handler {
	cookieName := store.Config().CookieName
	return func(c fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			return c.Next()
		}

		sess, err := store.Get(c.Context(), token)
		if err != nil {
			if !errors.Is(err, errors.ErrUnauthenticated) {
				log.Warn("session load failed", zap.Error(err))
			}
			return c.Next()
		}

		user, err := users.FindByID(c.Context(), sess.UserID)
		if err != nil {
			// stale session pointing at a removed user
			if errors.IsNotFound(err) {
				_ = store.Delete(c.Context(), token)
			}
			return c.Next()
		}

		ctx := session.WithSession(c.Context(), sess)
		ctx, err = authz.WithPrincipal(ctx, authz.PrincipalFromUser(user))
		if err != nil {
			return err
		}
		c.SetContext(ctx)
		return c.Next()
	}
}

// RequireAuth rejects requests that carry no principal.
func RequireAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := authz.GetPrincipal(c.Context()); !ok {
			return errors.ErrUnauthenticated
		}
		return c.Next()
	}
}

// LoginRateLimit caps login attempts per client IP. Counters live in
// redis so the cap holds across replicas.
func LoginRateLimit(c *cache.Client, perMinute int64) (fiber.Handler, error) {
	if perMinute <= 0 {
		perMinute = 10
	}
	store, err := redisstore.NewStore(c.Raw())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "create rate limit store", err)
	}
	lim := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: perMinute})

	return func(c fiber.Ctx) error {
		lctx, err := lim.Get(c.Context(), "login:ip:"+c.IP())
		if err != nil {
			return errors.Wrap(errors.ErrCodeUnavailable, "rate limit check failed", err)
		}
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
		if lctx.Reached {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many login attempts")
		}
		return c.Next()
	}, nil
}
