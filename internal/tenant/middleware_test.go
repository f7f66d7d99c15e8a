package tenant

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
)

func newScopeApp(t *testing.T, strict bool, fallback SessionFallback) (*fiber.App, *chan Scope) {
	t.Helper()
	r, _ := newTestResolver(t, strict)

	captured := make(chan Scope, 1)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			return c.Status(errors.HTTPStatus(err)).SendString(err.Error())
		},
	})
	app.Use(Middleware(r, fallback, logger.NewNop()))
	app.Get("/", func(c fiber.Ctx) error {
		scope, _ := ScopeFrom(c.Context())
		captured <- scope
		return c.SendString("ok")
	})
	return app, &captured
}

func doRequest(t *testing.T, app *fiber.App, host string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = host
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestMiddlewareBindsHostTenant(t *testing.T) {
	app, captured := newScopeApp(t, false, nil)

	if status := doRequest(t, app, "acme.example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceHost || scope.CompanyID == nil || *scope.CompanyID != 101 {
		t.Fatalf("expected host-bound acme scope, got %+v", scope)
	}
	if scope.Slug != "acme" {
		t.Fatalf("expected slug, got %q", scope.Slug)
	}
}

func TestMiddlewareRootDomainIsUnrestricted(t *testing.T) {
	app, captured := newScopeApp(t, false, nil)

	if status := doRequest(t, app, "example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceRoot || scope.CompanyID != nil {
		t.Fatalf("expected unrestricted root scope, got %+v", scope)
	}
}

func TestMiddlewareHostWinsOverSession(t *testing.T) {
	other := int64(555)
	app, captured := newScopeApp(t, false, func(fiber.Ctx) *int64 { return &other })

	if status := doRequest(t, app, "acme.example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceHost || scope.CompanyID == nil || *scope.CompanyID != 101 {
		t.Fatalf("host must beat the session tenant, got %+v", scope)
	}
}

func TestMiddlewareRootDomainIgnoresSession(t *testing.T) {
	other := int64(555)
	app, captured := newScopeApp(t, false, func(fiber.Ctx) *int64 { return &other })

	if status := doRequest(t, app, "example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceRoot || scope.CompanyID != nil {
		t.Fatalf("root domain must stay unrestricted, got %+v", scope)
	}
}

func TestMiddlewareUnknownSlugFallsBackToSession(t *testing.T) {
	companyID := int64(77)
	app, captured := newScopeApp(t, false, func(fiber.Ctx) *int64 { return &companyID })

	// an unknown subdomain quietly inherits the session's tenant
	if status := doRequest(t, app, "ghost.example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceSession || scope.CompanyID == nil || *scope.CompanyID != 77 {
		t.Fatalf("expected session fallback, got %+v", scope)
	}
}

func TestMiddlewareUnknownSlugWithoutSession(t *testing.T) {
	app, captured := newScopeApp(t, false, nil)

	if status := doRequest(t, app, "ghost.example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceNone || scope.CompanyID != nil {
		t.Fatalf("expected empty scope, got %+v", scope)
	}
}

func TestMiddlewareStrictRejectsUnknownSlug(t *testing.T) {
	companyID := int64(77)
	app, _ := newScopeApp(t, true, func(fiber.Ctx) *int64 { return &companyID })

	if status := doRequest(t, app, "ghost.example.jp"); status != 404 {
		t.Fatalf("strict mode should 404, got %d", status)
	}
	// known tenants still resolve
	if status := doRequest(t, app, "acme.example.jp"); status != 200 {
		t.Fatalf("status %d", status)
	}
}

func TestMiddlewareForeignHostUsesSession(t *testing.T) {
	companyID := int64(42)
	app, captured := newScopeApp(t, false, func(fiber.Ctx) *int64 { return &companyID })

	if status := doRequest(t, app, "localhost:3000"); status != 200 {
		t.Fatalf("status %d", status)
	}
	scope := <-*captured
	if scope.Source != SourceSession || scope.CompanyID == nil || *scope.CompanyID != 42 {
		t.Fatalf("expected session scope on foreign host, got %+v", scope)
	}
}
