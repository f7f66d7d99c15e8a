package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/events"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/repository"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/session"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/tenant"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/validator"
)

/* ========================================================================
 * Router
 * ========================================================================
 * Route registration is where the repository mode is fixed: /api
 * surfaces get tenant-scoped repositories (platform operators widen to
 * unrestricted), /admin surfaces are operator-only and unrestricted.
 * Nothing the client sends can flip a route's mode afterwards.
 * ======================================================================== */

// Router wires every HTTP surface.
type Router struct {
	db        *gorm.DB
	log       *logger.Logger
	cfg       Config
	resolver  *tenant.Resolver
	sessions  *session.Store
	users     *repository.UserStore
	companies *repository.CompanyStore
	cache     *cache.Client
	verifier  CredentialVerifier
	publisher events.Publisher
	validate  *validator.Validator
	timeout   time.Duration
}

// RouterDeps collects the router's dependencies.
type RouterDeps struct {
	DB           *gorm.DB
	Logger       *logger.Logger
	Config       Config
	Resolver     *tenant.Resolver
	Sessions     *session.Store
	Users        *repository.UserStore
	Companies    *repository.CompanyStore
	Cache        *cache.Client
	Verifier     CredentialVerifier
	Publisher    events.Publisher
	QueryTimeout time.Duration
}

// NewRouter builds the router.
func NewRouter(d RouterDeps) *Router {
	return &Router{
		db:        d.DB,
		log:       d.Logger,
		cfg:       d.Config,
		resolver:  d.Resolver,
		sessions:  d.Sessions,
		users:     d.Users,
		companies: d.Companies,
		cache:     d.Cache,
		verifier:  d.Verifier,
		publisher: d.Publisher,
		validate:  validator.New(),
		timeout:   d.QueryTimeout,
	}
}

// Mount registers middleware and every route on app.
func (r *Router) Mount(app *fiber.App) {
	app.Use(RequestID())
	app.Use(metrics.HTTPMiddleware())
	app.Use(SessionAuth(r.sessions, r.users, r.log))
	app.Use(tenant.Middleware(r.resolver, sessionCompany, r.log))

	auth := app.Group("/auth")
	if loginLimit, err := LoginRateLimit(r.cache, r.cfg.LoginRateLimit); err == nil {
		auth.Post("/login", loginLimit, r.handleLogin)
	} else {
		r.log.Warn("login rate limiter unavailable, continuing without it")
		auth.Post("/login", r.handleLogin)
	}
	auth.Post("/logout", r.handleLogout)
	auth.Get("/me", RequireAuth(), r.handleMe)

	api := app.Group("/api", RequireAuth())
	registerEntity[model.Customer](r, api, authz.EntityCustomers, "customers")
	registerEntity[model.Task](r, api, authz.EntityTasks, "tasks")
	registerEntity[model.Business](r, api, authz.EntityBusinesses, "businesses")
	registerEntity[model.AgencySale](r, api, authz.EntityAgencySales, "agency-sales")
	registerEntity[model.SeoArticle](r, api, authz.EntitySeoArticles, "seo-articles")
	registerEntity[model.SeoCategory](r, api, authz.EntitySeoCategories, "seo-categories")
	registerEntity[model.Lead](r, api, authz.EntityLeads, "leads")
	registerEntity[model.Employee](r, api, authz.EntityEmployees, "employees")
	registerEntity[model.Memo](r, api, authz.EntityMemos, "memos")
	registerEntity[model.Investment](r, api, authz.EntityInvestments, "investments")
	registerEntity[model.QuickNote](r, api, authz.EntityQuickNotes, "quick-notes")
	registerEntity[model.ClientProject](r, api, authz.EntityClientProjects, "client-projects")
	registerEntity[model.ClientInvoice](r, api, authz.EntityClientInvoices, "client-invoices")
	registerEntity[model.AiLog](r, api, authz.EntityAiLogs, "ai-logs")
	registerEntity[model.AiConversation](r, api, authz.EntityAiConversations, "ai-conversations")
	r.registerUsers(api)

	admin := app.Group("/admin", RequireAuth())
	r.registerAdmin(admin)
}

// sessionCompany feeds the tenant middleware's session fallback from
// the session loaded by SessionAuth.
func sessionCompany(c fiber.Ctx) *int64 {
	if sess, ok := session.FromContext(c.Context()); ok {
		return sess.CompanyID
	}
	return nil
}

/* ========================================================================
 * Repository mode selection
 * ======================================================================== */

type repoMode int

const (
	// modeTenant serves /api: the host's tenant scope is mandatory,
	// except for platform operators on the root domain.
	modeTenant repoMode = iota
	// modeAdmin serves /admin: platform operators only, never scoped.
	modeAdmin
)

// repoProvider fixes the scoping rule for a route at registration.
func repoProvider[T any](r *Router, entity authz.Entity, mode repoMode) func(fiber.Ctx) (*repository.Repository[T], error) {
	return func(c fiber.Ctx) (*repository.Repository[T], error) {
		caller, ok := authz.GetPrincipal(c.Context())
		if !ok {
			return nil, errors.ErrUnauthenticated
		}

		switch mode {
		case modeAdmin:
			if !caller.PlatformOperator() {
				return nil, errors.ErrPermissionDenied
			}
			return repository.Unrestricted[T](r.db, entity, r.timeout), nil
		default:
			scope, _ := tenant.ScopeFrom(c.Context())
			if scope.Scoped() {
				return repository.TenantScoped[T](r.db, entity, scope.CompanyID, r.timeout)
			}
			if caller.PlatformOperator() {
				return repository.Unrestricted[T](r.db, entity, r.timeout), nil
			}
			return nil, errors.ErrTenantScopeRequired
		}
	}
}
