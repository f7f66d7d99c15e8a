package tenant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

/* ========================================================================
 * Tenant Resolver
 * ========================================================================
 * Host header -> tenant identity. Pure host parsing plus one slug
 * lookup; never touches the session. Lookups are cache-aside in redis,
 * invalidated on company mutation.
 * ======================================================================== */

// Config controls resolution behavior.
type Config struct {
	// RootDomain is the platform's bare domain, e.g. "example.jp".
	RootDomain string `yaml:"root_domain"`
	// Strict rejects unknown subdomain slugs with TenantNotFound
	// instead of degrading to session fallback.
	Strict bool `yaml:"strict"`
	// CacheTTL bounds the slug lookup cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// reservedSlugs never resolve to a tenant.
var reservedSlugs = map[string]bool{
	"www":   true,
	"api":   true,
	"admin": true,
	"app":   true,
	"mail":  true,
	"ftp":   true,
}

// Decision classifies what the host told us.
type Decision int

const (
	// DecisionTenant: a company is bound to the request.
	DecisionTenant Decision = iota
	// DecisionRoot: the bare root domain (or www), the operator console.
	DecisionRoot
	// DecisionNoMatch: the host named a subdomain of the root but no
	// company matched (unknown or reserved slug).
	DecisionNoMatch
	// DecisionForeign: the host is outside the root domain entirely
	// (development and preview hosts).
	DecisionForeign
)

// CompanyFinder looks companies up by slug. Implemented by the
// company repository.
type CompanyFinder interface {
	FindBySlug(ctx context.Context, slug string) (*model.Company, error)
}

// Resolver derives a tenant from a request host.
type Resolver struct {
	cfg    Config
	finder CompanyFinder
	cache  *cache.Client
	log    *logger.Logger
}

// NewResolver builds a resolver. cache may be nil (lookups go straight
// to storage).
func NewResolver(cfg Config, finder CompanyFinder, c *cache.Client, log *logger.Logger) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Resolver{cfg: cfg, finder: finder, cache: c, log: log}
}

// Resolve parses host and returns the bound company, if any. The
// company is non-nil only for DecisionTenant.
func (r *Resolver) Resolve(ctx context.Context, host string) (*model.Company, Decision, error) {
	host = stripPort(strings.ToLower(strings.TrimSpace(host)))
	root := strings.ToLower(r.cfg.RootDomain)

	switch {
	case host == "" || root == "":
		return nil, DecisionForeign, nil
	case host == root, host == "www."+root:
		return nil, DecisionRoot, nil
	case strings.HasSuffix(host, "."+root):
		slug := host[:len(host)-len(root)-1]
		// nested labels: the leftmost one is the candidate slug
		if i := strings.IndexByte(slug, '.'); i >= 0 {
			slug = slug[:i]
		}
		if reservedSlugs[slug] {
			return nil, DecisionNoMatch, nil
		}
		company, err := r.lookup(ctx, slug)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, DecisionNoMatch, nil
			}
			return nil, DecisionNoMatch, err
		}
		return company, DecisionTenant, nil
	default:
		return nil, DecisionForeign, nil
	}
}

// Strict reports whether unknown slugs fail closed.
func (r *Resolver) Strict() bool {
	return r.cfg.Strict
}

// RootDomain returns the configured root domain.
func (r *Resolver) RootDomain() string {
	return r.cfg.RootDomain
}

func (r *Resolver) lookup(ctx context.Context, slug string) (*model.Company, error) {
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, slugKey(slug)); err == nil {
			if raw == negativeEntry {
				return nil, errors.ErrNotFound
			}
			var company model.Company
			if err := json.Unmarshal([]byte(raw), &company); err == nil {
				return &company, nil
			}
		}
	}

	company, err := r.finder.FindBySlug(ctx, slug)
	if err != nil {
		if errors.IsNotFound(err) && r.cache != nil {
			// negative entries stop unknown-slug storms hitting the DB
			if cerr := r.cache.Set(ctx, slugKey(slug), negativeEntry, r.cfg.CacheTTL); cerr != nil {
				r.log.Warn("tenant cache write failed", zap.String("slug", slug), zap.Error(cerr))
			}
		}
		return nil, err
	}

	if r.cache != nil {
		if data, merr := json.Marshal(company); merr == nil {
			if cerr := r.cache.Set(ctx, slugKey(slug), string(data), r.cfg.CacheTTL); cerr != nil {
				r.log.Warn("tenant cache write failed", zap.String("slug", slug), zap.Error(cerr))
			}
		}
	}
	return company, nil
}

// Invalidate drops the cached lookup for slug. Called by tenant
// management on rename and delete.
func (r *Resolver) Invalidate(ctx context.Context, slug string) {
	if r.cache == nil || slug == "" {
		return
	}
	if err := r.cache.Del(ctx, slugKey(slug)); err != nil {
		r.log.Warn("tenant cache invalidation failed", zap.String("slug", slug), zap.Error(err))
	}
}

const negativeEntry = "__none__"

func slugKey(slug string) string {
	return "tenant:slug:" + slug
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		// ignore IPv6 literals; request hosts here are DNS names
		if !strings.Contains(host[i:], "]") {
			return host[:i]
		}
	}
	return host
}
