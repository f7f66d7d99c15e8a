package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

type fakeFinder struct {
	companies map[string]*model.Company
	calls     int
}

func (f *fakeFinder) FindBySlug(_ context.Context, slug string) (*model.Company, error) {
	f.calls++
	if c, ok := f.companies[slug]; ok {
		return c, nil
	}
	return nil, errors.ErrNotFound
}

func newTestResolver(t *testing.T, strict bool) (*Resolver, *fakeFinder) {
	t.Helper()
	acme := &model.Company{Slug: "acme", Name: "Acme"}
	acme.ID = 101
	finder := &fakeFinder{companies: map[string]*model.Company{"acme": acme}}
	r := NewResolver(Config{RootDomain: "example.jp", Strict: strict, CacheTTL: time.Minute}, finder, nil, logger.NewNop())
	return r, finder
}

func TestResolveMatchingSubdomain(t *testing.T) {
	r, _ := newTestResolver(t, false)

	company, decision, err := r.Resolve(context.Background(), "acme.example.jp")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision != DecisionTenant {
		t.Fatalf("expected tenant decision, got %v", decision)
	}
	if company.ID != 101 {
		t.Fatalf("expected acme, got %+v", company)
	}
}

func TestResolveHostVariants(t *testing.T) {
	r, _ := newTestResolver(t, false)

	cases := []struct {
		host string
		want Decision
	}{
		{"example.jp", DecisionRoot},
		{"www.example.jp", DecisionRoot},
		{"EXAMPLE.JP", DecisionRoot},
		{"acme.example.jp", DecisionTenant},
		{"Acme.Example.JP", DecisionTenant},
		{"acme.example.jp:8080", DecisionTenant},
		// nested hosts resolve by the leftmost label at any depth
		{"acme.staging.example.jp", DecisionTenant},
		{"acme.eu.staging.example.jp", DecisionTenant},
		{"deep.acme.example.jp", DecisionNoMatch},
		{"x.y.acme.example.jp", DecisionNoMatch},
		{"unknown.example.jp", DecisionNoMatch},
		{"api.example.jp", DecisionNoMatch},
		{"admin.example.jp", DecisionNoMatch},
		{"localhost", DecisionForeign},
		{"evil-example.jp", DecisionForeign},
		{"example.jp.attacker.com", DecisionForeign},
		{"", DecisionForeign},
	}
	for _, tc := range cases {
		_, decision, err := r.Resolve(context.Background(), tc.host)
		if err != nil {
			t.Fatalf("%s: %v", tc.host, err)
		}
		if decision != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.host, tc.want, decision)
		}
	}
}

func TestResolveCachesLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	acme := &model.Company{Slug: "acme", Name: "Acme"}
	acme.ID = 101
	finder := &fakeFinder{companies: map[string]*model.Company{"acme": acme}}
	r := NewResolver(Config{RootDomain: "example.jp", CacheTTL: time.Minute}, finder, client, logger.NewNop())

	for i := 0; i < 3; i++ {
		if _, decision, err := r.Resolve(context.Background(), "acme.example.jp"); err != nil || decision != DecisionTenant {
			t.Fatalf("resolve %d: decision=%v err=%v", i, decision, err)
		}
	}
	if finder.calls != 1 {
		t.Fatalf("expected one storage lookup, got %d", finder.calls)
	}

	// negative entries are cached too
	for i := 0; i < 3; i++ {
		if _, decision, err := r.Resolve(context.Background(), "nobody.example.jp"); err != nil || decision != DecisionNoMatch {
			t.Fatalf("miss %d: decision=%v err=%v", i, decision, err)
		}
	}
	if finder.calls != 2 {
		t.Fatalf("expected one storage lookup for the miss, got %d", finder.calls-1)
	}

	// invalidation forces a reload
	r.Invalidate(context.Background(), "acme")
	if _, _, err := r.Resolve(context.Background(), "acme.example.jp"); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if finder.calls != 3 {
		t.Fatalf("expected reload after invalidate, got %d calls", finder.calls)
	}
}

func TestScopeContextIsSetOnce(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{CompanyID: ptr(1), Source: SourceHost})
	ctx = WithScope(ctx, Scope{Source: SourceRoot})

	scope, ok := ScopeFrom(ctx)
	if !ok {
		t.Fatal("expected scope")
	}
	if scope.Source != SourceHost || scope.CompanyID == nil || *scope.CompanyID != 1 {
		t.Fatalf("later writes must not win, got %+v", scope)
	}
}

func ptr(v int64) *int64 { return &v }
