package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewStore(Config{TTL: ttl}, c), mr
}

func ptr(v int64) *int64 { return &v }

func TestCreateAndGetRoundtrip(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, Session{UserID: 42, CompanyID: ptr(7), TenantSlug: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	sess, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.UserID != 42 || sess.CompanyID == nil || *sess.CompanyID != 7 || sess.TenantSlug != "acme" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
}

func TestGetUnknownTokenIsUnauthenticated(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := store.Get(context.Background(), ""); !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("empty token: expected unauthenticated, got %v", err)
	}
}

func TestGetSlidesExpiry(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, Session{UserID: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// burn half the lifetime, then a read must restore the full TTL
	mr.FastForward(30 * time.Minute)
	if _, err := store.Get(ctx, token); err != nil {
		t.Fatalf("get: %v", err)
	}
	if ttl := mr.TTL("session:" + token); ttl != time.Hour {
		t.Fatalf("ttl not refreshed, got %v", ttl)
	}

	mr.FastForward(time.Hour + time.Minute)
	if _, err := store.Get(ctx, token); !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("expired token should be unauthenticated, got %v", err)
	}
}

func TestDeleteRevokesToken(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, Session{UserID: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, token); !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("revoked token should be unauthenticated, got %v", err)
	}

	// deleting an empty token is a no-op
	if err := store.Delete(ctx, ""); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	store := NewStore(Config{}, nil)
	cfg := store.Config()
	if cfg.TTL != 24*time.Hour {
		t.Fatalf("default ttl, got %v", cfg.TTL)
	}
	if cfg.CookieName != "sid" {
		t.Fatalf("default cookie name, got %q", cfg.CookieName)
	}
}
