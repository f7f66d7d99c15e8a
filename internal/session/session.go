package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

/* ========================================================================
 * Session Store
 * ========================================================================
 * Opaque-token sessions in redis. The session remembers the tenant the
 * user logged in under so scope can survive host changes.
 * ======================================================================== */

// Config controls session issuance.
type Config struct {
	// TTL is the session lifetime, refreshed on every read.
	TTL time.Duration `yaml:"ttl"`
	// CookieName carries the token, default "sid".
	CookieName string `yaml:"cookie_name"`
	// CookieDomain scopes the cookie so it is sent to every tenant
	// subdomain, e.g. ".example.jp".
	CookieDomain string `yaml:"cookie_domain"`
	// CookieSecure marks the cookie HTTPS-only.
	CookieSecure bool `yaml:"cookie_secure"`
}

func (c *Config) withDefaults() {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.CookieName == "" {
		c.CookieName = "sid"
	}
}

// Session is the stored login state.
type Session struct {
	UserID int64 `json:"user_id"`
	// CompanyID is the tenant the user belongs to, nil for platform
	// operators.
	CompanyID *int64 `json:"company_id,omitempty"`
	// TenantSlug is the subdomain the login happened under.
	TenantSlug string    `json:"tenant_slug,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists sessions in redis keyed by opaque token.
type Store struct {
	cfg   Config
	cache *cache.Client
}

// NewStore builds a session store.
func NewStore(cfg Config, c *cache.Client) *Store {
	cfg.withDefaults()
	return &Store{cfg: cfg, cache: c}
}

// Config exposes the cookie settings for the HTTP layer.
func (s *Store) Config() Config {
	return s.cfg
}

// Create issues a fresh token for sess.
func (s *Store) Create(ctx context.Context, sess Session) (string, error) {
	sess.CreatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "marshal session", err)
	}
	token := uuid.NewString()
	if err := s.cache.Set(ctx, key(token), string(data), s.cfg.TTL); err != nil {
		return "", errors.Wrap(errors.ErrCodeUnavailable, "store session", err)
	}
	return token, nil
}

// Get loads the session for token and slides its expiry.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.ErrUnauthenticated
	}
	raw, err := s.cache.Get(ctx, key(token))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ErrUnauthenticated
		}
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "load session", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "decode session", err)
	}
	// sliding expiry; a failed refresh only shortens the session
	_ = s.cache.Set(ctx, key(token), raw, s.cfg.TTL)
	return &sess, nil
}

// Delete revokes token.
func (s *Store) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.cache.Del(ctx, key(token)); err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, "delete session", err)
	}
	return nil
}

func key(token string) string {
	return "session:" + token
}
