package tenant

import "context"

/* ========================================================================
 * Scope Context
 * ========================================================================
 * The resolved tenant boundary for one request. CompanyID == nil means
 * unrestricted (operator console on the root domain); everything else
 * is confined to that company's rows.
 * ======================================================================== */

// Source records which resolution rule produced the scope.
type Source string

const (
	// SourceHost: a tenant subdomain matched a company.
	SourceHost Source = "host"
	// SourceRoot: the bare root domain, operator scope.
	SourceRoot Source = "root"
	// SourceSession: no host match, the session's company was used.
	SourceSession Source = "session"
	// SourceNone: no host match and no session.
	SourceNone Source = "none"
)

// Scope is the per-request tenant boundary.
type Scope struct {
	// CompanyID is the bound company, or nil for unrestricted scope.
	CompanyID *int64
	// Slug is the matched subdomain slug, empty unless SourceHost.
	Slug string
	// Source says which rule bound the scope.
	Source Source
}

// Scoped reports whether requests are confined to one company.
func (s Scope) Scoped() bool {
	return s.CompanyID != nil
}

type scopeKey struct{}

// WithScope attaches the resolved scope to ctx. Resolution runs once
// per request; later writes are ignored.
func WithScope(ctx context.Context, s Scope) context.Context {
	if _, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the request scope, if resolution ran.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
