package authz

import (
	"context"
	"fmt"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

/* ========================================================================
 * Principal
 * ========================================================================
 * The authenticated actor for a request. Attached once by the auth
 * middleware; the set-once semantics prevent principal mixing inside a
 * request.
 * ======================================================================== */

// Principal is the authenticated caller.
type Principal struct {
	UserID    int64
	Role      model.Role
	CompanyID *int64 // home tenant, nil for platform operators
}

// Privileged reports whether the principal sees the whole tenant.
func (p Principal) Privileged() bool {
	return p.Role.Privileged()
}

// PlatformOperator reports whether the principal may use unrestricted
// cross-tenant repositories: an admin with no home tenant.
func (p Principal) PlatformOperator() bool {
	return p.Role == model.RoleAdmin && p.CompanyID == nil
}

// Equal compares principals by value. CompanyID is compared by the id
// it points at, not by pointer identity.
func (p Principal) Equal(other Principal) bool {
	if p.UserID != other.UserID || p.Role != other.Role {
		return false
	}
	if (p.CompanyID == nil) != (other.CompanyID == nil) {
		return false
	}
	return p.CompanyID == nil || *p.CompanyID == *other.CompanyID
}

// String is used in audit logs.
func (p Principal) String() string {
	return fmt.Sprintf("user:%d role:%s", p.UserID, p.Role)
}

// principalKey is unexported to prevent forgery from other packages.
type principalKey struct{}

// WithPrincipal attaches the principal, erroring if a different one is
// already present.
func WithPrincipal(ctx context.Context, p Principal) (context.Context, error) {
	if existing, ok := GetPrincipal(ctx); ok {
		if !existing.Equal(p) {
			return ctx, fmt.Errorf("authz: principal conflict: existing=%s, new=%s", existing, p)
		}
		return ctx, nil // idempotent
	}
	return context.WithValue(ctx, principalKey{}, p), nil
}

// GetPrincipal reads the principal.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// MustGetPrincipal reads the principal, panicking when absent. Only for
// call sites behind the auth middleware.
func MustGetPrincipal(ctx context.Context) Principal {
	p, ok := GetPrincipal(ctx)
	if !ok {
		panic("authz: no principal in context")
	}
	return p
}

// PrincipalFromUser builds a principal from a loaded user row.
func PrincipalFromUser(u *model.User) Principal {
	return Principal{
		UserID:    u.ID,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}
