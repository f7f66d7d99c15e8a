package authz

import (
	"context"
	"testing"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestFilterPrivilegedRoleIsUnscoped(t *testing.T) {
	caller := Principal{UserID: 1, Role: model.RoleManager, CompanyID: ptr(1)}
	scope, err := Filter(caller, EntityCustomers, ActionList)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if scope != nil {
		t.Fatal("privileged caller should get no ownership filter")
	}
}

func TestFilterRestrictedRoleGetsOwnershipScope(t *testing.T) {
	caller := Principal{UserID: 9, Role: model.RoleStaff, CompanyID: ptr(1)}
	scope, err := Filter(caller, EntityCustomers, ActionList)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if scope == nil {
		t.Fatal("staff caller must be ownership-scoped")
	}
}

func TestFilterDeleteRoleGate(t *testing.T) {
	staff := Principal{UserID: 9, Role: model.RoleStaff, CompanyID: ptr(1)}
	if _, err := Filter(staff, EntityBusinesses, ActionDelete); errors.Code(err) != errors.ErrCodePermissionDenied {
		t.Fatalf("staff must not delete businesses, got %v", err)
	}

	manager := Principal{UserID: 2, Role: model.RoleManager, CompanyID: ptr(1)}
	if _, err := Filter(manager, EntityBusinesses, ActionDelete); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
}

func TestFilterCompaniesAdminOnly(t *testing.T) {
	for _, role := range []model.Role{model.RoleCEO, model.RoleManager, model.RoleStaff, model.RoleAgency, model.RoleClient} {
		caller := Principal{UserID: 3, Role: role, CompanyID: ptr(1)}
		if _, err := Filter(caller, EntityCompanies, ActionList); errors.Code(err) != errors.ErrCodePermissionDenied {
			t.Fatalf("%s should be denied on companies, got %v", role, err)
		}
	}
	admin := Principal{UserID: 3, Role: model.RoleAdmin}
	if _, err := Filter(admin, EntityCompanies, ActionList); err != nil {
		t.Fatalf("admin list companies: %v", err)
	}
}

func TestFilterUserCreateRequiresPrivilege(t *testing.T) {
	for _, role := range []model.Role{model.RoleStaff, model.RoleAgency, model.RoleClient} {
		caller := Principal{UserID: 9, Role: role, CompanyID: ptr(1)}
		if _, err := Filter(caller, EntityUsers, ActionCreate); errors.Code(err) != errors.ErrCodePermissionDenied {
			t.Fatalf("%s must not create users, got %v", role, err)
		}
	}
	for _, role := range []model.Role{model.RoleAdmin, model.RoleCEO, model.RoleManager} {
		caller := Principal{UserID: 2, Role: role, CompanyID: ptr(1)}
		if _, err := Filter(caller, EntityUsers, ActionCreate); err != nil {
			t.Fatalf("%s create users: %v", role, err)
		}
	}
}

func TestOwnerStampForRestrictedCreates(t *testing.T) {
	staff := Principal{UserID: 9, Role: model.RoleStaff, CompanyID: ptr(1)}

	column, ownerID, ok := OwnerStamp(staff, EntityCustomers)
	if !ok || column != "assigned_to" || ownerID != 9 {
		t.Fatalf("staff customer create: column=%q owner=%d ok=%v", column, ownerID, ok)
	}

	manager := Principal{UserID: 2, Role: model.RoleManager, CompanyID: ptr(1)}
	if _, _, ok := OwnerStamp(manager, EntityCustomers); ok {
		t.Fatal("privileged callers have nothing stamped")
	}
	if _, _, ok := OwnerStamp(staff, EntityUsers); ok {
		t.Fatal("primary-key ownership is never stamped")
	}
}

func TestFilterUnknownEntityIsInternal(t *testing.T) {
	caller := Principal{UserID: 1, Role: model.RoleAdmin}
	if _, err := Filter(caller, Entity("bogus"), ActionList); errors.Code(err) != errors.ErrCodeInternal {
		t.Fatalf("unknown entity must fail closed, got %v", err)
	}
}

func TestCheckUserUpdateBlocksSelfRoleChange(t *testing.T) {
	caller := Principal{UserID: 5, Role: model.RoleAdmin, CompanyID: ptr(1)}

	err := CheckUserUpdate(caller, 5, map[string]any{"role": "staff"})
	if !errors.Is(err, errors.ErrSelfEscalation) {
		t.Fatalf("expected self escalation block, got %v", err)
	}

	// updating own non-role fields stays allowed
	if err := CheckUserUpdate(caller, 5, map[string]any{"name": "new"}); err != nil {
		t.Fatalf("own name change: %v", err)
	}
	// changing someone else's role stays allowed
	if err := CheckUserUpdate(caller, 6, map[string]any{"role": "manager"}); err != nil {
		t.Fatalf("other role change: %v", err)
	}
}

func TestCheckUserDeleteBlocksSelf(t *testing.T) {
	caller := Principal{UserID: 5, Role: model.RoleAdmin, CompanyID: ptr(1)}

	if err := CheckUserDelete(caller, 5); !errors.Is(err, errors.ErrSelfDeletion) {
		t.Fatalf("expected self deletion block, got %v", err)
	}
	if err := CheckUserDelete(caller, 6); err != nil {
		t.Fatalf("deleting another user: %v", err)
	}
}

func TestWithPrincipalIdempotentAcrossAllocations(t *testing.T) {
	first := Principal{UserID: 7, Role: model.RoleStaff, CompanyID: ptr(42)}
	ctx, err := WithPrincipal(context.Background(), first)
	if err != nil {
		t.Fatalf("attach principal: %v", err)
	}

	// same principal, company id allocated separately
	same := Principal{UserID: 7, Role: model.RoleStaff, CompanyID: ptr(42)}
	if _, err := WithPrincipal(ctx, same); err != nil {
		t.Fatalf("re-attaching an equal principal: %v", err)
	}

	other := Principal{UserID: 8, Role: model.RoleStaff, CompanyID: ptr(42)}
	if _, err := WithPrincipal(ctx, other); err == nil {
		t.Fatal("a different principal must be rejected")
	}
	elsewhere := Principal{UserID: 7, Role: model.RoleStaff, CompanyID: ptr(43)}
	if _, err := WithPrincipal(ctx, elsewhere); err == nil {
		t.Fatal("a different company binding must be rejected")
	}
}

func TestPrincipalPlatformOperator(t *testing.T) {
	if !(Principal{UserID: 1, Role: model.RoleAdmin}).PlatformOperator() {
		t.Fatal("admin without company is the platform operator")
	}
	if (Principal{UserID: 1, Role: model.RoleAdmin, CompanyID: ptr(1)}).PlatformOperator() {
		t.Fatal("tenant admin is not the platform operator")
	}
	if (Principal{UserID: 1, Role: model.RoleManager}).PlatformOperator() {
		t.Fatal("non-admin without company is not the platform operator")
	}
}
