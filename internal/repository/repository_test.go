package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/authz"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

func testLogger() *logger.Logger { return logger.NewNop() }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr(v int64) *int64 { return &v }

func ctxWithPrincipal(t *testing.T, p authz.Principal) context.Context {
	t.Helper()
	ctx, err := authz.WithPrincipal(context.Background(), p)
	if err != nil {
		t.Fatalf("attach principal: %v", err)
	}
	return ctx
}

func managerCtx(t *testing.T, companyID int64) context.Context {
	return ctxWithPrincipal(t, authz.Principal{UserID: 1, Role: model.RoleManager, CompanyID: ptr(companyID)})
}

func TestTenantScopedRefusesNilCompany(t *testing.T) {
	db := openTestDB(t)
	if _, err := TenantScoped[model.Customer](db, authz.EntityCustomers, nil, time.Second); !errors.Is(err, errors.ErrTenantScopeRequired) {
		t.Fatalf("expected tenant scope required, got %v", err)
	}
}

func TestCrossTenantReadIsNotFound(t *testing.T) {
	db := openTestDB(t)

	repoA, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(1), time.Second)
	if err != nil {
		t.Fatalf("repo a: %v", err)
	}
	repoB, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(2), time.Second)
	if err != nil {
		t.Fatalf("repo b: %v", err)
	}

	ctxA := managerCtx(t, 1)
	ctxB := ctxWithPrincipal(t, authz.Principal{UserID: 2, Role: model.RoleManager, CompanyID: ptr(2)})

	c := &model.Customer{Name: "Sakura Trading"}
	if err := repoA.Create(ctxA, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repoB.FindByID(ctxB, c.ID); !errors.IsNotFound(err) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := repoA.FindByID(ctxA, c.ID); err != nil {
		t.Fatalf("same-tenant read: %v", err)
	}
}

func TestCreateStampsCompanyOverClientValue(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(7), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}

	// the client claims another company; the repository wins
	c := &model.Customer{Name: "spoofed", TenantModel: model.TenantModel{CompanyID: ptr(99)}}
	if err := repo.Create(managerCtx(t, 7), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.CompanyID == nil || *c.CompanyID != 7 {
		t.Fatalf("expected company 7, got %v", c.CompanyID)
	}
}

func TestUnrestrictedCreateLeavesCompanyUnbound(t *testing.T) {
	db := openTestDB(t)

	repo := Unrestricted[model.Customer](db, authz.EntityCustomers, time.Second)
	operator := ctxWithPrincipal(t, authz.Principal{UserID: 100, Role: model.RoleAdmin})

	// the client claims a company; unrestricted writes hold none
	c := &model.Customer{Name: "spoofed", TenantModel: model.TenantModel{CompanyID: ptr(99)}}
	if err := repo.Create(operator, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.CompanyID != nil {
		t.Fatalf("expected no company binding, got %d", *c.CompanyID)
	}

	got, err := repo.FindByID(operator, c.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.CompanyID != nil {
		t.Fatalf("persisted row must hold no company, got %d", *got.CompanyID)
	}
}

func TestRestrictedRoleCannotCreateUsers(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.User](db, authz.EntityUsers, ptr(5), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	staffCtx := ctxWithPrincipal(t, authz.Principal{UserID: 10, Role: model.RoleStaff, CompanyID: ptr(5)})

	u := &model.User{Name: "intruder", Email: "intruder@example.jp", Role: model.RoleAdmin}
	if err := repo.Create(staffCtx, u); errors.Code(err) != errors.ErrCodePermissionDenied {
		t.Fatalf("staff user create should be denied, got %v", err)
	}

	if err := repo.Create(managerCtx(t, 5), &model.User{Name: "hire", Email: "hire@example.jp", Role: model.RoleStaff}); err != nil {
		t.Fatalf("manager user create: %v", err)
	}
}

func TestCreateStampsOwnerForRestrictedRole(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(5), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	staffCtx := ctxWithPrincipal(t, authz.Principal{UserID: 10, Role: model.RoleStaff, CompanyID: ptr(5)})

	// the client claims another assignee; the caller wins
	c := &model.Customer{Name: "lead", AssignedTo: 99}
	if err := repo.Create(staffCtx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.AssignedTo != 10 {
		t.Fatalf("expected row assigned to its creator, got %d", c.AssignedTo)
	}

	// the creator can read the row back
	if _, err := repo.FindByID(staffCtx, c.ID); err != nil {
		t.Fatalf("creator read-back: %v", err)
	}
}

func TestUpdateStripsTenantColumn(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(3), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	ctx := managerCtx(t, 3)

	c := &model.Customer{Name: "before"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	updates := map[string]any{"name": "after", "company_id": int64(42), "id": int64(1)}
	if err := repo.UpdateByID(ctx, c.ID, updates); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.FindByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "after" {
		t.Fatalf("expected name updated, got %q", got.Name)
	}
	if got.CompanyID == nil || *got.CompanyID != 3 {
		t.Fatalf("company must not move, got %v", got.CompanyID)
	}
}

func TestOwnershipFilterForRestrictedRole(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(5), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	mgrCtx := managerCtx(t, 5)

	mine := &model.Customer{Name: "mine", AssignedTo: 10}
	other := &model.Customer{Name: "other", AssignedTo: 11}
	if err := repo.Create(mgrCtx, mine); err != nil {
		t.Fatalf("create mine: %v", err)
	}
	if err := repo.Create(mgrCtx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	staffCtx := ctxWithPrincipal(t, authz.Principal{UserID: 10, Role: model.RoleStaff, CompanyID: ptr(5)})
	page, err := repo.FindPage(staffCtx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.List) != 1 || page.List[0].Name != "mine" {
		t.Fatalf("staff should see only assigned rows, got %d", len(page.List))
	}
	if _, err := repo.FindByID(staffCtx, other.ID); !errors.IsNotFound(err) {
		t.Fatalf("unassigned row should read as absent, got %v", err)
	}

	// privileged role sees everything in the tenant
	page, err = repo.FindPage(mgrCtx, 1, 10)
	if err != nil {
		t.Fatalf("manager list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("manager should see both rows, got %d", page.Total)
	}
}

func TestDeleteLeavesTombstone(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(4), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	ctx := managerCtx(t, 4)

	c := &model.Customer{Name: "gone"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.DeleteByID(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.FindByID(ctx, c.ID); !errors.IsNotFound(err) {
		t.Fatalf("deleted row should be invisible, got %v", err)
	}

	// the tombstone is still physically present
	var count int64
	if err := db.Unscoped().Model(&model.Customer{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected tombstone to remain, got %d rows", count)
	}

	if err := repo.DeleteByID(ctx, c.ID); !errors.IsNotFound(err) {
		t.Fatalf("double delete should be not found, got %v", err)
	}
}

func TestDeleteRoleGate(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Business](db, authz.EntityBusinesses, ptr(6), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	ctx := managerCtx(t, 6)

	b := &model.Business{Name: "unit", CreatedBy: 10}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	staffCtx := ctxWithPrincipal(t, authz.Principal{UserID: 10, Role: model.RoleStaff, CompanyID: ptr(6)})
	if err := repo.DeleteByID(staffCtx, b.ID); errors.Code(err) != errors.ErrCodePermissionDenied {
		t.Fatalf("staff delete should be denied, got %v", err)
	}
	if err := repo.DeleteByID(ctx, b.ID); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
}

func TestPurgerReclaimsExpiredTombstones(t *testing.T) {
	db := openTestDB(t)

	repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(8), time.Second)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	ctx := managerCtx(t, 8)

	c := &model.Customer{Name: "old"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.DeleteByID(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// age the tombstone past the retention window
	aged := time.Now().Add(-48 * time.Hour).UnixMilli()
	if err := db.Unscoped().Model(&model.Customer{}).Where("id = ?", c.ID).
		Update("deleted_at", aged).Error; err != nil {
		t.Fatalf("age tombstone: %v", err)
	}

	purger := NewPurger(db, nil, testLogger(), time.Hour, 24*time.Hour)
	if err := purger.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	var count int64
	if err := db.Unscoped().Model(&model.Customer{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected tombstone reclaimed, got %d rows", count)
	}
}

func TestUnrestrictedSeesAllTenants(t *testing.T) {
	db := openTestDB(t)

	for _, companyID := range []int64{1, 2} {
		repo, err := TenantScoped[model.Customer](db, authz.EntityCustomers, ptr(companyID), time.Second)
		if err != nil {
			t.Fatalf("repo %d: %v", companyID, err)
		}
		ctx := ctxWithPrincipal(t, authz.Principal{UserID: companyID, Role: model.RoleManager, CompanyID: ptr(companyID)})
		if err := repo.Create(ctx, &model.Customer{Name: "c"}); err != nil {
			t.Fatalf("create %d: %v", companyID, err)
		}
	}

	operator := ctxWithPrincipal(t, authz.Principal{UserID: 100, Role: model.RoleAdmin})
	repo := Unrestricted[model.Customer](db, authz.EntityCustomers, time.Second)
	page, err := repo.FindPage(operator, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("operator should see both tenants, got %d", page.Total)
	}
}
