package authz

import (
	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

/* ========================================================================
 * Access policy table
 * ========================================================================
 * One declarative table (entity, action) -> {allowed roles, ownership
 * column} instead of role conditionals scattered through handlers.
 * Tenant filtering and ownership filtering are independent dimensions;
 * the repository layer always applies both.
 * ======================================================================== */

// Entity names a scoped table in the policy table.
type Entity string

const (
	EntityUsers           Entity = "users"
	EntityCustomers       Entity = "customers"
	EntityTasks           Entity = "tasks"
	EntityBusinesses      Entity = "businesses"
	EntityAgencySales     Entity = "agency_sales"
	EntitySeoArticles     Entity = "seo_articles"
	EntitySeoCategories   Entity = "seo_categories"
	EntityLeads           Entity = "leads"
	EntityEmployees       Entity = "employees"
	EntityMemos           Entity = "memos"
	EntityInvestments     Entity = "investments"
	EntityQuickNotes      Entity = "quick_notes"
	EntityClientProjects  Entity = "client_projects"
	EntityClientInvoices  Entity = "client_invoices"
	EntityAiLogs          Entity = "ai_logs"
	EntityAiConversations Entity = "ai_conversations"
	EntityCompanies       Entity = "companies"
)

// Action is a repository operation class.
type Action string

const (
	ActionList   Action = "list"
	ActionGet    Action = "get"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Rule is one policy table cell.
type Rule struct {
	// Roles allowed to perform the action at all. Empty means every role.
	Roles []model.Role
	// OwnerColumn narrows visibility for non-privileged roles to rows
	// whose column equals the caller id. Empty means non-privileged
	// roles are denied outright.
	OwnerColumn string
}

// Allows reports whether the role passes the rule's role gate.
func (r Rule) Allows(role model.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

var (
	anyRole    []model.Role
	privileged = []model.Role{model.RoleAdmin, model.RoleCEO, model.RoleManager}
	adminOnly  = []model.Role{model.RoleAdmin}
)

// crud builds the common per-entity policy: reads and writes open to
// every role with ownership narrowing, deletes restricted to deleteRoles.
func crud(ownerColumn string, deleteRoles []model.Role) map[Action]Rule {
	return map[Action]Rule{
		ActionList:   {Roles: anyRole, OwnerColumn: ownerColumn},
		ActionGet:    {Roles: anyRole, OwnerColumn: ownerColumn},
		ActionCreate: {Roles: anyRole, OwnerColumn: ownerColumn},
		ActionUpdate: {Roles: anyRole, OwnerColumn: ownerColumn},
		ActionDelete: {Roles: deleteRoles, OwnerColumn: ownerColumn},
	}
}

// policyTable is the single source of truth for role/ownership access.
var policyTable = map[Entity]map[Action]Rule{
	// restricted roles only ever see themselves in the user list, and
	// only privileged roles can mint new accounts
	EntityUsers: {
		ActionList:   {Roles: anyRole, OwnerColumn: "id"},
		ActionGet:    {Roles: anyRole, OwnerColumn: "id"},
		ActionCreate: {Roles: privileged},
		ActionUpdate: {Roles: anyRole, OwnerColumn: "id"},
		ActionDelete: {Roles: privileged, OwnerColumn: "id"},
	},

	EntityCustomers:   crud("assigned_to", anyRole),
	EntityTasks:       crud("assigned_to", anyRole),
	EntityLeads:       crud("assigned_to", anyRole),
	EntityAgencySales: crud("agency_id", privileged),

	EntityBusinesses:      crud("created_by", privileged),
	EntitySeoArticles:     crud("created_by", anyRole),
	EntitySeoCategories:   crud("created_by", privileged),
	EntityEmployees:       crud("created_by", privileged),
	EntityMemos:           crud("created_by", anyRole),
	EntityInvestments:     crud("created_by", privileged),
	EntityQuickNotes:      crud("created_by", anyRole),
	EntityClientProjects:  crud("created_by", privileged),
	EntityClientInvoices:  crud("created_by", privileged),
	EntityAiLogs:          crud("created_by", privileged),
	EntityAiConversations: crud("created_by", anyRole),

	// tenant management: root-domain administrative surface only
	EntityCompanies: {
		ActionList:   {Roles: adminOnly},
		ActionGet:    {Roles: adminOnly},
		ActionCreate: {Roles: adminOnly},
		ActionUpdate: {Roles: adminOnly},
		ActionDelete: {Roles: adminOnly},
	},
}

// Lookup returns the rule for (entity, action).
func Lookup(entity Entity, action Action) (Rule, error) {
	policy, ok := policyTable[entity]
	if !ok {
		return Rule{}, errors.Wrapf(errors.ErrCodeInternal, nil, "no policy for entity %q", entity)
	}
	rule, ok := policy[action]
	if !ok {
		return Rule{}, errors.Wrapf(errors.ErrCodeInternal, nil, "no policy for %q on %q", action, entity)
	}
	return rule, nil
}

// Filter evaluates the policy for a caller and returns the ownership
// predicate to compose with the tenant filter. A nil scope means no
// ownership narrowing (privileged caller). ErrPermissionDenied when the
// role gate fails.
func Filter(caller Principal, entity Entity, action Action) (func(*gorm.DB) *gorm.DB, error) {
	rule, err := Lookup(entity, action)
	if err != nil {
		return nil, err
	}

	if !rule.Allows(caller.Role) {
		return nil, errors.ErrPermissionDenied
	}

	if caller.Privileged() {
		return nil, nil
	}

	if rule.OwnerColumn == "" {
		return nil, errors.ErrPermissionDenied
	}

	column := rule.OwnerColumn
	callerID := caller.UserID
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", callerID)
	}, nil
}

// OwnerStamp returns the ownership column a restricted caller must hold
// on rows it creates, plus the caller id to write there. Privileged
// callers and entities whose ownership column is the primary key get
// ok=false: nothing to stamp.
func OwnerStamp(caller Principal, entity Entity) (column string, ownerID int64, ok bool) {
	if caller.Privileged() {
		return "", 0, false
	}
	rule, err := Lookup(entity, ActionCreate)
	if err != nil || rule.OwnerColumn == "" || rule.OwnerColumn == "id" {
		return "", 0, false
	}
	return rule.OwnerColumn, caller.UserID, true
}

/* ========================================================================
 * Self-mutation guards
 * ========================================================================
 * Checked independently of tenant and role filtering.
 * ======================================================================== */

// CheckUserUpdate rejects a caller changing the role on their own user
// record, whatever their role is.
func CheckUserUpdate(caller Principal, targetID int64, updates map[string]any) error {
	if caller.UserID != targetID {
		return nil
	}
	if role, ok := updates["role"]; ok {
		if s, isString := role.(string); !isString || model.Role(s) != caller.Role {
			return errors.ErrSelfEscalation
		}
	}
	return nil
}

// CheckUserDelete rejects a caller deleting their own user record.
func CheckUserDelete(caller Principal, targetID int64) error {
	if caller.UserID == targetID {
		return errors.ErrSelfDeletion
	}
	return nil
}
