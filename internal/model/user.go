package model

// Role is the coarse access level of a user within their company.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCEO     Role = "ceo"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleAgency  Role = "agency"
	RoleClient  Role = "client"
)

// Privileged reports whether the role sees the whole tenant instead of
// only owned rows.
func (r Role) Privileged() bool {
	switch r {
	case RoleAdmin, RoleCEO, RoleManager:
		return true
	}
	return false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCEO, RoleManager, RoleStaff, RoleAgency, RoleClient:
		return true
	}
	return false
}

// User is an authenticated principal. CompanyID is the home tenant;
// null for platform operators.
type User struct {
	TenantModel
	Email        string `json:"email" gorm:"column:email;size:255;uniqueIndex" validate:"required,email"`
	Name         string `json:"name" gorm:"column:name;size:255" validate:"required"`
	Role         Role   `json:"role" gorm:"column:role;size:16;default:staff"`
	PasswordHash string `json:"-" gorm:"column:password_hash;size:255"`
}

func (User) TableName() string { return "users" }
