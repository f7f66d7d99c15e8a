package model

// Company is a tenant: an isolated customer organization identified by
// its subdomain slug. Every scoped table references it through an
// optional company_id column.
type Company struct {
	BaseModel
	Slug string `json:"slug" gorm:"column:slug;size:63;uniqueIndex" validate:"required,hostname_rfc1123"`
	Name string `json:"name" gorm:"column:name;size:255" validate:"required"`

	// branding
	LogoURL      string `json:"logo_url" gorm:"column:logo_url;size:512"`
	PrimaryColor string `json:"primary_color" gorm:"column:primary_color;size:16"`
	AccentColor  string `json:"accent_color" gorm:"column:accent_color;size:16"`
}

func (Company) TableName() string { return "companies" }
