package repository

import "gorm.io/gorm"

// QueryOption collects optional query shaping.
type QueryOption struct {
	Select   []string
	OrderBy  string
	Preloads []string
	Scopes   []func(*gorm.DB) *gorm.DB
}

// Option applies one query option.
type Option func(*QueryOption)

// WithSelect restricts the selected columns.
func WithSelect(columns ...string) Option {
	return func(o *QueryOption) {
		o.Select = append(o.Select, columns...)
	}
}

// WithOrderBy sets the result ordering.
func WithOrderBy(orderBy string) Option {
	return func(o *QueryOption) {
		o.OrderBy = orderBy
	}
}

// WithPreloads eager-loads associations.
func WithPreloads(preloads ...string) Option {
	return func(o *QueryOption) {
		o.Preloads = append(o.Preloads, preloads...)
	}
}

// WithScopes adds raw gorm scopes.
func WithScopes(scopes ...func(*gorm.DB) *gorm.DB) Option {
	return func(o *QueryOption) {
		o.Scopes = append(o.Scopes, scopes...)
	}
}

// WithCondition adds a where clause.
func WithCondition(query string, args ...any) Option {
	return WithScopes(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// ApplyOptions folds opts into one QueryOption.
func ApplyOptions(opts []Option) *QueryOption {
	opt := &QueryOption{}
	for _, o := range opts {
		if o != nil {
			o(opt)
		}
	}
	return opt
}
