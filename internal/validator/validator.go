package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

/* ========================================================================
 * Request Validation
 * ========================================================================
 * Thin wrapper over go-playground/validator. Violations map to one
 * InvalidArgument error listing the failed fields.
 * ======================================================================== */

// Validator validates request structs by tag.
type Validator struct {
	validate *validator.Validate
}

// New builds a validator.
func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks s against its validate tags.
func (v *Validator) Validate(s any) error {
	if s == nil {
		return nil
	}
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "validation failed", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return errors.Newf(errors.ErrCodeInvalidArgument, "validation failed: %s", strings.Join(parts, ", "))
}
