package fitting

import (
	"github.com/go-playground/validator"
)

// NewValidator returns a validator with the domain tags registered:
// bodyregion, aspectratio and tier.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bodyregion", func(fl validator.FieldLevel) bool {
		_, err := ParseBodyRegion(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("aspectratio", func(fl validator.FieldLevel) bool {
		_, err := ParseAspectRatio(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		_, err := ParseResolutionTier(fl.Field().String())
		return err == nil
	})
	return v
}
