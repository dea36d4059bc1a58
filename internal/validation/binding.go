package validation

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindings добавляет теги otpemail, otpcode и hexid в валидатор gin.
// Ошибки по полям идут в порядке полей структуры, поэтому email объявляется первым.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validation: неожиданный движок валидации %T", binding.Validator.Engine())
	}
	return register(v)
}

func register(v *validator.Validate) error {
	if err := v.RegisterValidation("otpemail", func(fl validator.FieldLevel) bool {
		return ValidateEmail(NormalizeEmail(fl.Field().String())) == nil
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return IsOTPCode(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("hexid", func(fl validator.FieldLevel) bool {
		return IsHexID(NormalizeHexID(fl.Field().String()))
	})
}
