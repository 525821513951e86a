package auth

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report the human label instead of the Go field name
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
	})
	return validate
}

// validateStruct returns the first failing rule as a ValidationError.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError(fe.Field() + " is required")
	case "max":
		return validationError(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	default:
		return validationError(fe.Field() + " is invalid")
	}
}
