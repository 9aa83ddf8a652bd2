package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"portfolio/internal/models"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their form name
// and knows the calendar_date and notblank rules.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	// registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("calendar_date", validateCalendarDate)
	_ = v.RegisterValidation("notblank", validateNotBlank)
	return v
}

// validateCalendarDate accepts YYYY-MM-DD dates. 0001-01-01 is rejected
// because it is the zero Date, which is stored as NULL.
func validateCalendarDate(fl validator.FieldLevel) bool {
	d, err := models.ParseDate(fl.Field().String())
	return err == nil && !d.IsZero()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validationError converts validator output into a field validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return models.NewFieldValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("The %s field is required.", field)
	case "max":
		return fmt.Sprintf("The %s must not be greater than %s characters.", field, fe.Param())
	case "calendar_date":
		return fmt.Sprintf("The %s is not a valid date.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
