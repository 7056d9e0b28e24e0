package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

// NewValidator returns a validator that reports JSON field names and knows
// the case enumerations.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("case_type", func(fl validator.FieldLevel) bool {
		return models.InterventionType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("case_status", func(fl validator.FieldLevel) bool {
		return models.InterventionStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("case_scope", func(fl validator.FieldLevel) bool {
		return models.InterventionScope(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("case_severity", func(fl validator.FieldLevel) bool {
		return models.Severity(fl.Field().String()).Valid()
	})
	return v
}

// ensureCaseValidators registers the case tags on a caller supplied validator.
func ensureCaseValidators(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	if err := v.Var("Other", "case_type"); err != nil {
		return NewValidator()
	}
	return v
}

// validationError turns validator output into a 400 with a readable message.
func validationError(err error, fallback string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fallback)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe.Field(), fe.Tag(), fe.Param()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(msgs, "; "))
}

func describeFieldError(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	case "case_type":
		return fmt.Sprintf("%s must be one of %v", field, models.InterventionTypes)
	case "case_status":
		return fmt.Sprintf("%s must be one of %v", field, models.InterventionStatuses)
	case "case_scope":
		return fmt.Sprintf("%s must be one of %v", field, models.InterventionScopes)
	case "case_severity":
		return fmt.Sprintf("%s must be one of %v", field, models.Severities)
	}
	return fmt.Sprintf("%s is invalid", field)
}

// fieldValidation builds a 400 for a single field.
func fieldValidation(field, tag, param string) error {
	return appErrors.Clone(appErrors.ErrValidation, describeFieldError(field, tag, param))
}
