package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"records-console/internal/common/apperrors"

	playgroundvalidator "github.com/go-playground/validator/v10"
)

var clockLayouts = []string{"15:04", "15:04:05"}

// New returns a validator that reports fields by their json names and knows the
// console's custom tags.
func New() *playgroundvalidator.Validate {
	v := playgroundvalidator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("clocktime", validateClockTime)

	return v
}

func validateClockTime(fl playgroundvalidator.FieldLevel) bool {
	_, ok := ParseClock(fl.Field().String())
	return ok
}

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(s string) (time.Time, bool) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToValidationError turns validator output into a field-level ValidationError.
func ToValidationError(message string, err error) *apperrors.ValidationError {
	ve := apperrors.NewValidationError(message)

	var fieldErrs playgroundvalidator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add("body", err.Error())
		return ve
	}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), Describe(fe))
	}
	return ve
}

func Describe(fe playgroundvalidator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date formatted %s", fe.Param())
	case "clocktime":
		return "must be a time formatted HH:MM"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
