// Package validation validates configuration structs through struct tags.
//
// Field names in messages come from the `env` tag so that an operator sees the
// variable to fix, e.g. "BASEROW_API_TOKEN is required".
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"baserow-bridge/internal/common/errors"
)

// TablePlaceholder is substituted with the table id in the source URL template.
const TablePlaceholder = "{table_id}"

// FieldError is a single failed rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// StructValidator wraps go-playground/validator with the custom rules used by the bridge
type StructValidator struct {
	validate *validator.Validate
}

// New creates a validator with the custom rules registered
func New() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" && name != "-" {
			return name
		}
		return fld.Name
	})

	_ = v.RegisterValidation("url_template", validateURLTemplate)
	_ = v.RegisterValidation("cron_expression", validateCron)

	return &StructValidator{validate: v}
}

// Struct validates s and returns every failed rule
func (sv *StructValidator) Struct(s interface{}) []FieldError {
	err := sv.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: formatFieldError(fe),
		})
	}
	return out
}

// Validate returns a single config error joining every failed rule, or nil
func (sv *StructValidator) Validate(s interface{}) error {
	fieldErrs := sv.Struct(s)
	if len(fieldErrs) == 0 {
		return nil
	}
	if len(fieldErrs) == 1 {
		return errors.ConfigError(fieldErrs[0].Message)
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = fe.Message
	}
	return errors.ConfigError(fmt.Sprintf("invalid configuration: %s", strings.Join(messages, "; ")))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "url_template":
		return fmt.Sprintf("%s must be a URL containing %s", fe.Field(), TablePlaceholder)
	case "cron_expression":
		return fmt.Sprintf("%s must be a valid cron expression", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}

func validateURLTemplate(fl validator.FieldLevel) bool {
	tmpl := fl.Field().String()
	if !strings.Contains(tmpl, TablePlaceholder) {
		return false
	}
	u, err := url.Parse(strings.ReplaceAll(tmpl, TablePlaceholder, "1"))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func validateCron(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return true
	}
	_, err := cron.ParseStandard(expr)
	return err == nil
}

var defaultValidator = New()

// ValidateStruct validates s with the package-level validator
func ValidateStruct(s interface{}) error {
	return defaultValidator.Validate(s)
}
