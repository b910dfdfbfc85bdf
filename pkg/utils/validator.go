// Package utils holds small request-validation helpers shared by the HTTP
// handlers.
package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

var defaultValidator *validator.Validate

var aliasRegexp = regexp.MustCompile(models.AliasPattern)

func init() {
	defaultValidator = validator.New()
	defaultValidator.RegisterValidation("alias", validateAlias)
}

func validateAlias(fl validator.FieldLevel) bool {
	return aliasRegexp.MatchString(fl.Field().String())
}

// ValidateStruct validates s against its `validate` struct tags, returning
// an INVALID_INPUT error describing every failing field.
func ValidateStruct(s interface{}) error {
	if err := defaultValidator.Struct(s); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return vaulterr.InvalidInput(err.Error())
		}
		fields := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			fields = append(fields, fmt.Sprintf("%s %s", toSnakeCase(fe.Field()), formatValidationError(fe)))
		}
		return vaulterr.InvalidInput(strings.Join(fields, "; "))
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "alias":
		return "must match " + models.AliasPattern
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")

func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
