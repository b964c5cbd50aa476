package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Struct validates a tagged struct and returns a field-keyed message
// map suitable for a VALIDATION_ERROR payload, or nil when valid.
func Struct(v any) map[string]any {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]any{"_": err.Error()}
	}
	details := make(map[string]any, len(errs))
	for _, fe := range errs {
		details[strings.ToLower(fe.Field())] = message(fe)
	}
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hexcolor":
		return "must be a hex color like #aabbcc"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
