// Package validation binds request payloads and turns validator errors
// into field errors.
package validation

import (
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator. Field names in errors follow the
// json tag, then the form tag.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(tagName)
		_ = instance.RegisterValidation("maxbytes", maxBytes)
	})
	return instance
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	return Validator().Struct(v)
}

// maxBytes limits the encoded length of a string, e.g. `maxbytes=72` for
// bcrypt input.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
