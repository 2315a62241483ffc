package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator. Redirect URLs get the standard url
// rule plus a scheme restriction via tags on the request structs; nothing
// custom to register here.
func New() *validatorv10.Validate {
	return validatorv10.New()
}
