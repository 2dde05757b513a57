package apicall

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Schema validates a parsed response body.
type Schema interface {
	Validate(data any) error
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(data any) error

// Validate implements Schema.
func (f SchemaFunc) Validate(data any) error {
	return f(data)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// StructSchema validates the body by decoding it into T and checking T's
// `validate` struct tags.
func StructSchema[T any]() Schema {
	return SchemaFunc(func(data any) error {
		var target T
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		if err := json.Unmarshal(raw, &target); err != nil {
			return fmt.Errorf("body does not match %T: %w", target, err)
		}
		return structValidator.Struct(target)
	})
}
