package apicall

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

type agentPayload struct {
	ID     string `json:"id" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
	Status string `json:"status" validate:"omitempty,oneof=online offline"`
}

func TestStructSchema(t *testing.T) {
	schema := StructSchema[agentPayload]()

	valid := map[string]any{"id": "a1", "email": "ada@example.com", "status": "online"}
	if err := schema.Validate(valid); err != nil {
		t.Errorf("Expected valid payload, got %v", err)
	}

	err := schema.Validate(map[string]any{"email": "ada@example.com"})
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("Expected validator errors, got %v", err)
	}
	if validationErrs[0].Field() != "ID" {
		t.Errorf("Expected ID failure, got %s", validationErrs[0].Field())
	}

	if err := schema.Validate(map[string]any{"id": "a1", "status": "away"}); err == nil {
		t.Error("Expected oneof failure")
	}
	if err := schema.Validate([]any{1, 2}); err == nil {
		t.Error("Expected shape mismatch error")
	}
}

func TestSchemaFunc(t *testing.T) {
	called := false
	schema := SchemaFunc(func(data any) error {
		called = true
		return nil
	})
	if err := schema.Validate("x"); err != nil || !called {
		t.Errorf("SchemaFunc not invoked correctly: %v", err)
	}
}
