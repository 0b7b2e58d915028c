package validator

import (
	"errors"
	"testing"
)

type loginRequest struct {
	Password string `json:"password" validate:"required,min=6"`
	Method   string `json:"delivery_method" validate:"omitempty,oneof=dine-in pickup delivery"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&loginRequest{Password: "abc", Method: "drone"})
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected Errors, got %T %v", err, err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %v", errs)
	}
	if errs[0].Field != "password" || errs[0].Message != "password must be at least 6 characters" {
		t.Fatalf("unexpected first error %+v", errs[0])
	}
	if errs[1].Field != "delivery_method" {
		t.Fatalf("unexpected second error %+v", errs[1])
	}
	if err.Error() != "password must be at least 6 characters; delivery_method must be one of: dine-in pickup delivery" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidatePasses(t *testing.T) {
	if err := NewValidator().Validate(&loginRequest{Password: "secret1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
