package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("create tenant: %w", New(CodeConflict, "slug already taken"))
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected conflict match through wrapping")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("unexpected not found match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeTransient, "gateway timeout", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected cause in chain")
	}
	if !IsTransient(err) {
		t.Fatal("expected transient")
	}
	if err.Error() != "gateway timeout: context deadline exceeded" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(Validation("price", "price must be a number")); got != CodeValidation {
		t.Fatalf("expected validation, got %s", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestUnauthorizedIsGeneric(t *testing.T) {
	if Unauthorized().Message != "invalid credentials" {
		t.Fatal("unexpected unauthorized message")
	}
}
