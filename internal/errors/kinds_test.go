package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInitialization, "failed to open embedded backend", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected error text to include the cause, got: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "Initialization") {
		t.Errorf("expected error text to name its kind, got: %s", err.Error())
	}
}

func TestMultiValidationError(t *testing.T) {
	var agg MultiValidationError
	if agg.AsError() != nil {
		t.Fatal("expected AsError to be nil with no failures collected")
	}

	agg.Add("missing required env var %q", "M3_PROJECT_ID")
	agg.Add("unknown tool type %q", "bogus")

	err := agg.AsError()
	if err == nil {
		t.Fatal("expected AsError to be non-nil after Add")
	}
	if !strings.Contains(err.Error(), "M3_PROJECT_ID") || !strings.Contains(err.Error(), "bogus") {
		t.Errorf("expected both failures in aggregate error, got: %s", err.Error())
	}
}

func TestRemediationFormatting(t *testing.T) {
	text := Remediation("The query references a table that does not exist.", "no such table: foo", DefaultRecipe...)
	if !strings.Contains(text, "no such table: foo") {
		t.Error("expected original message to appear verbatim")
	}
	if !strings.Contains(text, "1. ") {
		t.Error("expected a numbered recovery recipe")
	}
	if !strings.Contains(text, "get_database_schema") {
		t.Error("expected default recipe to mention get_database_schema")
	}
}
