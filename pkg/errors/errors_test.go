package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeSignature, http.StatusUnauthorized},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeUnresolved, http.StatusOK},
		{CodeDependency, http.StatusServiceUnavailable},
		{Code("bogus"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Errorf("MetadataFor(%s) status = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "store write failed")

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped error to match cause")
	}
	if As(fmt.Errorf("outer: %w", wrapped)).Code() != CodeDependency {
		t.Fatal("expected code to survive further wrapping")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeStateConflict, "no skipping stages"))
	if !HasCode(err, CodeStateConflict) {
		t.Fatal("expected state conflict code")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("did not expect not found code")
	}
	if HasCode(nil, CodeNotFound) {
		t.Fatal("nil error should not match any code")
	}
}
