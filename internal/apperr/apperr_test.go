package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeInvalidState, "booking is completed"))

	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected errors.Is to match INVALID_STATE")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("did not expect FORBIDDEN match")
	}
	if CodeOf(err) != CodeInvalidState {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Fatalf("plain errors must map to INTERNAL")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:     http.StatusNotFound,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeInvalidState: http.StatusConflict,
		CodeValidation:   http.StatusBadRequest,
		CodeGateway:      http.StatusBadGateway,
		CodeConflict:     http.StatusConflict,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("%s: want %d, got %d", code, want, got)
		}
	}
}

func TestFromStore(t *testing.T) {
	if err := FromStore(gorm.ErrRecordNotFound, "booking"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record not found must map to NOT_FOUND, got %v", err)
	}
	if err := FromStore(gorm.ErrDuplicatedKey, "booking"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate key must map to CONFLICT, got %v", err)
	}
	orig := New(CodeForbidden, "not yours")
	if err := FromStore(orig, "booking"); err != error(orig) {
		t.Fatalf("typed errors must pass through unchanged")
	}
	if FromStore(nil, "booking") != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestWithMetadataCopies(t *testing.T) {
	base := New(CodeNotFound, "missing")
	withID := base.WithMetadata("id", "42")

	if base.Metadata != nil {
		t.Fatalf("source must not be mutated")
	}
	if withID.Metadata["id"] != "42" {
		t.Fatalf("metadata not set")
	}
}
