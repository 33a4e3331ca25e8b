package services_test

import (
	"errors"
	"fmt"
	"testing"

	"stagecue/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := fmt.Errorf("exec: %q: executable file not found", "ffplay")
	err := services.Wrap(services.ErrSpawn, "runner", "launch", "ffplay missing", base)
	if !errors.Is(err, services.ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToValidation(t *testing.T) {
	err := services.Wrap(nil, "deck", "load", "bad trim", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation fallback, got %v", err)
	}
}

func TestFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"backend unavailable", services.Wrap(services.ErrBackendUnavailable, "runner", "launch", "", nil), true},
		{"spawn", services.Wrap(services.ErrSpawn, "runner", "launch", "", nil), false},
		{"unsupported", services.ErrUnsupported, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Fatal(tc.err); got != tc.want {
				t.Fatalf("Fatal(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
