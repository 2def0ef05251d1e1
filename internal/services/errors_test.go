package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"discbatch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "merging", "concat", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merging", "concat", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindAndRetryable(t *testing.T) {
	tests := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), "configuration", false},
		{services.Wrap(services.ErrValidation, "catalog", "parse", "bad", nil), "validation", false},
		{services.Wrap(services.ErrExternalTool, "merging", "ffmpeg", "exit 1", nil), "external_tool", true},
		{fmt.Errorf("outer: %w", services.ErrTimeout), "timeout", true},
		{errors.New("plain"), "unknown", true},
		{nil, "", false},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
		if got := services.Retryable(tc.err); got != tc.retryable {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
