package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_SurvivesWrapping(t *testing.T) {
	base := DataUnavailable("Failed to generate tile URL", errors.New("boom"))
	wrapped := fmt.Errorf("risk layer: %w", base)

	if KindOf(wrapped) != KindDataUnavailable {
		t.Fatalf("kind=%v want data_unavailable", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrDataUnavailable) {
		t.Fatal("errors.Is should match the kind sentinel")
	}
	if errors.Is(wrapped, ErrInvalidLocation) {
		t.Fatal("errors.Is must not match a different kind")
	}
	if Detail(wrapped) != "Failed to generate tile URL" {
		t.Fatalf("detail=%q", Detail(wrapped))
	}
}

func TestDetail_FallbackPerKind(t *testing.T) {
	if got := Detail(InvalidLocation("", nil)); got != "Invalid location" {
		t.Fatalf("got %q", got)
	}
	if got := Detail(errors.New("plain")); got != "Request error" {
		t.Fatalf("got %q", got)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors have no kind")
	}
}
