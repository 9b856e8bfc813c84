package logging

import "testing"

func TestNew_DefaultLevel(t *testing.T) {
	logger, err := New("")
	if err != nil {
		t.Fatalf("expected logger, got error %v", err)
	}
	if !logger.Core().Enabled(0) {
		t.Fatalf("expected info level to be enabled")
	}
}

func TestNew_DebugLevel(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("expected logger, got error %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
