package model

import (
	"strings"
	"testing"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, SessionIDPrefix) {
		t.Fatalf("id = %q, want prefix %q", id, SessionIDPrefix)
	}
	if got := len(id) - len(SessionIDPrefix); got != 24 {
		t.Errorf("suffix length = %d, want 24", got)
	}
	if NewSessionID() == id {
		t.Error("NewSessionID returned the same id twice")
	}
}
