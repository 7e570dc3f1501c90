// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	if id == "" {
		t.Error("expected non-empty MessageID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestIDsAreUnique(t *testing.T) {
	a, b := NewGenerationID(), NewGenerationID()
	if a == b {
		t.Errorf("expected distinct generation IDs, got %s twice", a)
	}
	if NewSessionID() == NewSessionID() {
		t.Error("expected distinct session IDs")
	}
}
