package subproc

import (
	"testing"
)

func TestInherit_Run(t *testing.T) {
	r := Inherit()
	if err := r.Run([]string{"true"}); err != nil {
		t.Errorf("Expected true to succeed: %v", err)
	}
	if err := r.Run([]string{"false"}); err == nil {
		t.Error("Expected false to fail")
	}
}

func TestInherit_EmptyArgv(t *testing.T) {
	if err := Inherit().Run(nil); err != nil {
		t.Errorf("Empty argv should be a no-op, got %v", err)
	}
}
