package qerr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestNew_NilPassthrough(t *testing.T) {
	if err := New(CodeConfig, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := New(CodeOutputDirExists, os.ErrExist)
	wrapped := fmt.Errorf("job HMGCR_eQTLGEN: %w", base)

	if !IsCode(wrapped, CodeOutputDirExists) {
		t.Errorf("expected wrapped error to carry %s", CodeOutputDirExists)
	}
	if IsCode(wrapped, CodeInvalidJob) {
		t.Errorf("did not expect %s", CodeInvalidJob)
	}
	if !errors.Is(wrapped, os.ErrExist) {
		t.Errorf("expected os.ErrExist to remain reachable")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Errorf("expected %s, got %s", CodeUnknown, got)
	}
	if got := CodeOf(Newf(CodeLabelLocked, "label %s", "x")); got != CodeLabelLocked {
		t.Errorf("expected %s, got %s", CodeLabelLocked, got)
	}
	if IsCode(nil, CodeUnknown) {
		t.Errorf("nil error must not match any code")
	}
}

func TestError_Message(t *testing.T) {
	err := Newf(CodeInvocationFailed, "exit code %d", 2)
	if err.Error() != "invocation_failed: exit code 2" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
