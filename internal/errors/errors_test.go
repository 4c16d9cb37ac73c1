package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ConstructorsAssignTheirCategory checks that every constructor
// tags its error with the matching category regardless of the message.
func TestProperty_ConstructorsAssignTheirCategory(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("generic errors carry CodeGeneric", prop.ForAll(
		func(message string) bool {
			return NewGenericError(message, nil).Code == CodeGeneric
		},
		gen.AnyString(),
	))

	properties.Property("config errors carry CodeConfig", prop.ForAll(
		func(message string) bool {
			return NewConfigError(message, nil).Code == CodeConfig
		},
		gen.AnyString(),
	))

	properties.Property("local store errors carry CodeLocalStore", prop.ForAll(
		func(message string) bool {
			return NewLocalStoreError(message, nil).Code == CodeLocalStore
		},
		gen.AnyString(),
	))

	properties.Property("remote errors carry CodeRemote", prop.ForAll(
		func(message string) bool {
			return NewRemoteError(message, nil).Code == CodeRemote
		},
		gen.AnyString(),
	))

	properties.Property("listing errors carry CodeListingUnavailable", prop.ForAll(
		func(message string) bool {
			return NewListingUnavailableError(message).Code == CodeListingUnavailable
		},
		gen.AnyString(),
	))

	properties.Property("sync errors carry CodeSync", prop.ForAll(
		func(message string) bool {
			return NewSyncError(message, nil).Code == CodeSync
		},
		gen.AnyString(),
	))

	properties.Property("wrapping preserves the cause", prop.ForAll(
		func(message string, causeMsg string) bool {
			cause := errors.New(causeMsg)
			err := NewRemoteError(message, cause)
			unwrapped := errors.Unwrap(err)
			return unwrapped != nil && unwrapped.Error() == causeMsg
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("Error() without cause is the message", prop.ForAll(
		func(message string) bool {
			return NewGenericError(message, nil).Error() == message
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewGenericError(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewGenericError("test message", nil)
		if err.Code != CodeGeneric {
			t.Errorf("expected code %d, got %d", CodeGeneric, err.Code)
		}
		if err.Cause != nil {
			t.Errorf("expected nil cause, got %v", err.Cause)
		}
		if err.Error() != "test message" {
			t.Errorf("expected error string 'test message', got '%s'", err.Error())
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewGenericError("test message", cause)
		if err.Cause != cause {
			t.Errorf("expected cause to be preserved")
		}
		expectedError := "test message: underlying error"
		if err.Error() != expectedError {
			t.Errorf("expected error string '%s', got '%s'", expectedError, err.Error())
		}
	})
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeGeneric},
		{"plain error", errors.New("boom"), CodeGeneric},
		{"direct", NewConfigError("missing endpoint", nil), CodeConfig},
		{"wrapped by fmt", fmt.Errorf("loading: %w", NewLocalStoreError("bad dir", nil)), CodeLocalStore},
		{"outermost wins", NewSyncError("aborted", NewRemoteError("500", nil)), CodeSync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCLIError_ErrorsAs(t *testing.T) {
	err := fmt.Errorf("export: %w", NewListingUnavailableError("listing unavailable"))

	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected errors.As to succeed")
	}
	if cliErr.Code != CodeListingUnavailable {
		t.Errorf("expected code %d, got %d", CodeListingUnavailable, cliErr.Code)
	}
}

func TestErrorContextPreservation(t *testing.T) {
	rootCause := errors.New("connection refused")
	level1 := NewRemoteError("GET /api/email-templates failed", rootCause)
	level2 := NewSyncError("sync aborted", level1)

	if errors.Unwrap(level2) != level1 {
		t.Errorf("expected first unwrap to return level1 error")
	}
	if !errors.Is(level2, rootCause) {
		t.Errorf("expected root cause to be reachable with errors.Is")
	}
	want := "sync aborted: GET /api/email-templates failed: connection refused"
	if level2.Error() != want {
		t.Errorf("expected %q, got %q", want, level2.Error())
	}
}
