package errors

import "fmt"

// ErrorCode classifies a CLI failure. Every code maps to process exit status 1;
// the code exists so callers and tests can tell failure categories apart.
type ErrorCode int

const (
	// CodeGeneric represents an uncategorized failure
	CodeGeneric ErrorCode = 1
	// CodeConfig represents missing or invalid configuration, raised before any network call
	CodeConfig ErrorCode = 2
	// CodeLocalStore represents a malformed or incomplete template directory
	CodeLocalStore ErrorCode = 3
	// CodeRemote represents a failed call against the management API
	CodeRemote ErrorCode = 4
	// CodeListingUnavailable represents a remote that does not expose a template listing
	CodeListingUnavailable ErrorCode = 5
	// CodeSync represents a reconciliation run aborted by an item failure
	CodeSync ErrorCode = 6
)

// ExitCode is the process exit status used for every CLI failure.
const ExitCode = 1

// CLIError represents a CLI error with a specific error code
type CLIError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewGenericError creates a new generic error
func NewGenericError(message string, cause error) *CLIError {
	return &CLIError{
		Code:    CodeGeneric,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, cause error) *CLIError {
	return &CLIError{
		Code:    CodeConfig,
		Message: message,
		Cause:   cause,
	}
}

// NewLocalStoreError creates a new local template store error
func NewLocalStoreError(message string, cause error) *CLIError {
	return &CLIError{
		Code:    CodeLocalStore,
		Message: message,
		Cause:   cause,
	}
}

// NewRemoteError creates a new management API error
func NewRemoteError(message string, cause error) *CLIError {
	return &CLIError{
		Code:    CodeRemote,
		Message: message,
		Cause:   cause,
	}
}

// NewListingUnavailableError creates a new listing-unavailable error
func NewListingUnavailableError(message string) *CLIError {
	return &CLIError{
		Code:    CodeListingUnavailable,
		Message: message,
	}
}

// NewSyncError creates a new sync error
func NewSyncError(message string, cause error) *CLIError {
	return &CLIError{
		Code:    CodeSync,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the outermost CLIError in err's chain, or
// CodeGeneric when there is none.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if cliErr, ok := err.(*CLIError); ok {
			return cliErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return CodeGeneric
		}
		err = u.Unwrap()
	}
	return CodeGeneric
}
