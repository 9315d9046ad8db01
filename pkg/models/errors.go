package models

import (
	"errors"
	"fmt"
)

// ErrorCode classifies verification and validation failures so that
// callers can react without parsing message strings.
type ErrorCode string

const (
	// CodeValidationError marks malformed or unsupported intent input.
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	// CodeRPCError marks node connectivity or query failures.
	CodeRPCError ErrorCode = "RPC_ERROR"
	// CodeExpiredError marks intents whose deadline passed before a match.
	CodeExpiredError ErrorCode = "EXPIRED_ERROR"
	// CodeConfirmationPending marks a found match that is not yet buried
	// deep enough. It is informational, not a failure.
	CodeConfirmationPending ErrorCode = "CONFIRMATION_PENDING"
	// CodeChainMismatch marks intents pinned to a different network than
	// the one the service verifies against.
	CodeChainMismatch ErrorCode = "CHAIN_MISMATCH"
)

// Error is a domain error carrying a machine-readable code alongside the
// human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a coded error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from err, unwrapping as needed. It
// returns the empty code when err carries no classification.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
