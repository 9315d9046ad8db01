package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrorf tests that coded errors format their message and expose the code
func TestErrorf(t *testing.T) {
	err := Errorf(CodeValidationError, "recipient %s is not a valid address", "0x123")

	assert.Equal(t, CodeValidationError, err.Code)
	assert.Equal(t, "recipient 0x123 is not a valid address", err.Message)
	assert.Equal(t, "VALIDATION_ERROR: recipient 0x123 is not a valid address", err.Error())
}

// TestCodeOf tests code extraction through wrapped error chains
func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "direct coded error",
			err:      Errorf(CodeRPCError, "node unreachable"),
			expected: CodeRPCError,
		},
		{
			name:     "wrapped coded error",
			err:      fmt.Errorf("verify intent: %w", Errorf(CodeChainMismatch, "wrong network")),
			expected: CodeChainMismatch,
		},
		{
			name:     "plain error has no code",
			err:      errors.New("boom"),
			expected: "",
		},
		{
			name:     "nil error has no code",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}
