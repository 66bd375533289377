package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{403, ErrorTypeAuth},
		{401, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{502, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "https://cdn.example/u2")
			assert.Equal(t, tt.expected, err.Type)
			assert.Equal(t, tt.code, err.Code)
			assert.Contains(t, err.Error(), "https://cdn.example/u2")
		})
	}
}

func TestIsTypeSeesThroughWrapping(t *testing.T) {
	cause := FromStatus(403, "u2")
	err := fmt.Errorf("item 1: %w", NewFetchFailure("u2", cause))

	assert.True(t, IsType(err, ErrorTypeFetch))
	assert.True(t, IsType(err, ErrorTypeAuth))
	assert.False(t, IsType(err, ErrorTypeNetwork))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeFetch))

	var e *Error
	assert.True(t, stderrors.As(err, &e))
	assert.Equal(t, 403, e.Code)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypePageStructure))
}

func TestPageStructureMismatchMessage(t *testing.T) {
	err := NewPageStructureMismatch("marumaru", ".view-img")
	assert.Equal(t, ErrorTypePageStructure, err.Type)
	assert.Contains(t, err.Error(), "cannot parse this page")
}
