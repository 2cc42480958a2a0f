package etlerrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(ErrorTypeValidation, "unsupported time window")
	assert.Equal(t, "validation: unsupported time window", err.Error())

	wrapped := Wrap(io.EOF, ErrorTypeData, "read artifact")
	assert.Equal(t, "data: read artifact: EOF", wrapped.Error())
	assert.True(t, errors.Is(wrapped, io.EOF))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeConnection, "noop"))
	assert.Nil(t, Wrapf(nil, ErrorTypeConnection, "noop %d", 1))
}

func TestWrapKeepsStack(t *testing.T) {
	inner := New(ErrorTypeConnection, "dial")
	outer := Wrap(inner, ErrorTypeData, "load")
	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", New(ErrorTypeConnection, "x"), true},
		{"rate limit", New(ErrorTypeRateLimit, "x"), true},
		{"timeout", New(ErrorTypeTimeout, "x"), true},
		{"auth", New(ErrorTypeAuthentication, "x"), false},
		{"config", New(ErrorTypeConfig, "x"), false},
		{"validation", New(ErrorTypeValidation, "x"), false},
		{"data", New(ErrorTypeData, "x"), true},
		{"stale", New(ErrorTypeStale, "x"), true},
		{"plain", errors.New("x"), true},
		{"fmt wrapped", fmt.Errorf("step: %w", New(ErrorTypeConnection, "x")), true},
		{"fatal under retry wrapper", fmt.Errorf("all 3 attempts failed: %w", New(ErrorTypeAuthentication, "x")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsTypeWalksChain(t *testing.T) {
	err := Wrap(New(ErrorTypeAuthentication, "401"), ErrorTypeConnection, "fetch comments")
	assert.True(t, IsType(err, ErrorTypeAuthentication))
	assert.True(t, IsType(err, ErrorTypeConnection))
	assert.False(t, IsType(err, ErrorTypeData))
	assert.Equal(t, ErrorTypeConnection, TypeOf(err))
	assert.Equal(t, ErrorTypeInternal, TypeOf(io.EOF))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeNotFound, "no artifact").WithDetail("prefix", "post_folder/pst_")
	assert.Equal(t, "post_folder/pst_", err.Details["prefix"])
}
