package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "simple error",
			err:  ValidationError("payload must be a JSON object"),
			want: "validation: payload must be a JSON object",
		},
		{
			name: "error with cause",
			err:  InternalError("write failed", fmt.Errorf("disk full")),
			want: "internal: write failed: cause=disk full",
		},
		{
			name: "not found",
			err:  NotFoundError("rule"),
			want: "not_found: rule not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ConnectionError("redis unavailable", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := AuthError("decryption failed").WithContext("rule_id", 7)

	assert.Contains(t, err.Error(), "rule_id=7")
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(AuthError("bad token"), ErrTypeAuth))
	assert.False(t, IsType(AuthError("bad token"), ErrTypeValidation))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrTypeInternal))
	assert.False(t, IsType(nil, ErrTypeInternal))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeTimeout, GetType(TimeoutError("dispatch")))
	assert.Equal(t, ErrTypeInternal, GetType(fmt.Errorf("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeRateLimit, GetType(RateLimitError("inbound webhook")))
	assert.Equal(t, ErrTypeConfig, GetType(ConfigError("missing key")))
}
