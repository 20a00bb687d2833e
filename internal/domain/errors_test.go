package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusError(t *testing.T) {
	cause := errors.New("upstream said no")

	tests := []struct {
		status   int
		kind     ErrorKind
		contains string
	}{
		{404, KindNotFound, "different time window"},
		{500, KindServerUnavailable, "temporarily unavailable"},
		{503, KindHTTPStatus, "status: 503"},
		{418, KindHTTPStatus, "status: 418"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewStatusError(tt.status, cause)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.Contains(t, err.Error(), tt.contains)
			assert.ErrorIs(t, err, cause)
			assert.NotContains(t, err.Error(), "upstream said no")
		})
	}
}

func TestNewNetworkError_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	err := NewNetworkError(cause)

	assert.Equal(t, KindNetworkFailure, err.Kind)
	assert.Equal(t, MessageNetworkFailure, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch day: %w", NewStatusError(404, nil))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}
