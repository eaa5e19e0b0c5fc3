package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyDeliveryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"nil", nil, FailureOther},
		{"blocked", errors.New("Forbidden: bot was blocked by the user"), FailureBlocked},
		{"never started", errors.New("Forbidden: bot can't initiate conversation with a user"), FailureNeverStarted},
		{"deactivated", errors.New("Forbidden: user is deactivated"), FailureDeactivated},
		{"rate limit", errors.New("Too Many Requests: retry after 30"), FailureOther},
		{"chat not found", errors.New("Bad Request: chat not found"), FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyDeliveryError(tt.err))
		})
	}
}

func TestFailureClassString(t *testing.T) {
	require.Equal(t, "blocked", FailureBlocked.String())
	require.Equal(t, "never_started", FailureNeverStarted.String())
	require.Equal(t, "deactivated", FailureDeactivated.String())
	require.Equal(t, "other", FailureOther.String())
}
