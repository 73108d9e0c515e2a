package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/apperr"
)

func TestNotFoundfMatchesSentinel(t *testing.T) {
	err := apperr.NotFoundf("assistant %s", "a-1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Contains(t, err.Error(), "assistant a-1")

	wrapped := fmt.Errorf("lookup: %w", err)
	require.ErrorIs(t, wrapped, apperr.ErrNotFound)
}

func TestConfigErrorDetection(t *testing.T) {
	err := apperr.Configf("overlap %d >= size %d", 500, 500)
	require.True(t, apperr.IsConfig(err))
	require.True(t, apperr.IsConfig(fmt.Errorf("load: %w", err)))
	require.False(t, apperr.IsConfig(errors.New("unrelated")))
}

func TestCapabilityNilPassthrough(t *testing.T) {
	require.NoError(t, apperr.Capability("embedding", nil))
}

func TestCapabilityTimeoutDetection(t *testing.T) {
	err := apperr.Capability("generation", context.DeadlineExceeded)
	require.True(t, apperr.IsCapability(err))

	var ce *apperr.CapabilityError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Timeout)
	require.Equal(t, "generation", ce.Capability)
	require.Contains(t, err.Error(), "timed out")
}

func TestCapabilityNonTimeout(t *testing.T) {
	cause := errors.New("status 500")
	err := apperr.Capability("vector index", cause)

	var ce *apperr.CapabilityError
	require.ErrorAs(t, err, &ce)
	require.False(t, ce.Timeout)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "vector index capability failed")
}
