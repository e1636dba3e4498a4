package identity_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	within, err := identity.IsWithinThresholdPeriod(time.Now().Add(-5*time.Minute), "15m")
	require.NoError(t, err)
	assert.True(t, within)

	within, err = identity.IsWithinThresholdPeriod(time.Now().Add(-30*time.Minute), "15m")
	require.NoError(t, err)
	assert.False(t, within)
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	outside, err := identity.IsOutsideThresholdPeriod(time.Now().Add(-30*time.Minute), "15m")
	require.NoError(t, err)
	assert.True(t, outside)

	outside, err = identity.IsOutsideThresholdPeriod(time.Now().Add(-5*time.Minute), "15m")
	require.NoError(t, err)
	assert.False(t, outside)
}

func TestThresholdPeriodBadPattern(t *testing.T) {
	_, err := identity.IsWithinThresholdPeriod(time.Now(), "not-a-duration")
	require.Error(t, err)

	_, err = identity.IsOutsideThresholdPeriod(time.Now(), "not-a-duration")
	require.Error(t, err)
}
