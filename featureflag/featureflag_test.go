package featureflag

import (
	"testing"

	"github.com/aukilabs/tilestream/traverse"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"load_siblings"})

	t.Run("run if enabled", func(t *testing.T) {
		var runLoadSiblings bool
		f.IfSet(FlagLoadSiblings, func() {
			runLoadSiblings = true
		})
		require.True(t, runLoadSiblings)

		var runFoveatedSSE bool
		f.IfSet(FlagFoveatedSSE, func() {
			runFoveatedSSE = true
		})
		require.False(t, runFoveatedSSE)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runLoadSiblings bool
		f.IfNotSet(FlagLoadSiblings, func() {
			runLoadSiblings = true
		})
		require.False(t, runLoadSiblings)

		var runFoveatedSSE bool
		f.IfNotSet(FlagFoveatedSSE, func() {
			runFoveatedSSE = true
		})
		require.True(t, runFoveatedSSE)
	})
}

func TestFeatureFlagApply(t *testing.T) {
	f := New([]string{"scheduled_traversal", " FOVEATED_SSE ", "", "DISPLAY_ACTIVE_TILES"})
	require.Len(t, f, 3)

	c := traverse.DefaultConfig()
	c.LoadSiblings = false
	f.Apply(&c)

	require.Equal(t, traverse.PolicyScheduled, c.Policy)
	require.True(t, c.Foveation)
	require.True(t, c.DisplayActiveTiles)
	require.False(t, c.DeferOutsideFrustum)
	require.False(t, c.LoadSiblings)
}
