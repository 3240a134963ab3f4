package viewer

import (
	"math"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/tilestream/tiles"
	"github.com/stretchr/testify/require"
)

func sphereVolume(x, y, z, radius float32) tiles.BoundingVolume {
	return tiles.BoundingVolume{
		Sphere: math32.Sphere{
			Center: math32.Vector3{X: x, Y: y, Z: z},
			Radius: radius,
		},
	}
}

func TestLookAt(t *testing.T) {
	c := LookAt(math32.Vector3{}, math32.Vector3{Z: -10}, 90, 100, 0)
	require.InDelta(t, -1, c.Direction.Z, 1e-6)
	require.InDelta(t, math.Pi/2, c.FOV, 1e-9)
	require.Equal(t, 1, c.Height)
}

func TestCameraError(t *testing.T) {
	c := LookAt(math32.Vector3{}, math32.Vector3{Z: -1}, 90, 100, 100)

	require.InDelta(t, 0.02, c.SSEDenominator(), 1e-9)
	require.InDelta(t, 5, c.Error(10, 100), 1e-9)
	require.Zero(t, c.Error(0, 0))
	require.True(t, math.IsInf(c.Error(10, 0), 1))
}

func TestCameraInView(t *testing.T) {
	c := LookAt(math32.Vector3{}, math32.Vector3{Z: -1}, 60, 100, 100)

	t.Run("in front", func(t *testing.T) {
		require.True(t, c.InView(sphereVolume(0, 0, -50, 1)))
	})

	t.Run("behind", func(t *testing.T) {
		require.False(t, c.InView(sphereVolume(0, 0, 50, 1)))
	})

	t.Run("aside", func(t *testing.T) {
		require.False(t, c.InView(sphereVolume(100, 0, -10, 1)))
	})

	t.Run("touching the cone", func(t *testing.T) {
		require.True(t, c.InView(sphereVolume(100, 0, -10, 95)))
	})

	t.Run("camera inside", func(t *testing.T) {
		require.True(t, c.InView(sphereVolume(0, 0, 50, 60)))
	})
}

func TestCameraDistance(t *testing.T) {
	c := LookAt(math32.Vector3{}, math32.Vector3{Z: -1}, 60, 100, 100)

	require.InDelta(t, 40, c.Distance(sphereVolume(0, 0, -50, 10)), 1e-4)
	require.Zero(t, c.Distance(sphereVolume(0, 0, -5, 10)))

	box := tiles.BoundingVolume{
		Box: math32.Box3{
			Min: math32.Vector3{X: -1, Y: -1, Z: -21},
			Max: math32.Vector3{X: 1, Y: 1, Z: -20},
		},
		HasBox: true,
	}
	require.InDelta(t, 20, c.Distance(box), 1e-4)
}

func TestCameraFoveationFactor(t *testing.T) {
	c := LookAt(math32.Vector3{}, math32.Vector3{Z: -1}, 60, 100, 100)

	t.Run("disabled", func(t *testing.T) {
		require.Equal(t, 1.0, c.FoveationFactor(sphereVolume(50, 0, -10, 1).Sphere))
	})

	c.Foveation = true
	c.FoveatedConeSize = 0.3

	t.Run("on the view axis", func(t *testing.T) {
		require.Zero(t, c.FoveationFactor(sphereVolume(0, 0, -50, 1).Sphere))
	})

	t.Run("off axis", func(t *testing.T) {
		near := c.FoveationFactor(sphereVolume(10, 0, -50, 1).Sphere)
		far := c.FoveationFactor(sphereVolume(25, 0, -50, 1).Sphere)
		require.Greater(t, far, near)
		require.LessOrEqual(t, far, 1.0)
	})
}
