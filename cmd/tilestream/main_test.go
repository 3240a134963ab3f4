package main

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/tilestream/traverse"
	"github.com/stretchr/testify/require"
)

func testConfig() config {
	return config{
		TilesetURL: "https://example.com/tileset.json",
		Traversal: traversalConfig{
			Policy:      "scheduled",
			ErrorTarget: 6,
		},
		Cache: cacheConfig{
			MinSize: 10,
			MaxSize: 20,
		},
		Download: downloadConfig{
			MaxJobs: 4,
		},
		Camera: cameraConfig{
			Position: "0,0,0",
			Target:   "0,0,-1",
			FOV:      60,
			Width:    640,
			Height:   480,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(testConfig()))

	invalid := map[string]func(c *config){
		"tileset url":  func(c *config) { c.TilesetURL = "" },
		"policy":       func(c *config) { c.Traversal.Policy = "random" },
		"error target": func(c *config) { c.Traversal.ErrorTarget = -1 },
		"cache sizes":  func(c *config) { c.Cache.MinSize = 30 },
		"max jobs":     func(c *config) { c.Download.MaxJobs = 0 },
		"fov":          func(c *config) { c.Camera.FOV = 180 },
		"resolution":   func(c *config) { c.Camera.Height = 0 },
	}

	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			c := testConfig()
			mutate(&c)
			require.Error(t, validateConfig(c))
		})
	}
}

func TestNewViewerConfig(t *testing.T) {
	c := testConfig()
	c.FeatureFlags = []string{"FOVEATED_SSE"}

	vc, err := newViewerConfig(c)
	require.NoError(t, err)
	require.Equal(t, traverse.PolicyScheduled, vc.Traversal.Policy)
	require.True(t, vc.Traversal.Foveation)
	require.Equal(t, c.TilesetURL, vc.TilesetURI)
	require.Equal(t, 4, vc.MaxJobs)
}

func TestNewCamera(t *testing.T) {
	camera, err := newCamera(testConfig().Camera)
	require.NoError(t, err)
	require.Equal(t, math32.Vector3{Z: -1}, camera.Direction)
	require.Equal(t, 480, camera.Height)

	c := testConfig().Camera
	c.Target = c.Position
	_, err = newCamera(c)
	require.Error(t, err)

	c = testConfig().Camera
	c.Position = "1,2"
	_, err = newCamera(c)
	require.Error(t, err)
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 1, -2.5 ,3")
	require.NoError(t, err)
	require.Equal(t, math32.Vector3{X: 1, Y: -2.5, Z: 3}, v)

	_, err = parseVector("1,a,3")
	require.Error(t, err)
}
