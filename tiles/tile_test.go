package tiles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTileLoadLifecycle(t *testing.T) {
	t.Run("begin load is idempotent", func(t *testing.T) {
		var tile Tile

		epoch, ok := tile.BeginLoad()
		require.True(t, ok)
		require.Equal(t, Loading, tile.LoadState())

		_, ok = tile.BeginLoad()
		require.False(t, ok)
		require.Equal(t, epoch, tile.Epoch())
	})

	t.Run("complete applies content", func(t *testing.T) {
		var tile Tile

		epoch, _ := tile.BeginLoad()
		require.True(t, tile.Complete(epoch, Content{Type: ContentB3DM, Data: []byte("b3dm")}))
		require.Equal(t, Loaded, tile.LoadState())
		require.Equal(t, ContentB3DM, tile.Content().Type)
	})

	t.Run("stale completion is discarded", func(t *testing.T) {
		var tile Tile

		stale, _ := tile.BeginLoad()
		tile.Dispose()
		epoch, _ := tile.BeginLoad()
		require.NotEqual(t, stale, epoch)

		require.False(t, tile.Complete(stale, Content{Type: ContentB3DM}))
		require.False(t, tile.Fail(stale))
		require.Equal(t, Loading, tile.LoadState())
		require.Empty(t, tile.Content().Type)

		require.True(t, tile.Fail(epoch))
		require.Equal(t, Failed, tile.LoadState())
	})

	t.Run("completion after dispose is discarded", func(t *testing.T) {
		var tile Tile

		epoch, _ := tile.BeginLoad()
		tile.Dispose()

		require.False(t, tile.Complete(epoch, Content{Type: ContentPNTS}))
		require.Equal(t, Unloaded, tile.LoadState())
	})
}

func TestLoadStateFinished(t *testing.T) {
	require.False(t, Unloaded.Finished())
	require.False(t, Loading.Finished())
	require.True(t, Loaded.Finished())
	require.True(t, Failed.Finished())
}

func TestParseRefinement(t *testing.T) {
	r, ok := ParseRefinement("add")
	require.True(t, ok)
	require.Equal(t, Add, r)

	r, ok = ParseRefinement("REPLACE")
	require.True(t, ok)
	require.Equal(t, Replace, r)

	_, ok = ParseRefinement("")
	require.False(t, ok)
}

func TestTree(t *testing.T) {
	root := &Tile{}
	a := root.AddChild(&Tile{})
	b := root.AddChild(&Tile{})
	a.AddChild(&Tile{})

	tree := NewTree(root)
	require.Equal(t, 4, tree.Len())
	require.Equal(t, 0, root.ID)

	got, ok := tree.Tile(b.ID)
	require.True(t, ok)
	require.Same(t, b, got)

	t.Run("splice registers the sub tree", func(t *testing.T) {
		sub := &Tile{}
		leaf := sub.AddChild(&Tile{})

		tree.Splice(b, sub)
		require.Equal(t, 6, tree.Len())
		require.Equal(t, 2, sub.Depth)
		require.Equal(t, 3, leaf.Depth)

		got, ok := tree.Tile(leaf.ID)
		require.True(t, ok)
		require.Same(t, leaf, got)
	})

	t.Run("prune recycles ids", func(t *testing.T) {
		capBefore := tree.Cap()
		tree.Prune(b)
		require.Empty(t, b.Children)
		require.Equal(t, 4, tree.Len())

		tree.Splice(b, &Tile{})
		require.Equal(t, capBefore, tree.Cap())
	})
}

func TestWalk(t *testing.T) {
	root := &Tile{GeometricError: 0}
	a := root.AddChild(&Tile{GeometricError: 1})
	a.AddChild(&Tile{GeometricError: 2})
	root.AddChild(&Tile{GeometricError: 3})

	var order []float64
	Walk(root, func(tile *Tile) bool {
		order = append(order, tile.GeometricError)
		return true
	})
	require.Equal(t, []float64{0, 1, 2, 3}, order)

	order = nil
	Walk(root, func(tile *Tile) bool {
		order = append(order, tile.GeometricError)
		return tile != a
	})
	require.Equal(t, []float64{0, 1, 3}, order)
}

func TestIDGenerator(t *testing.T) {
	var ids IDGenerator

	for i := 0; i < 5; i++ {
		require.Equal(t, i, ids.New())
	}

	ids.Reuse(2)
	require.Equal(t, 2, ids.New())
	require.Equal(t, 5, ids.New())
	require.Equal(t, 6, ids.Cap())
}
