package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New[int]("test", 0, 0, 0)
	require.Equal(t, DefaultMinSize, c.MinSize)
	require.Equal(t, DefaultMaxSize, c.MaxSize)
	require.Equal(t, DefaultUnloadPercent, c.UnloadPercent)

	c = New[int]("test", 50, 10, 0.5)
	require.Equal(t, 10, c.MinSize)
}

func TestLRUAdd(t *testing.T) {
	c := New[int]("test", 1, 2, 1)

	require.True(t, c.Add(1, nil))
	require.False(t, c.Add(1, nil))
	require.True(t, c.Add(2, nil))
	require.True(t, c.IsFull())
	require.False(t, c.Add(3, nil))
	require.Equal(t, 2, c.Len())
}

func TestLRURemove(t *testing.T) {
	c := New[int]("test", 1, 4, 1)

	var unloaded []int
	unload := func(i int) { unloaded = append(unloaded, i) }

	c.Add(1, unload)
	c.MarkCache(1)

	require.True(t, c.Remove(1))
	require.False(t, c.Remove(1))
	require.False(t, c.Has(1))
	require.False(t, c.IsCached(1))
	require.Equal(t, []int{1}, unloaded)
}

func TestLRUUncache(t *testing.T) {
	c := New[int]("test", 1, 4, 1)

	c.MarkCache(1)
	c.Add(2, nil)
	c.MarkCache(2)
	require.Equal(t, 2, c.CachedCount())

	c.Uncache(1)
	require.False(t, c.IsCached(1))
	require.Equal(t, 1, c.CachedCount())

	c.Uncache(1)
	c.Uncache(2)
	require.Zero(t, c.CachedCount())
	require.True(t, c.Has(2))
}

func TestLRUUnloadUnused(t *testing.T) {
	t.Run("evicts least recently used first", func(t *testing.T) {
		c := New[int]("test", 2, 10, 1)

		var unloaded []int
		unload := func(i int) { unloaded = append(unloaded, i) }

		for i := 1; i <= 5; i++ {
			c.Add(i, unload)
		}
		c.MarkAllUnused()

		c.MarkUsed(1)
		c.MarkUsed(2)
		c.MarkAllUnused()

		// Recency order is now 3, 4, 5, 1, 2.
		n := c.UnloadUnused()
		require.Equal(t, 3, n)
		require.Equal(t, []int{3, 4, 5}, unloaded)
		require.Equal(t, 2, c.Len())
	})

	t.Run("keeps used items", func(t *testing.T) {
		c := New[int]("test", 1, 10, 1)

		for i := 1; i <= 4; i++ {
			c.Add(i, nil)
		}

		// Freshly added items count as used.
		require.Zero(t, c.UnloadUnused())

		c.MarkAllUnused()
		c.MarkUsed(3)
		require.Equal(t, 3, c.UnloadUnused())
		require.True(t, c.Has(3))
	})

	t.Run("keeps protected items", func(t *testing.T) {
		c := New[int]("test", 1, 10, 1)

		for i := 1; i <= 4; i++ {
			c.Add(i, nil)
		}
		c.MarkAllUnused()
		c.MarkCache(1)
		c.MarkCache(2)
		require.Equal(t, 2, c.CachedCount())

		require.Equal(t, 2, c.UnloadUnused())
		require.True(t, c.Has(1))
		require.True(t, c.Has(2))

		c.ReleaseCached()
		require.Zero(t, c.CachedCount())
		require.Equal(t, 1, c.UnloadUnused())
		require.Equal(t, 1, c.Len())
	})

	t.Run("limits evictions per call", func(t *testing.T) {
		c := New[int]("test", 10, 100, 0.1)

		for i := 0; i < 30; i++ {
			c.Add(i, nil)
		}
		c.MarkAllUnused()

		// excess is 20, at most ceil(max(10, 20) * 0.1) = 2 items per call.
		require.Equal(t, 2, c.UnloadUnused())
		require.Equal(t, 28, c.Len())
	})

	t.Run("does nothing below min size", func(t *testing.T) {
		c := New[int]("test", 5, 10, 1)

		for i := 0; i < 5; i++ {
			c.Add(i, nil)
		}
		c.MarkAllUnused()
		require.Zero(t, c.UnloadUnused())
	})
}

func TestLRUUnloadCallbackCanReenter(t *testing.T) {
	c := New[int]("test", 1, 10, 1)

	c.Add(1, func(int) {
		c.Remove(2)
	})
	c.Add(2, nil)
	c.Add(3, nil)
	c.MarkAllUnused()
	c.MarkUsed(2)
	c.MarkUsed(3)

	require.Equal(t, 1, c.UnloadUnused())
	require.False(t, c.Has(1))
	require.False(t, c.Has(2))
	require.True(t, c.Has(3))
}
