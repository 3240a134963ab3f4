package tiles

// Tree is an arena of tiles. Tiles are indexed by their id, which stays
// stable for the tile lifetime.
type Tree struct {
	ids   IDGenerator
	root  *Tile
	tiles []*Tile
	count int
}

// NewTree creates a tree from the given root and registers all its
// descendants.
func NewTree(root *Tile) *Tree {
	t := &Tree{root: root}
	root.Parent = nil
	root.Depth = 0
	t.register(root)
	return t
}

// Root returns the tree root.
func (t *Tree) Root() *Tile {
	return t.root
}

// Tile returns the tile with the given id.
func (t *Tree) Tile(id int) (*Tile, bool) {
	if id < 0 || id >= len(t.tiles) || t.tiles[id] == nil {
		return nil, false
	}
	return t.tiles[id], true
}

// Len returns the number of tiles in the tree.
func (t *Tree) Len() int {
	return t.count
}

// Cap returns the size of the id space. Side tables indexed by tile id need
// at least that many slots.
func (t *Tree) Cap() int {
	return len(t.tiles)
}

// Splice attaches the root of an external tileset under the tile that
// references it.
func (t *Tree) Splice(parent, sub *Tile) {
	parent.AddChild(sub)
	t.register(sub)
}

// Prune removes the children of the given tile from the tree and recycles
// their ids. It is used when an external tileset tile is disposed.
func (t *Tree) Prune(parent *Tile) {
	for _, c := range parent.Children {
		Walk(c, func(tile *Tile) bool {
			if tile.ID < len(t.tiles) && t.tiles[tile.ID] == tile {
				t.tiles[tile.ID] = nil
				t.count--
				t.ids.Reuse(tile.ID)
			}
			tile.Parent = nil
			return true
		})
	}
	parent.Children = nil
}

func (t *Tree) register(sub *Tile) {
	Walk(sub, func(tile *Tile) bool {
		if tile.Parent != nil {
			tile.Depth = tile.Parent.Depth + 1
		}

		tile.ID = t.ids.New()
		for len(t.tiles) <= tile.ID {
			t.tiles = append(t.tiles, nil)
		}
		t.tiles[tile.ID] = tile
		t.count++
		return true
	})
}

// Walk visits the given tile and its descendants in depth first pre-order
// using an explicit stack. Children of a tile are skipped when visit returns
// false.
func Walk(root *Tile, visit func(*Tile) bool) {
	stack := []*Tile{root}

	for len(stack) != 0 {
		tile := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(tile) {
			continue
		}

		for i := len(tile.Children) - 1; i >= 0; i-- {
			stack = append(stack, tile.Children[i])
		}
	}
}
