package tiles

import "sync"

// IDGenerator allocates tile ids. Ids released with Reuse are handed out again
// before new ones so that side tables indexed by id stay compact.
type IDGenerator struct {
	mutex       sync.Mutex
	next        int
	reusableIDs []int
}

// New returns an unused id.
func (g *IDGenerator) New() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.reusableIDs); n != 0 {
		id := g.reusableIDs[n-1]
		g.reusableIDs = g.reusableIDs[:n-1]
		return id
	}

	id := g.next
	g.next++
	return id
}

// Reuse marks the given id as reusable. Reusable ids are returned in priority
// when using New.
func (g *IDGenerator) Reuse(id int) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.reusableIDs = append(g.reusableIDs, id)
}

// Cap returns the upper bound of the ids handed out so far.
func (g *IDGenerator) Cap() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.next
}
