package admission

import (
	"path/filepath"
	"sync"
)

// Gate serializes admission and write per storage root. The zero value is
// ready to use; a nil *Gate does not serialize anything.
type Gate struct {
	roots sync.Map // cleaned root -> *sync.Mutex
}

// Lock blocks until root is free and returns the matching unlock function.
func (g *Gate) Lock(root string) (unlock func()) {
	if g == nil {
		return func() {}
	}

	v, _ := g.roots.LoadOrStore(filepath.Clean(root), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
