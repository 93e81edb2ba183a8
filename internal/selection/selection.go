package selection

import (
	"sync"

	"medinearby/internal/models"
)

// Lookup resolves a key against a catalog.
type Lookup interface {
	Lookup(key models.Key) (models.Provider, bool)
}

// Coordinator holds the one selected provider shared by list and map views.
// It stores identity only and resolves it against the catalog on every read,
// so catalog updates never clear it.
type Coordinator struct {
	mu       sync.RWMutex
	key      models.Key
	selected bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) Select(key models.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.selected = true
}

func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = models.Key{}
	c.selected = false
}

func (c *Coordinator) Key() (models.Key, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key, c.selected
}

// Current returns the live provider for the selected key. A key that no
// longer exists in catalog resolves to none.
func (c *Coordinator) Current(catalog Lookup) (models.Provider, bool) {
	key, ok := c.Key()
	if !ok {
		return models.Provider{}, false
	}
	return catalog.Lookup(key)
}
