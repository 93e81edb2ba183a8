package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"medinearby/internal/models"
)

var ErrUnknownSource = errors.New("unknown source")

// Catalog is an immutable view of the merged provider set. Providers are
// ordered by declared source, then by their position in that source's snapshot.
type Catalog struct {
	providers []models.Provider
	index     map[models.Key]int
	version   uint64
	pending   []string
}

// Providers returns the merged providers. The slice is shared and must not be
// modified.
func (c Catalog) Providers() []models.Provider {
	return c.providers
}

func (c Catalog) Lookup(key models.Key) (models.Provider, bool) {
	i, ok := c.index[key]
	if !ok {
		return models.Provider{}, false
	}
	return c.providers[i], true
}

func (c Catalog) Len() int {
	return len(c.providers)
}

// Version increases by one on every applied snapshot.
func (c Catalog) Version() uint64 {
	return c.version
}

// Pending lists the declared sources that have not delivered a snapshot yet.
func (c Catalog) Pending() []string {
	return append([]string(nil), c.pending...)
}

// Complete reports whether every declared source has delivered at least once.
func (c Catalog) Complete() bool {
	return len(c.pending) == 0
}

// Merger owns the union of all sources' latest snapshots.
type Merger struct {
	mu            sync.Mutex
	specs         []SourceSpec
	order         map[string]int
	contributions map[string][]models.Provider
	current       Catalog

	listeners map[int]func(Catalog)
	nextID    int
}

func NewMerger(specs ...SourceSpec) *Merger {
	m := &Merger{
		specs:         append([]SourceSpec(nil), specs...),
		order:         make(map[string]int, len(specs)),
		contributions: make(map[string][]models.Provider, len(specs)),
		listeners:     make(map[int]func(Catalog)),
	}
	for i, s := range specs {
		m.order[s.ID] = i
	}
	m.current = m.build(0)
	return m
}

func (m *Merger) Specs() []SourceSpec {
	return append([]SourceSpec(nil), m.specs...)
}

func (m *Merger) Current() Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnChange registers fn to receive every newly published catalog. fn runs
// while the merger lock is held and must not call ApplySnapshot.
func (m *Merger) OnChange(fn func(Catalog)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// ApplySnapshot replaces everything sourceID contributed with items. The
// merged catalog is swapped in one step and then published. An empty items
// slice clears the source.
func (m *Merger) ApplySnapshot(sourceID string, items []models.Provider) error {
	if _, ok := m.order[sourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}

	contribution := dedupe(sourceID, items)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.contributions[sourceID] = contribution
	m.current = m.build(m.current.version + 1)

	log.Debug().
		Str("component", "catalog_merger").
		Str("source", sourceID).
		Int("items", len(contribution)).
		Int("catalog_size", m.current.Len()).
		Uint64("version", m.current.version).
		Msg("snapshot applied")

	for _, fn := range m.listeners {
		fn(m.current)
	}
	return nil
}

// dedupe keeps one provider per id: the last value at the first position.
// Providers without an id are dropped.
func dedupe(sourceID string, items []models.Provider) []models.Provider {
	out := make([]models.Provider, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, p := range items {
		if p.ID == "" {
			log.Warn().Str("component", "catalog_merger").Str("source", sourceID).Str("name", p.Name).Msg("dropping provider without id")
			continue
		}
		p.Source = sourceID
		if i, ok := seen[p.ID]; ok {
			out[i] = p
			continue
		}
		seen[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func (m *Merger) build(version uint64) Catalog {
	c := Catalog{
		index:   make(map[models.Key]int),
		version: version,
	}
	for _, s := range m.specs {
		items, ok := m.contributions[s.ID]
		if !ok {
			c.pending = append(c.pending, s.ID)
			continue
		}
		for _, p := range items {
			c.index[p.Key] = len(c.providers)
			c.providers = append(c.providers, p)
		}
	}
	return c
}
