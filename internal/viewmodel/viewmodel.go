// Package viewmodel is the only surface presentation code talks to. It keeps
// the ranked results in step with the catalog, the filter criteria and the
// user coordinate, and exposes the shared selection.
package viewmodel

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"medinearby/internal/calculator"
	"medinearby/internal/catalog"
	"medinearby/internal/geo"
	"medinearby/internal/models"
	"medinearby/internal/selection"
)

// State is a read-only projection handed to the UI.
type State struct {
	Results     []models.RankedResult `json:"results"`
	Loading     bool                  `json:"loading"`
	Locating    bool                  `json:"locating"`
	Selected    *models.RankedResult  `json:"selected,omitempty"`
	Criteria    models.Criteria       `json:"criteria"`
	User        *models.Coordinate    `json:"user,omitempty"`
	RadiusKm    float64               `json:"radius_km"`
	CatalogSize int                   `json:"catalog_size"`
	Version     uint64                `json:"version"`
}

type ViewModel struct {
	engine    *calculator.Engine
	locator   *geo.Locator
	selection *selection.Coordinator

	mu          sync.Mutex
	catalog     catalog.Catalog
	haveCatalog bool
	criteria    models.Criteria
	user        *models.Coordinate
	locating    bool
	results     []models.RankedResult
	version     uint64
	recomputes  uint64

	watchers map[int]chan State
	nextID   int
}

// New wires a view model to merger and locator. Results are computed once
// immediately and then on every relevant change.
func New(merger *catalog.Merger, engine *calculator.Engine, locator *geo.Locator) *ViewModel {
	vm := &ViewModel{
		engine:    engine,
		locator:   locator,
		selection: selection.NewCoordinator(),
		criteria:  models.Criteria{Category: models.CategoryAll},
		watchers:  make(map[int]chan State),
	}

	// Subscribe before reading the current catalog so no snapshot is missed;
	// onCatalog ignores anything older than what it already holds.
	merger.OnChange(vm.onCatalog)
	locator.OnResolve(vm.onLocation)
	locator.OnStatus(vm.onLocating)

	current := merger.Current()
	vm.mu.Lock()
	if !vm.haveCatalog || current.Version() > vm.catalog.Version() {
		vm.catalog = current
		vm.haveCatalog = true
		vm.recomputeLocked()
	}
	vm.mu.Unlock()
	return vm
}

func (vm *ViewModel) onCatalog(c catalog.Catalog) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.haveCatalog && c.Version() < vm.catalog.Version() {
		return
	}
	vm.catalog = c
	vm.haveCatalog = true
	vm.recomputeLocked()
	vm.publishLocked()
}

func (vm *ViewModel) onLocation(r geo.Resolution) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	c := r.Coordinate
	vm.user = &c
	vm.recomputeLocked()
	vm.publishLocked()
}

func (vm *ViewModel) onLocating(locating bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.locating == locating {
		return
	}
	vm.locating = locating
	vm.bumpLocked()
	vm.publishLocked()
}

// SetQuery replaces the free-text query. An unchanged query does not recompute.
func (vm *ViewModel) SetQuery(query string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.criteria.Query == query {
		return
	}
	vm.criteria.Query = query
	vm.recomputeLocked()
	vm.publishLocked()
}

// SetCategory replaces the category filter. "", "All" and "All Specialties"
// all mean no category filter.
func (vm *ViewModel) SetCategory(category string) {
	if models.IsAllCategories(category) {
		category = models.CategoryAll
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.criteria.Category == category {
		return
	}
	vm.criteria.Category = category
	vm.recomputeLocked()
	vm.publishLocked()
}

// Locate resolves the user position through platform. The coordinate is
// applied to the view model before Locate returns.
func (vm *ViewModel) Locate(ctx context.Context, platform geo.Platform) models.Coordinate {
	return vm.locator.Locate(ctx, platform)
}

// Select makes key the shared selection.
func (vm *ViewModel) Select(key models.Key) {
	vm.selection.Select(key)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.bumpLocked()
	vm.publishLocked()
}

// ClearSelection drops the shared selection.
func (vm *ViewModel) ClearSelection() {
	vm.selection.Clear()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.bumpLocked()
	vm.publishLocked()
}

func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stateLocked()
}

// User returns the current user coordinate, nil until one has resolved.
func (vm *ViewModel) User() *models.Coordinate {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.user == nil {
		return nil
	}
	u := *vm.user
	return &u
}

// Catalog returns the catalog the current results were computed from.
func (vm *ViewModel) Catalog() catalog.Catalog {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.catalog
}

// Recomputes counts how many times results have been recomputed.
func (vm *ViewModel) Recomputes() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.recomputes
}

// Watch returns a channel that always holds the newest undelivered state.
// The current state is sent first. The channel closes when ctx ends.
func (vm *ViewModel) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	vm.mu.Lock()
	id := vm.nextID
	vm.nextID++
	vm.watchers[id] = ch
	ch <- vm.stateLocked()
	vm.mu.Unlock()

	go func() {
		<-ctx.Done()
		vm.mu.Lock()
		delete(vm.watchers, id)
		close(ch)
		vm.mu.Unlock()
	}()
	return ch
}

func (vm *ViewModel) recomputeLocked() {
	vm.results = vm.engine.Recompute(vm.catalog.Providers(), vm.criteria, vm.user)
	vm.recomputes++
	vm.bumpLocked()

	log.Debug().
		Str("component", "viewmodel").
		Int("catalog_size", vm.catalog.Len()).
		Int("results", len(vm.results)).
		Str("query", vm.criteria.Query).
		Str("category", vm.criteria.Category).
		Bool("located", vm.user != nil).
		Msg("results recomputed")
}

func (vm *ViewModel) bumpLocked() {
	vm.version++
}

func (vm *ViewModel) stateLocked() State {
	s := State{
		Results:     append([]models.RankedResult(nil), vm.results...),
		Loading:     !vm.catalog.Complete(),
		Locating:    vm.locating,
		Criteria:    vm.criteria,
		RadiusKm:    vm.engine.RadiusKm,
		CatalogSize: vm.catalog.Len(),
		Version:     vm.version,
	}
	if s.Results == nil {
		s.Results = []models.RankedResult{}
	}
	if vm.user != nil {
		u := *vm.user
		s.User = &u
	}
	if p, ok := vm.selection.Current(vm.catalog); ok {
		sel := models.RankedResult{Provider: p, Distance: vm.engine.Distance(p, vm.user)}
		if sel.Distance != nil && math.IsInf(*sel.Distance, 1) {
			sel.Distance = nil
		}
		s.Selected = &sel
	}
	return s
}

// publishLocked replaces whatever a watcher has not consumed yet with the
// newest state.
func (vm *ViewModel) publishLocked() {
	if len(vm.watchers) == 0 {
		return
	}
	s := vm.stateLocked()
	for _, ch := range vm.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
