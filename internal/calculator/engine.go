package calculator

import (
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"medinearby/internal/models"
)

// parallelThreshold is the catalog size above which distances are computed in
// per-CPU chunks.
const parallelThreshold = 2048

// Engine filters and ranks a catalog. It holds configuration only, so a single
// Engine may be shared between goroutines.
type Engine struct {
	RadiusKm float64
}

func NewEngine(radiusKm float64) *Engine {
	return &Engine{RadiusKm: radiusKm}
}

// Recompute runs category filter, text filter, distance and radius+sort in that
// order. With a nil user coordinate the filtered providers come back in catalog
// order without distances.
func (e *Engine) Recompute(catalog []models.Provider, criteria models.Criteria, user *models.Coordinate) []models.RankedResult {
	filtered := make([]models.RankedResult, 0, len(catalog))
	matcher := newQueryMatcher(criteria.Query)

	for _, p := range catalog {
		if !models.IsAllCategories(criteria.Category) && p.Category != criteria.Category {
			continue
		}
		if !matcher.match(p) {
			continue
		}
		filtered = append(filtered, models.RankedResult{Provider: p})
	}

	if user == nil {
		return filtered
	}

	distances := computeDistances(filtered, *user)

	results := filtered[:0]
	for i, r := range filtered {
		d := distances[i]
		if d > e.RadiusKm {
			continue
		}
		r.Distance = &d
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].Distance < *results[j].Distance
	})
	return results
}

// Distance returns the distance of p from user, nil when user is unknown and
// +Inf when p has no usable coordinate.
func (e *Engine) Distance(p models.Provider, user *models.Coordinate) *float64 {
	if user == nil {
		return nil
	}
	d := providerDistance(p, *user)
	return &d
}

func providerDistance(p models.Provider, user models.Coordinate) float64 {
	if p.Location == nil || !p.Location.Valid() {
		return math.Inf(1)
	}
	return Haversine(user, *p.Location)
}

func computeDistances(items []models.RankedResult, user models.Coordinate) []float64 {
	total := len(items)
	distances := make([]float64, total)

	if total < parallelThreshold {
		for i, r := range items {
			distances[i] = providerDistance(r.Provider, user)
		}
		return distances
	}

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunkSize := (total + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	for i := 0; i < numCPU; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for idx := s; idx < e; idx++ {
				distances[idx] = providerDistance(items[idx].Provider, user)
			}
		}(start, end)
	}
	wg.Wait()

	return distances
}

// queryMatcher owns its Caser; Casers are stateful and must not be shared.
type queryMatcher struct {
	caser  cases.Caser
	needle string
}

func newQueryMatcher(query string) *queryMatcher {
	m := &queryMatcher{caser: cases.Fold()}
	m.needle = m.fold(strings.TrimSpace(query))
	return m
}

func (m *queryMatcher) fold(s string) string {
	return m.caser.String(norm.NFKC.String(s))
}

// match checks name, category and clinic. Empty fields never match.
func (m *queryMatcher) match(p models.Provider) bool {
	if m.needle == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Category, p.Clinic} {
		if field == "" {
			continue
		}
		if strings.Contains(m.fold(field), m.needle) {
			return true
		}
	}
	return false
}
