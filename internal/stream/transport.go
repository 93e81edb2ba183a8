// Package stream delivers full catalog snapshots from upstream sources.
package stream

import (
	"medinearby/internal/models"
)

// SnapshotFunc receives the complete current record set of one source.
type SnapshotFunc func(records []models.RawRecord)

// Unsubscribe stops delivery to a SnapshotFunc. It is safe to call more than once.
type Unsubscribe func()

// Transport is a live subscription capability keyed by source id.
// Snapshots for one source are delivered in publication order.
type Transport interface {
	Subscribe(sourceID string, fn SnapshotFunc) (Unsubscribe, error)
}
