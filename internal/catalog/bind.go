package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"medinearby/internal/models"
	"medinearby/internal/stream"
)

// Bind subscribes specs (every declared source of m when none are given) on
// transport and folds each delivered snapshot into m. The returned stop func
// (also run when ctx ends) cancels all subscriptions.
func Bind(ctx context.Context, transport stream.Transport, m *Merger, specs ...SourceSpec) (func(), error) {
	if len(specs) == 0 {
		specs = m.Specs()
	}

	var unsubs []stream.Unsubscribe
	stopAll := func() {
		for _, u := range unsubs {
			u()
		}
	}

	for _, spec := range specs {
		spec := spec
		unsub, err := transport.Subscribe(spec.ID, func(records []models.RawRecord) {
			if err := m.ApplySnapshot(spec.ID, spec.Stamp(records)); err != nil {
				log.Error().Err(err).Str("source", spec.ID).Msg("failed to apply snapshot")
			}
		})
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("failed to subscribe source %s: %w", spec.ID, err)
		}
		unsubs = append(unsubs, unsub)
	}

	var once sync.Once
	stop := func() { once.Do(stopAll) }

	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}
