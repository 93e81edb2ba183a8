package geo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"medinearby/internal/models"
)

// Resolution is the outcome of one Locate call.
type Resolution struct {
	Coordinate models.Coordinate
	Fallback   bool
	Seq        uint64
}

// Locator resolves the user's position. It never fails: any platform error
// resolves to the fallback coordinate.
type Locator struct {
	fallback models.Coordinate
	timeout  time.Duration

	mu        sync.Mutex
	inflight  int
	seq       uint64
	listeners []func(Resolution)
	status    []func(locating bool)
}

func NewLocator(fallback models.Coordinate, timeout time.Duration) *Locator {
	return &Locator{fallback: fallback, timeout: timeout}
}

// Locating reports whether any Locate call is in flight.
func (l *Locator) Locating() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight > 0
}

// OnResolve registers fn for every resolution, in the order calls resolve.
// Listeners run under the locator lock.
func (l *Locator) OnResolve(fn func(Resolution)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// OnStatus registers fn for changes of the locating flag.
func (l *Locator) OnStatus(fn func(locating bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = append(l.status, fn)
}

// Locate asks platform for the current position. A nil platform, an error,
// a denial or a timeout all yield the fallback coordinate. Concurrent calls
// are independent and the last one to resolve wins.
func (l *Locator) Locate(ctx context.Context, platform Platform) models.Coordinate {
	l.mu.Lock()
	l.inflight++
	if l.inflight == 1 {
		l.emitStatus(true)
	}
	l.mu.Unlock()

	res := Resolution{Coordinate: l.fallback, Fallback: true}
	if platform != nil {
		if c, err := l.query(ctx, platform); err != nil {
			log.Warn().Err(err).Str("component", "locator").Msg("geolocation failed, using fallback")
		} else {
			res = Resolution{Coordinate: c}
		}
	}

	l.mu.Lock()
	l.seq++
	res.Seq = l.seq
	for _, fn := range l.listeners {
		fn(res)
	}
	l.inflight--
	if l.inflight == 0 {
		l.emitStatus(false)
	}
	l.mu.Unlock()

	return res.Coordinate
}

type position struct {
	c   models.Coordinate
	err error
}

// query bounds the platform call by the locate timeout even when the
// platform ignores its context.
func (l *Locator) query(ctx context.Context, platform Platform) (models.Coordinate, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	done := make(chan position, 1)
	go func() {
		c, err := platform.CurrentPosition(ctx)
		done <- position{c: c, err: err}
	}()

	select {
	case p := <-done:
		return p.c, p.err
	case <-ctx.Done():
		return models.Coordinate{}, ctx.Err()
	}
}

// emitStatus must be called with l.mu held.
func (l *Locator) emitStatus(locating bool) {
	for _, fn := range l.status {
		fn(locating)
	}
}
