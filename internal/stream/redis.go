package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"medinearby/internal/models"
)

// Snapshot is the wire form of one source's catalog on Redis.
type Snapshot struct {
	Source      string             `json:"source"`
	Records     []models.RawRecord `json:"records"`
	PublishedAt time.Time          `json:"published_at"`
}

// Redis is a Transport over Redis Pub/Sub. The latest snapshot of each source
// is also stored under a key so that new subscribers start from current state.
type Redis struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	subs   map[*redis.PubSub]context.CancelFunc
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	return &Redis{
		client: client,
		prefix: prefix,
		subs:   make(map[*redis.PubSub]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Redis) channel(sourceID string) string {
	return r.prefix + sourceID
}

func (r *Redis) snapshotKey(sourceID string) string {
	return r.prefix + sourceID + ":snapshot"
}

// Publish stores the snapshot and announces it on the source channel.
func (r *Redis) Publish(ctx context.Context, sourceID string, records []models.RawRecord) error {
	if records == nil {
		records = []models.RawRecord{}
	}
	data, err := json.Marshal(Snapshot{Source: sourceID, Records: records, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.snapshotKey(sourceID), data, 0)
	pipe.Publish(ctx, r.channel(sourceID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish snapshot for %s: %w", sourceID, err)
	}
	return nil
}

func (r *Redis) Subscribe(sourceID string, fn SnapshotFunc) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(r.ctx)

	pubsub := r.client.Subscribe(ctx, r.channel(sourceID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel(sourceID), err)
	}

	r.mu.Lock()
	r.subs[pubsub] = cancel
	r.mu.Unlock()

	go r.receive(ctx, sourceID, pubsub, fn)

	var once sync.Once
	return func() {
		once.Do(func() { r.release(pubsub) })
	}, nil
}

// receive delivers the stored snapshot first, then every published one, all
// from this goroutine so per-source order holds.
func (r *Redis) receive(ctx context.Context, sourceID string, pubsub *redis.PubSub, fn SnapshotFunc) {
	logger := log.With().Str("component", "redis_transport").Str("source", sourceID).Logger()

	data, err := r.client.Get(ctx, r.snapshotKey(sourceID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		logger.Warn().Err(err).Msg("failed to load stored snapshot")
	default:
		if snap, err := DecodeSnapshot(data); err != nil {
			logger.Warn().Err(err).Msg("discarding stored snapshot")
		} else {
			fn(snap.Records)
		}
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			snap, err := DecodeSnapshot([]byte(msg.Payload))
			if err != nil {
				logger.Warn().Err(err).Msg("discarding malformed snapshot")
				continue
			}
			logger.Debug().Int("records", len(snap.Records)).Msg("snapshot received")
			fn(snap.Records)
		}
	}
}

func (r *Redis) release(pubsub *redis.PubSub) {
	r.mu.Lock()
	cancel, ok := r.subs[pubsub]
	delete(r.subs, pubsub)
	r.mu.Unlock()

	if ok {
		cancel()
		_ = pubsub.Close()
	}
}

// Close stops every subscription created by this transport.
func (r *Redis) Close() error {
	r.cancel()

	r.mu.Lock()
	subs := make([]*redis.PubSub, 0, len(r.subs))
	for pubsub := range r.subs {
		subs = append(subs, pubsub)
	}
	r.mu.Unlock()

	for _, pubsub := range subs {
		r.release(pubsub)
	}
	return nil
}

// DecodeSnapshot parses a snapshot payload. A null record list is an empty snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Records == nil {
		snap.Records = []models.RawRecord{}
	}
	return snap, nil
}
