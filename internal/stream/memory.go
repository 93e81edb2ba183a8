package stream

import (
	"sync"

	"medinearby/internal/models"
)

// Memory is an in-process Transport. The latest snapshot of every source is
// retained and replayed to new subscribers.
type Memory struct {
	mu          sync.Mutex
	latest      map[string][]models.RawRecord
	subscribers map[string]map[int]SnapshotFunc
	nextID      int
}

func NewMemory() *Memory {
	return &Memory{
		latest:      make(map[string][]models.RawRecord),
		subscribers: make(map[string]map[int]SnapshotFunc),
	}
}

// Publish replaces the snapshot of sourceID and delivers it to every subscriber.
// Delivery happens under the transport lock, which keeps per-source ordering.
func (m *Memory) Publish(sourceID string, records []models.RawRecord) {
	snapshot := append([]models.RawRecord(nil), records...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest[sourceID] = snapshot
	for _, fn := range m.subscribers[sourceID] {
		fn(snapshot)
	}
}

func (m *Memory) Subscribe(sourceID string, fn SnapshotFunc) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	if m.subscribers[sourceID] == nil {
		m.subscribers[sourceID] = make(map[int]SnapshotFunc)
	}
	m.subscribers[sourceID][id] = fn

	if snapshot, ok := m.latest[sourceID]; ok {
		fn(snapshot)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers[sourceID], id)
			if len(m.subscribers[sourceID]) == 0 {
				delete(m.subscribers, sourceID)
			}
		})
	}, nil
}
