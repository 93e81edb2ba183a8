package stream

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"medinearby/internal/excel"
	"medinearby/internal/models"
)

// File is a Transport backed by an xlsx workbook with one sheet per source.
// The workbook is read on subscribe and again on every Reload.
type File struct {
	path string

	mu          sync.Mutex
	subscribers map[string]map[int]SnapshotFunc
	nextID      int
}

func NewFile(path string) *File {
	return &File{
		path:        path,
		subscribers: make(map[string]map[int]SnapshotFunc),
	}
}

func (f *File) read(sourceID string) ([]models.RawRecord, error) {
	wb, err := excel.OpenFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", f.path, err)
	}
	defer wb.Close()

	records, err := excel.ReadSheet(wb, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sourceID, err)
	}
	return records, nil
}

func (f *File) Subscribe(sourceID string, fn SnapshotFunc) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read(sourceID)
	if err != nil {
		return nil, err
	}

	id := f.nextID
	f.nextID++
	if f.subscribers[sourceID] == nil {
		f.subscribers[sourceID] = make(map[int]SnapshotFunc)
	}
	f.subscribers[sourceID][id] = fn
	fn(records)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subscribers[sourceID], id)
		})
	}, nil
}

// Reload re-reads every subscribed sheet and redelivers it. Sheets that fail
// to read keep their previous snapshot.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for sourceID, subs := range f.subscribers {
		if len(subs) == 0 {
			continue
		}
		records, err := f.read(sourceID)
		if err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("workbook reload failed")
			errs = append(errs, err)
			continue
		}
		for _, fn := range subs {
			fn(records)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors reloading workbook: %v", errs)
	}
	return nil
}
