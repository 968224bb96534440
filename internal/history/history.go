// Package history records consultations: the user input and the raw
// generated response. Structured results are derived again on read.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("consultation not found")

type Kind string

const (
	KindPrediction Kind = "prediction"
	KindReport     Kind = "report"
)

type Consultation struct {
	ID        string    `json:"id" db:"id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Input     string    `json:"input" db:"input"`
	Source    string    `json:"source,omitempty" db:"source"`
	Raw       string    `json:"raw" db:"raw"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Store interface {
	Save(ctx context.Context, c *Consultation) error
	Get(ctx context.Context, id string) (Consultation, error)
	List(ctx context.Context, limit int) ([]Consultation, error)
	Close() error
}

const defaultListLimit = 50

// prepare assigns an ID and timestamp to a new consultation.
func prepare(c *Consultation, now func() time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now().UTC()
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}

// MemoryStore keeps consultations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Consultation
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Consultation), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, c *Consultation) error {
	prepare(c, m.now)
	m.mu.Lock()
	m.items[c.ID] = *c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return Consultation{}, ErrNotFound
	}
	return c, nil
}

// List returns the newest consultations first.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Consultation, error) {
	m.mu.RLock()
	out := make([]Consultation, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
