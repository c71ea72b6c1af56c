package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/snarg/contentgen/internal/feedback"
)

// Memory is the Store used when no DATABASE_URL is configured. The oldest
// generations are dropped beyond capacity.
type Memory struct {
	mu        sync.RWMutex
	capacity  int
	order     []uuid.UUID
	gens      map[uuid.UUID]*Generation
	feedbacks map[uuid.UUID][]feedback.Feedback
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 500
	}
	return &Memory{
		capacity:  capacity,
		gens:      make(map[uuid.UUID]*Generation),
		feedbacks: make(map[uuid.UUID][]feedback.Feedback),
	}
}

func (m *Memory) SaveGeneration(ctx context.Context, g *Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *g
	if _, ok := m.gens[g.ID]; !ok {
		m.order = append(m.order, g.ID)
	}
	m.gens[g.ID] = &cp

	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.gens, oldest)
		delete(m.feedbacks, oldest)
	}
	return nil
}

func (m *Memory) Generation(ctx context.Context, id uuid.UUID) (*Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

// ListGenerations returns the newest generations first.
func (m *Memory) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]Generation, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.gens[m.order[i]])
	}
	return out, nil
}

func (m *Memory) SaveFeedback(ctx context.Context, f feedback.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gens[f.GenerationID]; !ok {
		return ErrNotFound
	}
	m.feedbacks[f.GenerationID] = append(m.feedbacks[f.GenerationID], f)
	return nil
}

func (m *Memory) ListFeedback(ctx context.Context, generationID uuid.UUID) ([]feedback.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.gens[generationID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]feedback.Feedback, len(m.feedbacks[generationID]))
	copy(out, m.feedbacks[generationID])
	return out, nil
}
