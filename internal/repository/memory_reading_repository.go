package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// MemoryReadingRepository keeps readings in process memory.
type MemoryReadingRepository struct {
	mu       sync.RWMutex
	readings []*Reading
	clock    clock.Clock
}

// NewMemoryReadingRepository returns an empty repository. A nil clock uses wall time.
func NewMemoryReadingRepository(c clock.Clock) *MemoryReadingRepository {
	if c == nil {
		c = clock.New()
	}
	return &MemoryReadingRepository{clock: c}
}

func (r *MemoryReadingRepository) Save(_ context.Context, reading *Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	reading.CreatedAt = r.clock.Now().UTC()
	stored := *reading
	r.readings = append(r.readings, &stored)
	return nil
}

func (r *MemoryReadingRepository) FindByPlate(_ context.Context, plate string, limit int) ([]*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Reading
	for i := len(r.readings) - 1; i >= 0; i-- {
		if r.readings[i].Plate != plate {
			continue
		}
		c := *r.readings[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrReadingNotFound
	}
	return out, nil
}

func (r *MemoryReadingRepository) FindBySession(_ context.Context, sessionID string) ([]*Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Reading
	for _, stored := range r.readings {
		if stored.SessionID == sessionID {
			c := *stored
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
