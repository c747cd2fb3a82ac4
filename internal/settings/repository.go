// Package settings stores the singleton ranking settings record and resolves
// the settings in effect for ranking and promotion calls.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/onnwee/courserank/internal/ranking"
)

// ErrSettingsNotFound is returned when no settings record has been stored.
var ErrSettingsNotFound = errors.New("settings not found")

// Repository persists the singleton settings record.
type Repository interface {
	// Get returns the stored settings or ErrSettingsNotFound.
	Get(ctx context.Context) (*ranking.Settings, error)

	// Save validates and upserts the settings record.
	Save(ctx context.Context, s *ranking.Settings) error
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	settings *ranking.Settings
}

// NewInMemoryRepository creates an empty in-memory settings repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Get returns a copy of the stored settings.
func (r *InMemoryRepository) Get(ctx context.Context) (*ranking.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return nil, ErrSettingsNotFound
	}
	copied := *r.settings
	return &copied, nil
}

// Save stores a copy of the settings.
func (r *InMemoryRepository) Save(ctx context.Context, s *ranking.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *s
	r.settings = &copied
	return nil
}
