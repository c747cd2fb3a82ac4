package course

import (
	"context"
	"sync"
)

// Repository provides read and import access to the course catalog.
type Repository interface {
	// List returns every course in a stable order (creation order).
	List(ctx context.Context) ([]Course, error)

	// GetByID returns the course with the given ID or ErrCourseNotFound.
	GetByID(ctx context.Context, id string) (*Course, error)

	// Upsert inserts the course or replaces an existing one with the same ID.
	// Returns true when the course was newly inserted.
	Upsert(ctx context.Context, c *Course) (bool, error)
}

// Decider inspects a course and the other currently flagged courses and
// returns the promotion state to persist. Returning an error aborts the write.
type Decider func(target Course, others []Course) (Promotion, error)

// PromotionStore performs the count-decide-write sequence of a promotion
// change as one atomic step.
type PromotionStore interface {
	// UpdatePromotion loads the target course and every other course carrying
	// a promotion flag, calls decide, and persists the returned promotion.
	// No other promotion write can interleave between the read and the write.
	// Errors returned by decide are passed through unchanged.
	UpdatePromotion(ctx context.Context, id string, decide Decider) (*Course, error)
}

// Store combines catalog access and atomic promotion writes.
type Store interface {
	Repository
	PromotionStore
}

// InMemoryRepository is an in-memory implementation of Store.
// Used for tests and for running without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	courses map[string]*Course
	order   []string
}

// NewInMemoryRepository creates an in-memory store seeded with the given courses.
func NewInMemoryRepository(courses ...Course) *InMemoryRepository {
	r := &InMemoryRepository{
		courses: make(map[string]*Course),
	}
	for i := range courses {
		r.put(&courses[i])
	}
	return r
}

// List returns copies of every course in insertion order.
func (r *InMemoryRepository) List(ctx context.Context) ([]Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Course, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.courses[id].Clone())
	}
	return result, nil
}

// GetByID returns a copy of the course with the given ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.courses[id]
	if !ok {
		return nil, ErrCourseNotFound
	}
	return c.Clone(), nil
}

// Upsert stores a copy of the course.
func (r *InMemoryRepository) Upsert(ctx context.Context, c *Course) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.put(c), nil
}

// UpdatePromotion holds the write lock across decide and the write.
func (r *InMemoryRepository) UpdatePromotion(ctx context.Context, id string, decide Decider) (*Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.courses[id]
	if !ok {
		return nil, ErrCourseNotFound
	}

	var others []Course
	for _, otherID := range r.order {
		if otherID == id {
			continue
		}
		other := r.courses[otherID]
		if other.Promotion().Flagged() {
			others = append(others, *other.Clone())
		}
	}

	promo, err := decide(*target.Clone(), others)
	if err != nil {
		return nil, err
	}

	target.ApplyPromotion(promo)
	return target.Clone(), nil
}

func (r *InMemoryRepository) put(c *Course) bool {
	_, exists := r.courses[c.ID]
	if !exists {
		r.order = append(r.order, c.ID)
	}
	r.courses[c.ID] = c.Clone()
	return !exists
}
