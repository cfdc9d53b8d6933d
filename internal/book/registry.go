package book

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// VenueOptions carries the per-venue book policy resolved from configuration.
type VenueOptions struct {
	Decentralized bool
	Truncate      TruncatePolicy
}

// Registry owns every live OrderBook, keyed by (venue, trading pair). It is
// constructed once by the composition root and injected into consumers; there
// is no global instance.
type Registry struct {
	mu        sync.RWMutex
	books     map[string]*OrderBook
	venues    map[string]VenueOptions
	publisher TradePublisher
}

// NewRegistry creates a Registry. venues maps venue names to their book
// policy; venues absent from the map get centralized defaults. publisher is
// handed to every book created through GetOrCreate and may be nil.
func NewRegistry(venues map[string]VenueOptions, publisher TradePublisher) *Registry {
	if venues == nil {
		venues = make(map[string]VenueOptions)
	}
	return &Registry{
		books:     make(map[string]*OrderBook),
		venues:    venues,
		publisher: publisher,
	}
}

func bookKey(venue, pair string) string { return venue + "/" + pair }

// GetOrCreate returns the book for (venue, pair), creating it with the
// venue's policy on first use.
func (r *Registry) GetOrCreate(venue, pair string) *OrderBook {
	key := bookKey(venue, pair)

	r.mu.RLock()
	ob, ok := r.books[key]
	r.mu.RUnlock()
	if ok {
		return ob
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ob, ok := r.books[key]; ok {
		return ob
	}

	venueOpts := r.venues[venue]
	ob = New(venue, pair, Options{
		Decentralized: venueOpts.Decentralized,
		Truncate:      venueOpts.Truncate,
		Publisher:     r.publisher,
	})
	r.books[key] = ob
	return ob
}

// Get returns the book for (venue, pair), or domain.ErrUnknownBook when the
// pair is not tracked.
func (r *Registry) Get(venue, pair string) (*OrderBook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ob, ok := r.books[bookKey(venue, pair)]
	if !ok {
		return nil, domain.ErrUnknownBook
	}
	return ob, nil
}

// Remove stops tracking (venue, pair). The book holds no resources beyond its
// collections, so removal is just deletion from the map.
func (r *Registry) Remove(venue, pair string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, bookKey(venue, pair))
}

// List returns the tracked (venue, pair) keys, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.books))
	for k := range r.books {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of tracked books.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
