package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tattty/internal/domain"
)

// DefaultIdleTTL is how long an untouched session stays in memory.
const DefaultIdleTTL = 72 * time.Hour

type entry struct {
	store    *Store
	lastUsed time.Time
}

// Registry keeps one Store per session id. Drafts are restored from the persister the
// first time a session is touched. Sessions idle for longer than the idle TTL are
// dropped from memory; their text and options survive in the persister.
type Registry struct {
	persister domain.DraftRepository
	log       zerolog.Logger
	idleTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	stores    map[string]*entry
	nextSweep time.Time
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL overrides DefaultIdleTTL. Non-positive values are ignored.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithRegistryClock overrides the time source used for idle tracking.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(persister domain.DraftRepository, logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		persister: persister,
		log:       logger,
		idleTTL:   DefaultIdleTTL,
		now:       time.Now,
		stores:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the store for id, creating it on first use. A failed restore is logged
// and the session starts empty.
func (r *Registry) Get(ctx context.Context, id string) *Store {
	if s, ok := r.cached(id); ok {
		return s
	}
	initial, _ := r.load(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.stores[id]; ok {
		e.lastUsed = now
		return e.store
	}
	r.maybeSweep(now)
	s := NewStore(id, StoreOptions{Persister: r.persister, Logger: r.log, Initial: initial})
	r.stores[id] = &entry{store: s, lastUsed: now}
	return s
}

// Peek returns the current draft for id without registering the session. Unknown
// sessions read as an empty draft.
func (r *Registry) Peek(ctx context.Context, id string) domain.Draft {
	if s, ok := r.cached(id); ok {
		return s.Get()
	}
	if d, ok := r.load(ctx, id); ok {
		return d.Clone()
	}
	return domain.Draft{}
}

// Delete drops the session from memory and from the persister.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.stores, id)
	r.mu.Unlock()
	if r.persister == nil {
		return nil
	}
	return r.persister.Delete(ctx, id)
}

// Len reports how many sessions are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep evicts every session idle for longer than the idle TTL and reports how many
// were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweep(r.now())
}

func (r *Registry) cached(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stores[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.store, true
}

func (r *Registry) load(ctx context.Context, id string) (*domain.Draft, bool) {
	if r.persister == nil {
		return nil, false
	}
	d, err := r.persister.Load(ctx, id)
	switch {
	case err == nil:
		return d, true
	case errors.Is(err, domain.ErrNotFound):
	default:
		r.log.Warn().Err(err).Str("session_id", id).Msg("draft restore failed")
	}
	return nil, false
}

// maybeSweep runs a sweep at most once per tenth of the idle TTL. Callers hold r.mu.
func (r *Registry) maybeSweep(now time.Time) {
	if now.Before(r.nextSweep) {
		return
	}
	r.nextSweep = now.Add(r.idleTTL / 10)
	if n := r.sweep(now); n > 0 {
		r.log.Debug().Int("evicted", n).Msg("idle drafts evicted")
	}
}

func (r *Registry) sweep(now time.Time) int {
	evicted := 0
	for id, e := range r.stores {
		if now.Sub(e.lastUsed) > r.idleTTL {
			delete(r.stores, id)
			evicted++
		}
	}
	return evicted
}
