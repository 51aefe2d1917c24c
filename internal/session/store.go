// Package session holds the in-progress draft of each generation session and mirrors it
// to durable storage.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tattty/internal/catalog"
	"tattty/internal/domain"
)

const persistTimeout = 3 * time.Second

// Observer is called with a snapshot of the draft after every change.
type Observer func(domain.Draft)

// Store is the single source of truth for one session's draft. Setters never validate;
// content rules are enforced at finalization.
type Store struct {
	id        string
	persister domain.DraftRepository
	log       zerolog.Logger

	mu        sync.Mutex
	draft     domain.Draft
	version   uint64
	observers map[int]Observer
	nextObs   int

	persistMu sync.Mutex
	persisted uint64
}

type StoreOptions struct {
	Persister domain.DraftRepository
	Logger    zerolog.Logger
	Initial   *domain.Draft
}

func NewStore(id string, opts StoreOptions) *Store {
	s := &Store{
		id:        id,
		persister: opts.Persister,
		log:       opts.Logger.With().Str("session_id", id).Logger(),
		observers: make(map[int]Observer),
	}
	if opts.Initial != nil {
		s.draft = opts.Initial.Clone()
	}
	return s
}

// ID returns the session id the store was created for.
func (s *Store) ID() string { return s.id }

// Get returns a deep copy of the current draft.
func (s *Store) Get() domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Store) SetQuestionOne(text string) {
	s.update(func(d *domain.Draft) { d.QuestionOne = text })
}

func (s *Store) SetQuestionTwo(text string) {
	s.update(func(d *domain.Draft) { d.QuestionTwo = text })
}

// SetOption stores value under the named option field. Field names accept the catalog
// aliases understood by catalog.ParseKind. The value itself is not checked.
func (s *Store) SetOption(field, value string) error {
	kind, ok := catalog.ParseKind(field)
	if !ok {
		return fmt.Errorf("session: unknown option field %q", field)
	}
	s.update(func(d *domain.Draft) {
		switch kind {
		case catalog.KindStyle:
			d.Style = value
		case catalog.KindPlacement:
			d.Placement = value
		case catalog.KindSize:
			d.Size = value
		case catalog.KindColor:
			d.Color = value
		case catalog.KindMood:
			d.Mood = value
		case catalog.KindAspectRatio:
			d.AspectRatio = value
		case catalog.KindOutputType:
			d.OutputType = value
		case catalog.KindModel:
			d.Model = value
		}
	})
	return nil
}

// SetImages replaces the image list. The store keeps its own copy.
func (s *Store) SetImages(imgs []domain.Image) {
	cloned := make([]domain.Image, len(imgs))
	for i, img := range imgs {
		cloned[i] = img.Clone()
	}
	s.update(func(d *domain.Draft) { d.Images = cloned })
}

// Reset clears the draft back to its zero value.
func (s *Store) Reset() {
	s.update(func(d *domain.Draft) { *d = domain.Draft{} })
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// update mutates the draft under the lock, then notifies observers and persists the
// result with the lock released.
func (s *Store) update(mutate func(*domain.Draft)) {
	s.mu.Lock()
	mutate(&s.draft)
	s.version++
	snapshot := s.draft.Clone()
	observers := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if obs, ok := s.observers[i]; ok {
			observers = append(observers, obs)
		}
	}
	s.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot.Clone())
	}
	s.persist()
}

// persist writes the latest draft. Concurrent callers are serialized and a caller whose
// version was already written by someone else returns early. Failures are logged only.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	version := s.version
	snapshot := s.draft.Clone()
	s.mu.Unlock()
	if version <= s.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.id, snapshot); err != nil {
		s.log.Warn().Err(err).Msg("draft persist failed")
		return
	}
	s.persisted = version
}
