package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"tattty/internal/domain"
)

type memoryPersister struct {
	mu     sync.Mutex
	drafts map[string]domain.Draft
	saves  int
	fail   error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{drafts: make(map[string]domain.Draft)}
}

func (m *memoryPersister) Load(ctx context.Context, id string) (*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (m *memoryPersister) Save(ctx context.Context, id string, d domain.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.fail != nil {
		return m.fail
	}
	d.Images = nil
	m.drafts[id] = d
	return nil
}

func (m *memoryPersister) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}

func TestStoreSettersUpdateDraft(t *testing.T) {
	s := NewStore("s1", StoreOptions{Logger: zerolog.Nop()})
	s.SetQuestionOne("first answer")
	s.SetQuestionTwo("second answer")
	if err := s.SetOption("where", "Forearm"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := s.SetOption("style", "not in any catalog"); err != nil {
		t.Fatalf("SetOption should not validate values: %v", err)
	}

	want := domain.Draft{
		QuestionOne: "first answer",
		QuestionTwo: "second answer",
		Placement:   "Forearm",
		Style:       "not in any catalog",
	}
	if diff := cmp.Diff(want, s.Get()); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUnknownField(t *testing.T) {
	s := NewStore("s1", StoreOptions{Logger: zerolog.Nop()})
	if err := s.SetOption("tattooArtist", "x"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	s := NewStore("s1", StoreOptions{Logger: zerolog.Nop()})
	src := []domain.Image{{Filename: "a.png", Data: []byte{1, 2}}}
	s.SetImages(src)
	src[0].Data[0] = 9

	got := s.Get()
	if got.Images[0].Data[0] != 1 {
		t.Fatal("store shares image buffer with caller input")
	}
	got.Images[0].Data[0] = 7
	if s.Get().Images[0].Data[0] != 1 {
		t.Fatal("Get leaked internal image buffer")
	}
}

func TestObserversNotifiedAndUnsubscribed(t *testing.T) {
	s := NewStore("s1", StoreOptions{Logger: zerolog.Nop()})
	var seen []string
	unsubscribe := s.Subscribe(func(d domain.Draft) {
		seen = append(seen, d.QuestionOne)
	})
	s.SetQuestionOne("a")
	s.SetQuestionOne("b")
	unsubscribe()
	unsubscribe()
	s.SetQuestionOne("c")

	if diff := cmp.Diff([]string{"a", "b"}, seen); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverMayReadStore(t *testing.T) {
	s := NewStore("s1", StoreOptions{Logger: zerolog.Nop()})
	var got string
	s.Subscribe(func(domain.Draft) {
		// Observers run outside the lock, so re-entering the store must not deadlock.
		got = s.Get().Mood
	})
	if err := s.SetOption("mood", "Serene"); err != nil {
		t.Fatal(err)
	}
	if got != "Serene" {
		t.Fatalf("observer read %q", got)
	}
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	p := newMemoryPersister()
	p.fail = errors.New("disk full")
	s := NewStore("s1", StoreOptions{Persister: p, Logger: zerolog.Nop()})
	s.SetQuestionOne("still works")
	if s.Get().QuestionOne != "still works" {
		t.Fatal("in-memory draft should update even when persistence fails")
	}
	if p.saves != 1 {
		t.Fatalf("saves = %d, want 1", p.saves)
	}
}

func TestConcurrentUpdatesPersistLatest(t *testing.T) {
	p := newMemoryPersister()
	s := NewStore("s1", StoreOptions{Persister: p, Logger: zerolog.Nop()})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.SetOption("size", "Medium")
		}()
	}
	wg.Wait()
	s.SetQuestionOne("final")

	stored, err := p.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.QuestionOne != "final" || stored.Size != "Medium" {
		t.Fatalf("persisted draft = %+v", stored)
	}
}

func TestRegistryRestoresAndDeletes(t *testing.T) {
	p := newMemoryPersister()
	p.drafts["s1"] = domain.Draft{QuestionOne: "restored"}
	r := NewRegistry(p, zerolog.Nop())
	ctx := context.Background()

	s := r.Get(ctx, "s1")
	if s.Get().QuestionOne != "restored" {
		t.Fatalf("draft not restored: %+v", s.Get())
	}
	if r.Get(ctx, "s1") != s {
		t.Fatal("registry should return the same store")
	}
	if r.Get(ctx, "s2").Get().QuestionOne != "" {
		t.Fatal("new session should start empty")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.Load(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("persisted draft should be gone, got %v", err)
	}
	if r.Get(ctx, "s1") == s {
		t.Fatal("deleted session should get a fresh store")
	}
}

func TestRegistryPeekDoesNotRegister(t *testing.T) {
	p := newMemoryPersister()
	p.drafts["saved"] = domain.Draft{QuestionOne: "from disk"}
	r := NewRegistry(p, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if d := r.Peek(ctx, fmt.Sprintf("unknown-%d", i)); d.QuestionOne != "" {
			t.Fatalf("unknown session = %+v, want empty", d)
		}
	}
	if got := r.Peek(ctx, "saved").QuestionOne; got != "from disk" {
		t.Fatalf("QuestionOne = %q, want %q", got, "from disk")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}

	r.Get(ctx, "live").SetQuestionTwo("in memory")
	if got := r.Peek(ctx, "live").QuestionTwo; got != "in memory" {
		t.Fatalf("QuestionTwo = %q, want %q", got, "in memory")
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	p := newMemoryPersister()
	r := NewRegistry(p, zerolog.Nop(), WithIdleTTL(time.Hour), WithRegistryClock(func() time.Time { return now }))
	ctx := context.Background()

	r.Get(ctx, "old").SetQuestionOne("kept on disk")
	for i := 0; i < 1000; i++ {
		r.Get(ctx, fmt.Sprintf("burst-%d", i))
	}
	now = now.Add(30 * time.Minute)
	r.Get(ctx, "recent")

	now = now.Add(45 * time.Minute)
	if n := r.Sweep(); n != 1001 {
		t.Fatalf("Sweep evicted %d, want 1001", n)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if got := r.Get(ctx, "old").Get().QuestionOne; got != "kept on disk" {
		t.Fatalf("evicted draft restored as %q, want %q", got, "kept on disk")
	}
}

func TestRegistryGetSweepsOpportunistically(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(nil, zerolog.Nop(), WithIdleTTL(time.Hour), WithRegistryClock(func() time.Time { return now }))
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		r.Get(ctx, fmt.Sprintf("s-%d", i))
	}
	now = now.Add(2 * time.Hour)
	r.Get(ctx, "fresh")
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}
