package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	bans    map[int64]time.Time
	failDel bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bans: make(map[int64]time.Time)}
}

func (s *memoryStore) SaveBan(_ context.Context, userID int64, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bans[userID] = until
	return nil
}

func (s *memoryStore) DeleteBans(_ context.Context, userIDs ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDel {
		return errors.New("boom")
	}
	for _, id := range userIDs {
		delete(s.bans, id)
	}
	return nil
}

func (s *memoryStore) Bans(context.Context) (map[int64]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]time.Time, len(s.bans))
	for id, until := range s.bans {
		out[id] = until
	}
	return out, nil
}

func (s *memoryStore) has(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.bans[userID]
	return ok
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBanList() (*BanList, *memoryStore, *testClock) {
	store := newMemoryStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	return NewBanList(Config{Store: store, Clock: clock.Now}), store, clock
}

func TestBanExpiresLazily(t *testing.T) {
	b, store, clock := newTestBanList()

	b.BanUntil(context.Background(), 7, time.Minute)
	b.Wait()

	if !b.IsBanned(7) {
		t.Fatal("expected user to be banned")
	}
	if !store.has(7) {
		t.Fatal("expected ban to be persisted")
	}
	if b.IsBanned(8) {
		t.Fatal("unexpected ban for another user")
	}

	clock.Advance(time.Minute)
	if b.IsBanned(7) {
		t.Fatal("expected ban to expire")
	}
	b.Wait()
	if store.has(7) {
		t.Fatal("expected expired ban to be removed from the store")
	}
}

func TestBanKeepsLongerExpiry(t *testing.T) {
	b, _, clock := newTestBanList()

	b.BanUntil(context.Background(), 7, time.Hour)
	b.BanUntil(context.Background(), 7, time.Minute)
	b.Wait()

	until, ok := b.Until(7)
	if !ok {
		t.Fatal("expected ban")
	}
	if want := clock.Now().Add(time.Hour); !until.Equal(want) {
		t.Fatalf("expected %v, got %v", want, until)
	}

	b.BanUntil(context.Background(), 7, 2*time.Hour)
	until, _ = b.Until(7)
	if want := clock.Now().Add(2 * time.Hour); !until.Equal(want) {
		t.Fatalf("expected ban to be extended to %v, got %v", want, until)
	}
	b.Wait()
}

func TestSweep(t *testing.T) {
	b, store, clock := newTestBanList()

	b.BanUntil(context.Background(), 1, time.Minute)
	b.BanUntil(context.Background(), 2, time.Hour)
	b.Wait()

	clock.Advance(2 * time.Minute)
	n, err := b.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired ban, got %d", n)
	}
	if store.has(1) || !store.has(2) {
		t.Fatal("unexpected store state after sweep")
	}
	if !b.IsBanned(2) {
		t.Fatal("expected unexpired ban to stay")
	}

	n, err = b.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty sweep, got %d, %v", n, err)
	}
}

func TestSweepStoreError(t *testing.T) {
	b, store, clock := newTestBanList()
	b.BanUntil(context.Background(), 1, time.Minute)
	b.Wait()

	store.failDel = true
	clock.Advance(time.Hour)

	if _, err := b.Sweep(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if b.IsBanned(1) {
		t.Fatal("in-memory ban must be gone even when the store fails")
	}
	b.Wait()
}

func TestLoad(t *testing.T) {
	b, store, clock := newTestBanList()
	store.bans[1] = clock.Now().Add(time.Hour)
	store.bans[2] = clock.Now().Add(-time.Hour)

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !b.IsBanned(1) || b.IsBanned(2) {
		t.Fatal("expected only the active stored ban to be loaded")
	}
}

func TestWithoutStore(t *testing.T) {
	b := NewBanList(Config{})
	b.BanUntil(context.Background(), 1, time.Hour)
	b.Wait()

	if !b.IsBanned(1) {
		t.Fatal("expected ban")
	}
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load without store: %v", err)
	}
}

// serialStore fails the test when two writes overlap
type serialStore struct {
	*memoryStore

	mu       sync.Mutex
	inFlight int
	overlaps int
}

func (s *serialStore) enter() func() {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlaps++
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	return func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}
}

func (s *serialStore) SaveBan(ctx context.Context, userID int64, until time.Time) error {
	defer s.enter()()
	return s.memoryStore.SaveBan(ctx, userID, until)
}

func (s *serialStore) DeleteBans(ctx context.Context, userIDs ...int64) error {
	defer s.enter()()
	return s.memoryStore.DeleteBans(ctx, userIDs...)
}

func TestPersistedBanFollowsLatestState(t *testing.T) {
	store := &serialStore{memoryStore: newMemoryStore()}
	clock := &testClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBanList(Config{Store: store, Clock: clock.Now})

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(minutes int) {
			defer wg.Done()
			b.BanUntil(context.Background(), 7, time.Duration(minutes)*time.Minute)
		}(i)
	}
	wg.Wait()
	b.Wait()

	if want := clock.Now().Add(20 * time.Minute); !store.bans[7].Equal(want) {
		t.Fatalf("expected stored ban until %v, got %v", want, store.bans[7])
	}

	// lazy expiry followed by a fresh ban must leave the fresh ban stored
	clock.Advance(time.Hour)
	if b.IsBanned(7) {
		t.Fatal("expected ban to expire")
	}
	b.BanUntil(context.Background(), 7, time.Minute)
	b.Wait()

	if want := clock.Now().Add(time.Minute); !store.has(7) || !store.bans[7].Equal(want) {
		t.Fatalf("expected fresh ban until %v to be stored, got %v", want, store.bans[7])
	}
	if store.overlaps != 0 {
		t.Fatalf("expected serialized writes, got %d overlaps", store.overlaps)
	}
}
