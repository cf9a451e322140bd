package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/hako/durafmt"
)

// Store persists bans between restarts
type Store interface {
	SaveBan(ctx context.Context, userID int64, until time.Time) error
	DeleteBans(ctx context.Context, userIDs ...int64) error
	Bans(ctx context.Context) (map[int64]time.Time, error)
}

// BanList is the global ban map. Bans are not scoped to a chat.
type BanList struct {
	store   Store
	now     func() time.Time
	baseCtx context.Context
	timeout time.Duration

	mu   sync.Mutex
	bans map[int64]time.Time

	// writes are applied one at a time in the order they were queued
	qmu     sync.Mutex
	queue   []write
	running bool
	wg      sync.WaitGroup
}

// write brings the stored bans of userIDs in line with the in-memory map
type write struct {
	ctx     context.Context
	userIDs []int64
	done    chan error
}

type Config struct {
	Store Store
	// BaseCtx is the parent of background persistence calls
	BaseCtx context.Context
	// BackgroundTimeout limits a single background persistence call
	BackgroundTimeout time.Duration
	Clock             func() time.Time
}

func NewBanList(cfg Config) *BanList {
	b := &BanList{
		store:   cfg.Store,
		now:     cfg.Clock,
		baseCtx: cfg.BaseCtx,
		timeout: cfg.BackgroundTimeout,
		bans:    make(map[int64]time.Time),
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.baseCtx == nil {
		b.baseCtx = context.Background()
	}
	if b.timeout <= 0 {
		b.timeout = 5 * time.Second
	}
	return b
}

// Load restores stored bans, skipping expired ones
func (b *BanList) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}

	stored, err := b.store.Bans(ctx)
	if err != nil {
		return fmt.Errorf("load bans: %w", err)
	}

	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, until := range stored {
		if until.After(now) {
			b.bans[userID] = until
		}
	}

	slog.Info("moderation: Bans loaded", "count", len(b.bans))

	return nil
}

// BanUntil bans the user for d. A longer existing ban is kept.
// Persistence happens in the background so the call never blocks on I/O.
func (b *BanList) BanUntil(ctx context.Context, userID int64, d time.Duration) {
	until := b.now().Add(d)

	b.mu.Lock()
	if current, ok := b.bans[userID]; ok && current.After(until) {
		until = current
	}
	b.bans[userID] = until
	b.mu.Unlock()

	slog.InfoContext(ctx, "moderation: User banned", "user_id", userID,
		"duration", durafmt.ParseShort(d).String(), "until", until)

	b.enqueue(write{userIDs: []int64{userID}})
}

// Until returns the unban time of a currently banned user
func (b *BanList) Until(userID int64) (time.Time, bool) {
	b.mu.Lock()
	until, ok := b.bans[userID]
	expired := ok && !b.now().Before(until)
	if expired {
		delete(b.bans, userID)
	}
	b.mu.Unlock()

	if expired {
		slog.Info("moderation: User unbanned", "user_id", userID)
		b.enqueue(write{userIDs: []int64{userID}})
		return time.Time{}, false
	}
	return until, ok
}

func (b *BanList) IsBanned(userID int64) bool {
	_, ok := b.Until(userID)
	return ok
}

// Sweep removes all expired bans and returns how many were removed
func (b *BanList) Sweep(ctx context.Context) (int, error) {
	now := b.now()

	b.mu.Lock()
	var expired []int64
	for userID, until := range b.bans {
		if !now.Before(until) {
			expired = append(expired, userID)
			delete(b.bans, userID)
		}
	}
	b.mu.Unlock()

	if len(expired) == 0 {
		return 0, nil
	}

	slog.Info("moderation: Expired bans removed", "user_ids", expired)

	if b.store == nil {
		return len(expired), nil
	}

	done := make(chan error, 1)
	b.enqueue(write{ctx: ctx, userIDs: expired, done: done})

	select {
	case err := <-done:
		if err != nil {
			return len(expired), fmt.Errorf("delete expired bans: %w", err)
		}
		return len(expired), nil
	case <-ctx.Done():
		return len(expired), ctx.Err()
	}
}

// Schedule registers a periodic sweep on the scheduler
func (b *BanList) Schedule(s gocron.Scheduler, every time.Duration) error {
	_, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(b.baseCtx, b.timeout)
			defer cancel()

			if _, err := b.Sweep(ctx); err != nil {
				slog.Error("moderation: Ban sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule ban sweep: %w", err)
	}
	return nil
}

func (b *BanList) enqueue(w write) {
	if b.store == nil {
		return
	}

	b.qmu.Lock()
	defer b.qmu.Unlock()

	b.queue = append(b.queue, w)
	if !b.running {
		b.running = true
		b.wg.Add(1)
		go b.drain()
	}
}

func (b *BanList) drain() {
	defer b.wg.Done()

	for {
		b.qmu.Lock()
		if len(b.queue) == 0 {
			b.running = false
			b.qmu.Unlock()
			return
		}
		w := b.queue[0]
		b.queue = b.queue[1:]
		b.qmu.Unlock()

		err := b.apply(w)
		if err != nil {
			slog.Error("moderation: Background persistence failed", "user_ids", w.userIDs, "error", err)
		}
		if w.done != nil {
			w.done <- err
		}
	}
}

// apply stores the current state of each user. It reads the map when the
// write runs, so a late write never restores an older expiry.
func (b *BanList) apply(w write) error {
	parent := w.ctx
	if parent == nil {
		parent = b.baseCtx
	}
	ctx, cancel := context.WithTimeout(parent, b.timeout)
	defer cancel()

	now := b.now()
	saves := make(map[int64]time.Time)
	var deletes []int64

	b.mu.Lock()
	for _, userID := range w.userIDs {
		if until, ok := b.bans[userID]; ok && now.Before(until) {
			saves[userID] = until
		} else {
			deletes = append(deletes, userID)
		}
	}
	b.mu.Unlock()

	if len(deletes) > 0 {
		if err := b.store.DeleteBans(ctx, deletes...); err != nil {
			return err
		}
	}
	for userID, until := range saves {
		if err := b.store.SaveBan(ctx, userID, until); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until background persistence calls finish
func (b *BanList) Wait() {
	b.wg.Wait()
}
