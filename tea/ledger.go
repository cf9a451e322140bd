package tea

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ResetPeriod is how long the rating lives before it is cleared
const ResetPeriod = 7 * 24 * time.Hour

const (
	minCentiliters = 100
	maxCentiliters = 4000
)

// Entry is a weekly total of a user
type Entry struct {
	UserID int64
	Liters float64
}

type Store interface {
	AddTea(ctx context.Context, userID int64, liters float64) error
	TopTea(ctx context.Context, limit int) ([]Entry, error)
	// TeaReset returns the time of the last reset or zero time if there was none
	TeaReset(ctx context.Context) (time.Time, error)
	ResetTea(ctx context.Context, at time.Time) error
}

type Rand interface {
	IntN(n int) int
}

type Config struct {
	Store   Store
	Rand    Rand
	Clock   func() time.Time
	BaseCtx context.Context
	// JobTimeout limits a single scheduled reset check
	JobTimeout time.Duration
}

// Ledger counts liters of tea users have drunk during the current week
type Ledger struct {
	store   Store
	rng     Rand
	now     func() time.Time
	baseCtx context.Context
	timeout time.Duration

	resetMu sync.Mutex
}

func NewLedger(cfg Config) *Ledger {
	l := &Ledger{
		store:   cfg.Store,
		rng:     cfg.Rand,
		now:     cfg.Clock,
		baseCtx: cfg.BaseCtx,
		timeout: cfg.JobTimeout,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.baseCtx == nil {
		l.baseCtx = context.Background()
	}
	if l.timeout <= 0 {
		l.timeout = 5 * time.Second
	}
	return l
}

// Drink adds a random amount from 1 to 40 liters to the user's total and
// returns the amount
func (l *Ledger) Drink(ctx context.Context, userID int64) (float64, error) {
	liters := float64(minCentiliters+l.rng.IntN(maxCentiliters-minCentiliters+1)) / 100

	if err := l.store.AddTea(ctx, userID, liters); err != nil {
		return 0, fmt.Errorf("drink tea: %w", err)
	}

	slog.Debug("tea: Tea drunk", "user_id", userID, "liters", liters)

	return liters, nil
}

// Top returns up to n biggest drinkers of the week
func (l *Ledger) Top(ctx context.Context, n int) ([]Entry, error) {
	if _, err := l.ResetIfDue(ctx, l.now()); err != nil {
		return nil, err
	}

	entries, err := l.store.TopTea(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("tea rating: %w", err)
	}
	return entries, nil
}

// ResetIfDue clears the rating when it was never reset or a week has passed
// since the last reset
func (l *Ledger) ResetIfDue(ctx context.Context, now time.Time) (bool, error) {
	l.resetMu.Lock()
	defer l.resetMu.Unlock()

	last, err := l.store.TeaReset(ctx)
	if err != nil {
		return false, fmt.Errorf("get last tea reset: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < ResetPeriod {
		return false, nil
	}

	if err := l.store.ResetTea(ctx, now); err != nil {
		return false, fmt.Errorf("reset tea rating: %w", err)
	}

	slog.Info("tea: Rating reset", "previous_reset", last)

	return true, nil
}

// Schedule registers a periodic reset check on the scheduler
func (l *Ledger) Schedule(s gocron.Scheduler, every time.Duration) error {
	_, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(l.baseCtx, l.timeout)
			defer cancel()

			if _, err := l.ResetIfDue(ctx, l.now()); err != nil {
				slog.Error("tea: Scheduled reset check failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule tea reset: %w", err)
	}
	return nil
}
