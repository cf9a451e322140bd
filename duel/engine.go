package duel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
)

// Directory provides chat participants for target lookup
type Directory interface {
	Resolve(chatID int64, ref string) (participants.Participant, error)
	Members(chatID int64) []participants.Participant
}

// Moderator schedules bans for duel losers. Implementations must not block.
type Moderator interface {
	BanUntil(ctx context.Context, userID int64, d time.Duration)
}

type Config struct {
	Directory Directory
	Moderator Moderator
	Rand      Rand
	Stats     *Stats
	// BotID is never picked as a random opponent
	BotID   int64
	Outcome Outcome
	Clock   func() time.Time
}

// Engine runs one duel per chat
type Engine struct {
	dir   Directory
	mod   Moderator
	rng   Rand
	stats *Stats
	botID int64
	now   func() time.Time

	mu    sync.Mutex
	slots map[int64]*slot

	outcomeMu sync.RWMutex
	outcome   Outcome
}

type slot struct {
	mu   sync.Mutex
	duel *Duel
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		dir:     cfg.Directory,
		mod:     cfg.Moderator,
		rng:     cfg.Rand,
		stats:   cfg.Stats,
		botID:   cfg.BotID,
		now:     cfg.Clock,
		slots:   make(map[int64]*slot),
		outcome: cfg.Outcome,
	}
	if e.stats == nil {
		e.stats = NewStats()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.outcome == "" {
		e.outcome = OutcomeNone
	}
	return e
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

func (e *Engine) SetOutcome(o Outcome) {
	e.outcomeMu.Lock()
	defer e.outcomeMu.Unlock()

	e.outcome = o
	slog.Info("duel: Outcome changed", "outcome", string(o))
}

func (e *Engine) Outcome() Outcome {
	e.outcomeMu.RLock()
	defer e.outcomeMu.RUnlock()

	return e.outcome
}

// lock returns the locked slot of a chat; the caller must unlock it
func (e *Engine) lock(chatID int64) *slot {
	e.mu.Lock()
	s, ok := e.slots[chatID]
	if !ok {
		s = &slot{}
		e.slots[chatID] = s
	}
	e.mu.Unlock()

	s.mu.Lock()
	return s
}

// Current returns the duel of a chat, if any
func (e *Engine) Current(chatID int64) (Duel, bool) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	if s.duel == nil {
		return Duel{}, false
	}
	return s.duel.clone(), true
}

func (e *Engine) start(s *slot, chatID, challengerID, targetID int64) Duel {
	s.duel = &Duel{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		ChallengerID: challengerID,
		TargetID:     targetID,
		Status:       StatusPending,
		CreatedAt:    e.now(),
		AimBonus:     map[int64]int{challengerID: 0, targetID: 0},
	}

	slog.Info("duel: Challenge created", "duel_id", s.duel.ID, "chat_id", chatID,
		"challenger_id", challengerID, "target_id", targetID)

	return s.duel.clone()
}

// Challenge creates a pending duel against the referenced participant
func (e *Engine) Challenge(chatID, challengerID int64, targetRef string) (Duel, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	if s.duel != nil {
		return Duel{}, ErrDuelInProgress
	}

	target, err := e.dir.Resolve(chatID, targetRef)
	if err != nil {
		return Duel{}, ErrTargetNotFound
	}
	if target.UserID == challengerID {
		return Duel{}, ErrSelfTarget
	}

	return e.start(s, chatID, challengerID, target.UserID), nil
}

// ChallengeRandom creates a pending duel against a random chat member
func (e *Engine) ChallengeRandom(chatID, challengerID int64) (Duel, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	if s.duel != nil {
		return Duel{}, ErrDuelInProgress
	}

	var candidates []int64
	for _, p := range e.dir.Members(chatID) {
		if p.UserID != challengerID && p.UserID != e.botID {
			candidates = append(candidates, p.UserID)
		}
	}
	if len(candidates) == 0 {
		return Duel{}, ErrNotEnoughParticipants
	}

	return e.start(s, chatID, challengerID, candidates[e.rng.IntN(len(candidates))]), nil
}

func pendingFor(s *slot, userID int64) (*Duel, error) {
	if s.duel == nil {
		return nil, ErrNoDuel
	}
	if s.duel.Status != StatusPending || s.duel.TargetID != userID {
		return nil, ErrNoChallenge
	}
	return s.duel, nil
}

// Accept starts the duel; the first turn is random
func (e *Engine) Accept(chatID, userID int64) (Duel, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	d, err := pendingFor(s, userID)
	if err != nil {
		return Duel{}, err
	}

	d.Status = StatusActive
	d.TurnID = d.ChallengerID
	if e.rng.IntN(2) == 1 {
		d.TurnID = d.TargetID
	}
	for id := range d.AimBonus {
		d.AimBonus[id] = 0
	}

	slog.Info("duel: Duel started", "duel_id", d.ID, "chat_id", chatID, "turn_id", d.TurnID)

	return d.clone(), nil
}

// Decline drops a pending challenge addressed to userID
func (e *Engine) Decline(chatID, userID int64) (Duel, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	d, err := pendingFor(s, userID)
	if err != nil {
		return Duel{}, err
	}
	s.duel = nil

	slog.Info("duel: Challenge declined", "duel_id", d.ID, "chat_id", chatID)

	return d.clone(), nil
}

// Cancel lets the challenger drop the duel, pending or active
func (e *Engine) Cancel(chatID, userID int64) (Duel, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	if s.duel == nil {
		return Duel{}, ErrNoDuel
	}
	if s.duel.ChallengerID != userID {
		return Duel{}, ErrNotChallenger
	}
	d := s.duel
	s.duel = nil

	slog.Info("duel: Duel cancelled", "duel_id", d.ID, "chat_id", chatID)

	return d.clone(), nil
}

func turnOf(s *slot, userID int64) (*Duel, error) {
	if s.duel == nil || s.duel.Status != StatusActive {
		return nil, ErrNoDuel
	}
	if !s.duel.involves(userID) {
		return nil, ErrNotParticipant
	}
	if s.duel.TurnID != userID {
		return nil, ErrNotYourTurn
	}
	return s.duel, nil
}

// Aim raises the aim bonus of the current shooter and returns the new bonus
func (e *Engine) Aim(chatID, userID int64) (int, error) {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	d, err := turnOf(s, userID)
	if err != nil {
		return 0, err
	}
	d.AimBonus[userID] += AimStep

	return d.AimBonus[userID], nil
}

// ResetAim sets the aim bonus of the current shooter back to zero
func (e *Engine) ResetAim(chatID, userID int64) error {
	s := e.lock(chatID)
	defer s.mu.Unlock()

	d, err := turnOf(s, userID)
	if err != nil {
		return err
	}
	d.AimBonus[userID] = 0

	return nil
}

// Shoot resolves a shot by the current shooter. A hit ends the duel, records
// the result and applies the configured outcome to the loser.
func (e *Engine) Shoot(ctx context.Context, chatID, userID int64) (ShotResult, error) {
	s := e.lock(chatID)

	d, err := turnOf(s, userID)
	if err != nil {
		s.mu.Unlock()
		return ShotResult{}, err
	}

	bonus := d.AimBonus[userID]
	res := ShotResult{
		ShooterID: userID,
		Roll:      e.rng.IntN(100) + 1,
		HitChance: HitChance(bonus),
	}
	res.Hit = res.Roll <= BaseHitChance+bonus

	if !res.Hit {
		d.AimBonus[userID] = 0
		d.TurnID = d.Opponent(userID)
		res.NextTurnID = d.TurnID
		res.Duel = d.clone()
		s.mu.Unlock()

		slog.Debug("duel: Shot missed", "duel_id", res.Duel.ID, "roll", res.Roll, "hit_chance", res.HitChance)

		return res, nil
	}

	res.WinnerID = userID
	res.LoserID = d.Opponent(userID)
	res.Outcome = e.Outcome()
	res.Duel = d.clone()
	s.duel = nil
	e.stats.RecordResult(res.WinnerID, res.LoserID)
	s.mu.Unlock()

	slog.Info("duel: Duel resolved", "duel_id", res.Duel.ID, "chat_id", chatID,
		"winner_id", res.WinnerID, "loser_id", res.LoserID, "roll", res.Roll, "outcome", string(res.Outcome))

	if ban, ok := res.Outcome.BanDuration(); ok && e.mod != nil {
		e.mod.BanUntil(ctx, res.LoserID, ban)
	}

	return res, nil
}
