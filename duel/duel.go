package duel

import (
	"errors"
	"time"
)

const (
	// BaseHitChance is the hit chance in percent without aiming
	BaseHitChance = 50
	// AimStep is added to the aim bonus by every "aim" action
	AimStep = 10
)

var (
	ErrDuelInProgress        = errors.New("duel: duel already in progress")
	ErrTargetNotFound        = errors.New("duel: target not found")
	ErrSelfTarget            = errors.New("duel: cannot challenge yourself")
	ErrNotEnoughParticipants = errors.New("duel: not enough participants")
	ErrNoDuel                = errors.New("duel: no duel in this chat")
	ErrNoChallenge           = errors.New("duel: no challenge for this user")
	ErrNotChallenger         = errors.New("duel: only the challenger can cancel")
	ErrNotParticipant        = errors.New("duel: user does not take part in the duel")
	ErrNotYourTurn           = errors.New("duel: not your turn")
	ErrUnknownOutcome        = errors.New("duel: unknown outcome")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// Duel is the state of the single duel slot of a chat
type Duel struct {
	ID           string
	ChatID       int64
	ChallengerID int64
	TargetID     int64
	Status       Status
	CreatedAt    time.Time
	TurnID       int64
	AimBonus     map[int64]int
}

// Opponent returns the other duelist
func (d *Duel) Opponent(userID int64) int64 {
	if userID == d.ChallengerID {
		return d.TargetID
	}
	return d.ChallengerID
}

func (d *Duel) involves(userID int64) bool {
	return userID == d.ChallengerID || userID == d.TargetID
}

func (d *Duel) clone() Duel {
	c := *d
	c.AimBonus = make(map[int64]int, len(d.AimBonus))
	for id, bonus := range d.AimBonus {
		c.AimBonus[id] = bonus
	}
	return c
}

// HitChance returns the chance in percent to hit with the given aim bonus,
// capped at 100.
func HitChance(bonus int) int {
	return min(100, BaseHitChance+bonus)
}

// ShotResult describes a resolved "shoot" action
type ShotResult struct {
	Duel      Duel
	ShooterID int64
	Roll      int
	HitChance int
	Hit       bool

	// Set on hit
	WinnerID int64
	LoserID  int64
	Outcome  Outcome

	// Set on miss
	NextTurnID int64
}
