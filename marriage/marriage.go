package marriage

import (
	"errors"
	"fmt"
	"time"
)

// ReconciliationWindow is how long after a divorce the same pair may restore
// their marriage with its original start time.
const ReconciliationWindow = 3 * 24 * time.Hour

var (
	ErrTargetNotFound  = errors.New("marriage: target not found")
	ErrSelfTarget      = errors.New("marriage: cannot target yourself")
	ErrAlreadyMarried  = errors.New("marriage: already married")
	ErrProposerMarried = fmt.Errorf("proposer %w", ErrAlreadyMarried)
	ErrTargetMarried   = fmt.Errorf("target %w", ErrAlreadyMarried)
	ErrNoProposal      = errors.New("marriage: no pending proposal")
	ErrNotMarried      = errors.New("marriage: not married")
	ErrEmpty           = errors.New("marriage: no active marriages")
	ErrInvalidArgument = errors.New("marriage: invalid argument")
)

// Pair is an unordered pair of identities stored in canonical order
type Pair struct {
	Low  int64
	High int64
}

func NewPair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Has reports whether the identity belongs to the pair
func (p Pair) Has(userID int64) bool {
	return p.Low == userID || p.High == userID
}

// Other returns the partner of userID
func (p Pair) Other(userID int64) int64 {
	if p.Low == userID {
		return p.High
	}
	return p.Low
}

type Proposal struct {
	ChatID     int64
	TargetID   int64
	ProposerID int64
	CreatedAt  time.Time
}

type proposalKey struct {
	chatID   int64
	targetID int64
}

type Marriage struct {
	Pair Pair
	// ChatID is where the marriage was last activated
	ChatID        int64
	StartedAt     time.Time
	Active        bool
	DivorcedAt    time.Time
	ExtendedUntil time.Time
}

// Duration is how long the marriage has lasted at the given moment
func (m Marriage) Duration(now time.Time) time.Duration {
	return now.Sub(m.StartedAt)
}

// Days is the number of whole days the marriage has lasted
func (m Marriage) Days(now time.Time) int {
	return int(m.Duration(now) / (24 * time.Hour))
}

func (m Marriage) reconcilable(now time.Time) bool {
	return !m.Active && !m.DivorcedAt.IsZero() && now.Sub(m.DivorcedAt) <= ReconciliationWindow
}

// Status describes a marriage from the point of view of one partner
type Status struct {
	UserID    int64
	PartnerID int64
	Marriage  Marriage
	Duration  time.Duration
}

// AcceptResult is returned by Accept
type AcceptResult struct {
	Marriage   Marriage
	ProposerID int64
	Reconciled bool
}

// Page is one page of the active marriages list
type Page struct {
	Items []Marriage
	Page  int
	Pages int
	Total int
}
