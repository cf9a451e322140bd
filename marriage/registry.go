package marriage

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
)

// Directory resolves chat participants
type Directory interface {
	Resolve(chatID int64, ref string) (participants.Participant, error)
	Lookup(chatID, userID int64) (participants.Participant, error)
}

// Registry owns proposals, marriages and the reverse index of active
// marriages. Marriages are not scoped to a chat, proposals are.
type Registry struct {
	dir Directory
	now func() time.Time

	mu             sync.Mutex
	proposals      map[proposalKey]Proposal
	marriages      map[Pair]*Marriage
	byUser         map[int64]Pair
	extensionPrice int
}

type Option func(*Registry)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(dir Directory, opts ...Option) *Registry {
	r := &Registry{
		dir:       dir,
		now:       time.Now,
		proposals: make(map[proposalKey]Proposal),
		marriages: make(map[Pair]*Marriage),
		byUser:    make(map[int64]Pair),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// activate and deactivate are the only places that touch byUser, so the
// reverse index always matches the Active flags.
func (r *Registry) activate(m *Marriage) {
	m.Active = true
	m.DivorcedAt = time.Time{}
	r.byUser[m.Pair.Low] = m.Pair
	r.byUser[m.Pair.High] = m.Pair
}

func (r *Registry) deactivate(m *Marriage, now time.Time) {
	m.Active = false
	m.DivorcedAt = now
	delete(r.byUser, m.Pair.Low)
	delete(r.byUser, m.Pair.High)
}

func (r *Registry) activeOf(userID int64) (*Marriage, bool) {
	pair, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	m, ok := r.marriages[pair]
	if !ok || !m.Active {
		return nil, false
	}
	return m, true
}

func (r *Registry) create(chatID int64, pair Pair, now time.Time) *Marriage {
	m := &Marriage{
		Pair:          pair,
		ChatID:        chatID,
		StartedAt:     now,
		ExtendedUntil: now,
	}
	r.marriages[pair] = m
	r.activate(m)
	return m
}

func (r *Registry) resolve(chatID int64, ref string) (participants.Participant, error) {
	p, err := r.dir.Resolve(chatID, ref)
	if err != nil {
		return participants.Participant{}, ErrTargetNotFound
	}
	return p, nil
}

// Propose records a proposal from proposerID to the participant referenced by
// targetRef. A newer proposal to the same target replaces the previous one.
func (r *Registry) Propose(chatID, proposerID int64, targetRef string) (Proposal, error) {
	target, err := r.resolve(chatID, targetRef)
	if err != nil {
		return Proposal{}, err
	}
	if target.UserID == proposerID {
		return Proposal{}, ErrSelfTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.activeOf(proposerID); ok {
		return Proposal{}, ErrProposerMarried
	}
	if _, ok := r.activeOf(target.UserID); ok {
		return Proposal{}, ErrTargetMarried
	}

	p := Proposal{
		ChatID:     chatID,
		TargetID:   target.UserID,
		ProposerID: proposerID,
		CreatedAt:  r.now(),
	}
	r.proposals[proposalKey{chatID: chatID, targetID: target.UserID}] = p

	slog.Debug("marriage: Proposal recorded", "chat_id", chatID, "proposer_id", proposerID, "target_id", target.UserID)

	return p, nil
}

// Accept consumes the pending proposal for targetID. A pair divorced within
// the reconciliation window gets its old marriage back.
func (r *Registry) Accept(chatID, targetID int64) (AcceptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := proposalKey{chatID: chatID, targetID: targetID}
	proposal, ok := r.proposals[key]
	if !ok {
		return AcceptResult{}, ErrNoProposal
	}
	delete(r.proposals, key)

	if _, married := r.activeOf(proposal.ProposerID); married {
		return AcceptResult{}, ErrProposerMarried
	}
	if _, married := r.activeOf(targetID); married {
		return AcceptResult{}, ErrTargetMarried
	}

	now := r.now()
	pair := NewPair(proposal.ProposerID, targetID)

	if m, exists := r.marriages[pair]; exists && m.reconcilable(now) {
		m.ChatID = chatID
		r.activate(m)

		slog.Info("marriage: Marriage reconciled", "chat_id", chatID, "low_id", pair.Low, "high_id", pair.High)

		return AcceptResult{Marriage: *m, ProposerID: proposal.ProposerID, Reconciled: true}, nil
	}

	m := r.create(chatID, pair, now)

	slog.Info("marriage: Marriage created", "chat_id", chatID, "low_id", pair.Low, "high_id", pair.High)

	return AcceptResult{Marriage: *m, ProposerID: proposal.ProposerID}, nil
}

// Decline drops the pending proposal for targetID
func (r *Registry) Decline(chatID, targetID int64) (Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := proposalKey{chatID: chatID, targetID: targetID}
	proposal, ok := r.proposals[key]
	if !ok {
		return Proposal{}, ErrNoProposal
	}
	delete(r.proposals, key)

	return proposal, nil
}

// PendingProposal returns the proposal waiting for targetID in the chat
func (r *Registry) PendingProposal(chatID, targetID int64) (Proposal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[proposalKey{chatID: chatID, targetID: targetID}]
	return p, ok
}

// Dissolve divorces the active marriage of userID
func (r *Registry) Dissolve(userID int64) (Marriage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.activeOf(userID)
	if !ok {
		return Marriage{}, ErrNotMarried
	}
	r.deactivate(m, r.now())

	slog.Info("marriage: Marriage dissolved", "user_id", userID, "low_id", m.Pair.Low, "high_id", m.Pair.High)

	return *m, nil
}

// Query reports the active marriage of userID
func (r *Registry) Query(userID int64) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.activeOf(userID)
	if !ok {
		return Status{}, ErrNotMarried
	}

	return Status{
		UserID:    userID,
		PartnerID: m.Pair.Other(userID),
		Marriage:  *m,
		Duration:  m.Duration(r.now()),
	}, nil
}

// QueryOther reports the active marriage of a referenced participant
func (r *Registry) QueryOther(chatID int64, ref string) (participants.Participant, Status, error) {
	target, err := r.resolve(chatID, ref)
	if err != nil {
		return participants.Participant{}, Status{}, err
	}

	status, err := r.Query(target.UserID)
	if err != nil {
		return target, Status{}, err
	}
	return target, status, nil
}

// List returns active marriages whose partners are both known in the chat,
// longest first.
func (r *Registry) List(chatID int64, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 {
		return Page{}, ErrInvalidArgument
	}

	r.mu.Lock()
	active := make([]Marriage, 0, len(r.marriages))
	for _, m := range r.marriages {
		if m.Active {
			active = append(active, *m)
		}
	}
	now := r.now()
	r.mu.Unlock()

	inChat := active[:0]
	for _, m := range active {
		if r.known(chatID, m.Pair.Low) && r.known(chatID, m.Pair.High) {
			inChat = append(inChat, m)
		}
	}
	if len(inChat) == 0 {
		return Page{}, ErrEmpty
	}

	sort.SliceStable(inChat, func(i, j int) bool {
		di, dj := inChat[i].Duration(now), inChat[j].Duration(now)
		if di != dj {
			return di > dj
		}
		return inChat[i].Pair.Low < inChat[j].Pair.Low
	})

	total := len(inChat)
	result := Page{
		Page:  page,
		Pages: (total-1)/pageSize + 1,
		Total: total,
	}

	start := (page - 1) * pageSize
	if start >= total {
		return result, nil
	}
	end := min(start+pageSize, total)
	result.Items = inChat[start:end]

	return result, nil
}

func (r *Registry) known(chatID, userID int64) bool {
	_, err := r.dir.Lookup(chatID, userID)
	return err == nil
}

// AdminPair marries two participants without a proposal
func (r *Registry) AdminPair(chatID int64, ref1, ref2 string) (Marriage, error) {
	p1, err := r.resolve(chatID, ref1)
	if err != nil {
		return Marriage{}, err
	}
	p2, err := r.resolve(chatID, ref2)
	if err != nil {
		return Marriage{}, err
	}
	if p1.UserID == p2.UserID {
		return Marriage{}, ErrSelfTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.activeOf(p1.UserID); ok {
		return Marriage{}, ErrAlreadyMarried
	}
	if _, ok := r.activeOf(p2.UserID); ok {
		return Marriage{}, ErrAlreadyMarried
	}

	m := r.create(chatID, NewPair(p1.UserID, p2.UserID), r.now())

	slog.Info("marriage: Pair married by admin", "chat_id", chatID, "low_id", m.Pair.Low, "high_id", m.Pair.High)

	return *m, nil
}

// AdminUnpair divorces the active marriage between two participants
func (r *Registry) AdminUnpair(chatID int64, ref1, ref2 string) (Marriage, error) {
	p1, err := r.resolve(chatID, ref1)
	if err != nil {
		return Marriage{}, err
	}
	p2, err := r.resolve(chatID, ref2)
	if err != nil {
		return Marriage{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.marriages[NewPair(p1.UserID, p2.UserID)]
	if !ok || !m.Active {
		return Marriage{}, ErrNotMarried
	}
	r.deactivate(m, r.now())

	slog.Info("marriage: Pair divorced by admin", "chat_id", chatID, "low_id", m.Pair.Low, "high_id", m.Pair.High)

	return *m, nil
}

// ResetAll forgets every proposal and marriage
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.proposals)
	clear(r.marriages)
	clear(r.byUser)

	slog.Info("marriage: All marriages reset")
}

func (r *Registry) SetExtensionPrice(price int) error {
	if price < 0 {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.extensionPrice = price
	return nil
}

func (r *Registry) ExtensionPrice() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.extensionPrice
}

// MaxExtensionDays is the longest single extension a time.Duration can hold
const MaxExtensionDays = int(math.MaxInt64 / int64(24*time.Hour))

// Extend pushes ExtendedUntil forward by the given number of days, counting
// from the current extension when it is still in the future.
func (r *Registry) Extend(userID int64, days int) (Marriage, error) {
	if days <= 0 || days > MaxExtensionDays {
		return Marriage{}, ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.activeOf(userID)
	if !ok {
		return Marriage{}, ErrNotMarried
	}

	now := r.now()
	base := now
	if m.ExtendedUntil.After(now) {
		base = m.ExtendedUntil
	}
	m.ExtendedUntil = base.AddDate(0, 0, days)

	return *m, nil
}
