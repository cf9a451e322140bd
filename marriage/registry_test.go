package marriage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
)

const chatX = int64(100)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *participants.Directory, *testClock) {
	t.Helper()

	dir := participants.NewDirectory()
	dir.Observe(chatX, 1, "A", "a")
	dir.Observe(chatX, 2, "B", "b")
	dir.Observe(chatX, 3, "C", "c")
	dir.Observe(chatX, 4, "D", "d")

	clock := &testClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	return NewRegistry(dir, WithClock(clock.Now)), dir, clock
}

func marry(t *testing.T, r *Registry, proposer int64, targetRef string, target int64) AcceptResult {
	t.Helper()

	if _, err := r.Propose(chatX, proposer, targetRef); err != nil {
		t.Fatalf("propose: %v", err)
	}
	res, err := r.Accept(chatX, target)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return res
}

func TestProposeAccept(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	res := marry(t, r, 1, "B", 2)
	if res.Reconciled {
		t.Fatal("expected a new marriage, got reconciliation")
	}
	if !res.Marriage.Active {
		t.Fatal("expected active marriage")
	}

	for _, tc := range []struct{ user, partner int64 }{{1, 2}, {2, 1}} {
		status, err := r.Query(tc.user)
		if err != nil {
			t.Fatalf("query %d: %v", tc.user, err)
		}
		if status.PartnerID != tc.partner {
			t.Fatalf("query %d: expected partner %d, got %d", tc.user, tc.partner, status.PartnerID)
		}
	}

	if r.byUser[1] != r.byUser[2] || r.byUser[1] != NewPair(1, 2) {
		t.Fatalf("reverse index mismatch: %v / %v", r.byUser[1], r.byUser[2])
	}
}

func TestProposeFailures(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	marry(t, r, 1, "b", 2)

	tt := []struct {
		name     string
		proposer int64
		ref      string
		wantErr  error
	}{
		{name: "unknown_target", proposer: 3, ref: "nobody", wantErr: ErrTargetNotFound},
		{name: "self", proposer: 3, ref: "c", wantErr: ErrSelfTarget},
		{name: "proposer_married", proposer: 1, ref: "c", wantErr: ErrProposerMarried},
		{name: "target_married", proposer: 3, ref: "a", wantErr: ErrTargetMarried},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Propose(chatX, tc.proposer, tc.ref)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if _, ok := r.PendingProposal(chatX, 3); ok {
		t.Fatal("failed proposals must not be recorded")
	}
	if _, err := r.Propose(chatX, 3, "a"); !errors.Is(err, ErrAlreadyMarried) {
		t.Fatalf("expected ErrAlreadyMarried to match, got %v", err)
	}
}

func TestLastProposalWins(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if _, err := r.Propose(chatX, 1, "c"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := r.Propose(chatX, 2, "c"); err != nil {
		t.Fatalf("propose: %v", err)
	}

	res, err := r.Accept(chatX, 3)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.ProposerID != 2 || res.Marriage.Pair != NewPair(2, 3) {
		t.Fatalf("expected marriage with latest proposer 2, got %+v", res)
	}
	if _, err := r.Query(1); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected first proposer to stay single, got %v", err)
	}
}

func TestProposalsAreChatScoped(t *testing.T) {
	r, dir, _ := newTestRegistry(t)
	dir.Observe(200, 2, "B", "b")

	if _, err := r.Propose(chatX, 1, "b"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := r.Accept(200, 2); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("expected ErrNoProposal in another chat, got %v", err)
	}
	if _, err := r.Accept(chatX, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestAcceptRejectsWhenPartyMarriedMeanwhile(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if _, err := r.Propose(chatX, 1, "b"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	marry(t, r, 3, "a", 1)

	if _, err := r.Accept(chatX, 2); !errors.Is(err, ErrAlreadyMarried) {
		t.Fatalf("expected ErrAlreadyMarried, got %v", err)
	}
	if _, err := r.Query(2); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected target to stay single, got %v", err)
	}
	if status, _ := r.Query(1); status.PartnerID != 3 {
		t.Fatalf("existing marriage must stay intact, got partner %d", status.PartnerID)
	}
	if _, ok := r.PendingProposal(chatX, 2); ok {
		t.Fatal("rejected proposal must be consumed")
	}
}

func TestDecline(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if _, err := r.Decline(chatX, 2); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("expected ErrNoProposal, got %v", err)
	}
	if _, err := r.Propose(chatX, 1, "b"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	p, err := r.Decline(chatX, 2)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if p.ProposerID != 1 {
		t.Fatalf("expected proposer 1, got %d", p.ProposerID)
	}
	if _, err := r.Accept(chatX, 2); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("expected ErrNoProposal after decline, got %v", err)
	}
}

func TestDissolve(t *testing.T) {
	r, _, clock := newTestRegistry(t)

	if _, err := r.Dissolve(1); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}

	marry(t, r, 1, "b", 2)
	clock.Advance(time.Hour)

	m, err := r.Dissolve(2)
	if err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	if m.Active || !m.DivorcedAt.Equal(clock.now) {
		t.Fatalf("expected inactive marriage divorced now, got %+v", m)
	}
	if len(r.byUser) != 0 {
		t.Fatalf("expected empty reverse index, got %v", r.byUser)
	}
	if _, err := r.Query(1); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}
}

func TestReconcileWithinWindowKeepsStartTime(t *testing.T) {
	r, _, clock := newTestRegistry(t)

	original := marry(t, r, 1, "B", 2).Marriage
	clock.Advance(10 * 24 * time.Hour)

	if _, err := r.Dissolve(1); err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	clock.Advance(24 * time.Hour)

	res := marry(t, r, 2, "A", 1)
	if !res.Reconciled {
		t.Fatal("expected reconciliation")
	}
	if !res.Marriage.Active || !res.Marriage.DivorcedAt.IsZero() {
		t.Fatalf("expected reactivated marriage, got %+v", res.Marriage)
	}
	if !res.Marriage.StartedAt.Equal(original.StartedAt) {
		t.Fatalf("expected start time %v, got %v", original.StartedAt, res.Marriage.StartedAt)
	}

	status, err := r.Query(1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status.Marriage.Days(clock.now) != 11 {
		t.Fatalf("expected 11 days of marriage, got %d", status.Marriage.Days(clock.now))
	}
}

func TestReconcileAfterWindowStartsOver(t *testing.T) {
	r, _, clock := newTestRegistry(t)

	original := marry(t, r, 1, "b", 2).Marriage
	if _, err := r.Dissolve(1); err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	clock.Advance(ReconciliationWindow + time.Minute)

	res := marry(t, r, 1, "b", 2)
	if res.Reconciled {
		t.Fatal("expected a fresh marriage after the window")
	}
	if res.Marriage.StartedAt.Equal(original.StartedAt) {
		t.Fatal("expected a new start time")
	}
	if !res.Marriage.StartedAt.Equal(clock.now) {
		t.Fatalf("expected start time %v, got %v", clock.now, res.Marriage.StartedAt)
	}
}

func TestQueryOther(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	marry(t, r, 1, "b", 2)

	target, status, err := r.QueryOther(chatX, "@a")
	if err != nil {
		t.Fatalf("query other: %v", err)
	}
	if target.UserID != 1 || status.PartnerID != 2 {
		t.Fatalf("unexpected result %+v %+v", target, status)
	}

	if _, _, err := r.QueryOther(chatX, "zzz"); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
	target, _, err = r.QueryOther(chatX, "c")
	if !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}
	if target.UserID != 3 {
		t.Fatalf("expected resolved target 3, got %d", target.UserID)
	}
}

func TestList(t *testing.T) {
	r, dir, clock := newTestRegistry(t)

	if _, err := r.List(chatX, 1, 5); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	marry(t, r, 3, "d", 4)
	clock.Advance(48 * time.Hour)
	marry(t, r, 1, "b", 2)
	clock.Advance(time.Hour)

	page, err := r.List(chatX, 1, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || page.Pages != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Pair != NewPair(3, 4) {
		t.Fatalf("expected longest marriage first, got %+v", page.Items[0].Pair)
	}

	page, err = r.List(chatX, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Pair != NewPair(1, 2) {
		t.Fatalf("unexpected second page %+v", page)
	}

	page, err = r.List(chatX, 3, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected no items past the last page, got %d", len(page.Items))
	}

	if _, err := r.List(chatX, 0, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	dir.Observe(200, 1, "A", "a")
	dir.Observe(200, 2, "B", "b")
	page, err = r.List(200, 1, 5)
	if err != nil {
		t.Fatalf("list other chat: %v", err)
	}
	if page.Total != 1 || page.Items[0].Pair != NewPair(1, 2) {
		t.Fatalf("expected only the pair known in chat 200, got %+v", page)
	}

	if _, err := r.List(300, 1, 5); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty for unknown chat, got %v", err)
	}
}

func TestAdminPairAndUnpair(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	m, err := r.AdminPair(chatX, "a", "b")
	if err != nil {
		t.Fatalf("admin pair: %v", err)
	}
	if !m.Active || m.Pair != NewPair(1, 2) {
		t.Fatalf("unexpected marriage %+v", m)
	}

	if _, err := r.AdminPair(chatX, "a", "c"); !errors.Is(err, ErrAlreadyMarried) {
		t.Fatalf("expected ErrAlreadyMarried, got %v", err)
	}
	if _, err := r.Query(3); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("failed admin pair must not mutate state, got %v", err)
	}
	if _, err := r.AdminPair(chatX, "c", "C"); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("expected ErrSelfTarget, got %v", err)
	}
	if _, err := r.AdminPair(chatX, "c", "nobody"); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}

	if _, err := r.AdminUnpair(chatX, "a", "c"); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}
	m, err = r.AdminUnpair(chatX, "b", "a")
	if err != nil {
		t.Fatalf("admin unpair: %v", err)
	}
	if m.Active {
		t.Fatal("expected inactive marriage")
	}
	if _, err := r.AdminUnpair(chatX, "a", "b"); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried on second unpair, got %v", err)
	}
}

func TestResetAll(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	marry(t, r, 1, "b", 2)
	if _, err := r.Propose(chatX, 3, "d"); err != nil {
		t.Fatalf("propose: %v", err)
	}

	r.ResetAll()

	if _, err := r.Query(1); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}
	if _, err := r.Accept(chatX, 4); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("expected ErrNoProposal, got %v", err)
	}
}

func TestExtend(t *testing.T) {
	r, _, clock := newTestRegistry(t)

	if _, err := r.Extend(1, 3); !errors.Is(err, ErrNotMarried) {
		t.Fatalf("expected ErrNotMarried, got %v", err)
	}

	marry(t, r, 1, "b", 2)
	start := clock.now

	for _, days := range []int{0, -1, MaxExtensionDays + 1, 200000} {
		if _, err := r.Extend(1, days); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("days=%d: expected ErrInvalidArgument, got %v", days, err)
		}
	}

	m, err := r.Extend(1, 3)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := start.Add(3 * 24 * time.Hour); !m.ExtendedUntil.Equal(want) {
		t.Fatalf("expected %v, got %v", want, m.ExtendedUntil)
	}

	clock.Advance(24 * time.Hour)
	m, err = r.Extend(2, 2)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := start.Add(5 * 24 * time.Hour); !m.ExtendedUntil.Equal(want) {
		t.Fatalf("expected extension to stack to %v, got %v", want, m.ExtendedUntil)
	}

	clock.Advance(10 * 24 * time.Hour)
	m, err = r.Extend(1, 1)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := clock.now.Add(24 * time.Hour); !m.ExtendedUntil.Equal(want) {
		t.Fatalf("expected extension from now %v, got %v", want, m.ExtendedUntil)
	}

	before := m.ExtendedUntil
	m, err = r.Extend(1, MaxExtensionDays)
	if err != nil {
		t.Fatalf("extend by max days: %v", err)
	}
	if want := before.AddDate(0, 0, MaxExtensionDays); !m.ExtendedUntil.Equal(want) || !m.ExtendedUntil.After(before) {
		t.Fatalf("expected %v after %v, got %v", want, before, m.ExtendedUntil)
	}
}

func TestExtensionPrice(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if err := r.SetExtensionPrice(-5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := r.SetExtensionPrice(50); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if got := r.ExtensionPrice(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestPair(t *testing.T) {
	p := NewPair(9, 3)
	if p != NewPair(3, 9) {
		t.Fatal("pair must be order independent")
	}
	if !p.Has(9) || p.Has(4) {
		t.Fatal("unexpected Has result")
	}
	if p.Other(9) != 3 || p.Other(3) != 9 {
		t.Fatal("unexpected Other result")
	}
}

func TestConcurrentAcceptsMarryOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		r, _, _ := newTestRegistry(t)

		for _, ref := range []string{"b", "c", "d"} {
			if _, err := r.Propose(chatX, 1, ref); err != nil {
				t.Fatalf("propose %s: %v", ref, err)
			}
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			accepts int
		)
		for _, target := range []int64{2, 3, 4} {
			wg.Add(1)
			go func(target int64) {
				defer wg.Done()

				_, err := r.Accept(chatX, target)
				switch {
				case err == nil:
					mu.Lock()
					accepts++
					mu.Unlock()
				case !errors.Is(err, ErrAlreadyMarried):
					t.Errorf("accept by %d: unexpected error %v", target, err)
				}
			}(target)
		}
		wg.Wait()

		if accepts != 1 {
			t.Fatalf("expected exactly one accepted proposal, got %d", accepts)
		}
		st, err := r.Query(1)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		partner := st.Marriage.Pair.Other(1)
		for _, id := range []int64{2, 3, 4} {
			_, err := r.Query(id)
			if married := err == nil; married != (id == partner) {
				t.Fatalf("user %d: married=%v, partner is %d", id, married, partner)
			}
		}
	}
}
