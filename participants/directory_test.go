package participants

import (
	"errors"
	"testing"
)

func TestObserveKeepsLatestName(t *testing.T) {
	d := NewDirectory()
	d.Observe(1, 10, "Alice", "alice_w")
	d.Observe(1, 10, "Alicia", "Alice_W")

	p, err := d.Lookup(1, 10)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.FirstName != "Alicia" {
		t.Fatalf("expected latest name Alicia, got %q", p.FirstName)
	}
	if p.Handle != "alice_w" {
		t.Fatalf("expected folded handle alice_w, got %q", p.Handle)
	}
	if got := len(d.Members(1)); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
}

func TestHandleFallsBackToUserID(t *testing.T) {
	if got := Handle(42, ""); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
}

func TestLookupIsChatScoped(t *testing.T) {
	d := NewDirectory()
	d.Observe(1, 10, "Alice", "alice")

	if _, err := d.Lookup(2, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := d.Lookup(1, 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := d.Name(2, 10, "Неизвестно"); got != "Неизвестно" {
		t.Fatalf("expected fallback name, got %q", got)
	}
}

func TestMembersFirstSeenOrder(t *testing.T) {
	d := NewDirectory()
	d.Observe(1, 30, "C", "")
	d.Observe(1, 10, "A", "")
	d.Observe(1, 20, "B", "")
	d.Observe(1, 30, "C2", "")

	members := d.Members(1)
	want := []int64{30, 10, 20}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(members))
	}
	for i, id := range want {
		if members[i].UserID != id {
			t.Fatalf("member %d: expected %d, got %d", i, id, members[i].UserID)
		}
	}
}

func TestResolve(t *testing.T) {
	d := NewDirectory()
	d.Load([]Participant{
		{ChatID: 1, UserID: 10, FirstName: "Маша", Handle: "masha"},
		{ChatID: 1, UserID: 20, FirstName: "Petr", Handle: "20"},
		{ChatID: 1, UserID: 30, FirstName: "masha", Handle: "other"},
	})

	tt := []struct {
		name    string
		ref     string
		want    int64
		wantErr error
	}{
		{name: "handle", ref: "masha", want: 10},
		{name: "handle_with_sigil", ref: "@Masha", want: 10},
		{name: "telegram_link", ref: "t.me/masha", want: 10},
		{name: "https_link", ref: "https://t.me/masha", want: 10},
		{name: "first_name_case_insensitive", ref: "МАША", want: 10},
		{name: "numeric_fallback_handle", ref: "20", want: 20},
		{name: "first_name_latin", ref: " petr ", want: 20},
		{name: "handle_of_later_member", ref: "other", want: 30},
		{name: "unknown", ref: "nobody", wantErr: ErrNotFound},
		{name: "empty", ref: "@", wantErr: ErrNotFound},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			p, err := d.Resolve(1, tc.ref)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve %q: %v", tc.ref, err)
			}
			if p.UserID != tc.want {
				t.Fatalf("resolve %q: expected %d, got %d", tc.ref, tc.want, p.UserID)
			}
		})
	}
}

func TestResolveUnknownChat(t *testing.T) {
	d := NewDirectory()
	if _, err := d.Resolve(99, "anyone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
