package ledger

import (
	"testing"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

func TestStrict_Allow(t *testing.T) {
	tests := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusConfirmed, domain.StatusPickedUp, true},
		{domain.StatusConfirmed, domain.StatusInTransit, true},
		{domain.StatusConfirmed, domain.StatusCancelled, true},
		{domain.StatusConfirmed, domain.StatusDelivered, false},
		{domain.StatusPickedUp, domain.StatusInTransit, true},
		{domain.StatusPickedUp, domain.StatusDelivered, true},
		{domain.StatusPickedUp, domain.StatusConfirmed, false},
		{domain.StatusInTransit, domain.StatusDelivered, true},
		{domain.StatusInTransit, domain.StatusInTransit, false},
		{domain.StatusDelivered, domain.StatusCancelled, false},
		{domain.StatusCancelled, domain.StatusPickedUp, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := (Strict{}).Allow(tt.from, tt.to); got != tt.want {
				t.Errorf("Allow(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}

	if !IsTerminal(domain.StatusDelivered) || !IsTerminal(domain.StatusCancelled) || IsTerminal(domain.StatusConfirmed) {
		t.Error("unexpected terminal statuses")
	}
}

func TestPermissive_Allow(t *testing.T) {
	p := Permissive{}
	if !p.Allow(domain.StatusDelivered, domain.StatusPickedUp) {
		t.Error("expected permissive policy to allow going back")
	}
	if !p.Allow(domain.StatusPickedUp, domain.StatusPickedUp) {
		t.Error("expected permissive policy to allow repeats")
	}
	if p.Allow(domain.StatusConfirmed, "") {
		t.Error("expected empty status to be rejected")
	}
}

func TestPolicyByName(t *testing.T) {
	for name, want := range map[string]string{"": PolicyPermissive, "permissive": PolicyPermissive, "strict": PolicyStrict} {
		p, err := PolicyByName(name)
		if err != nil {
			t.Fatalf("PolicyByName(%q): %v", name, err)
		}
		if p.Name() != want {
			t.Errorf("PolicyByName(%q) = %s, want %s", name, p.Name(), want)
		}
	}
	if _, err := PolicyByName("lenient"); err == nil {
		t.Error("expected unknown policy to fail")
	}
}
