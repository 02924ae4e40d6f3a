package ledger

import (
	"fmt"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

// Policy decides whether a chain may move from one status to another.
type Policy interface {
	Allow(from, to domain.Status) bool
	Name() string
}

// Policy names accepted in configuration.
const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// Permissive accepts any well-formed status, repeats included.
type Permissive struct{}

func (Permissive) Allow(from, to domain.Status) bool { return to.Valid() }
func (Permissive) Name() string { return PolicyPermissive }

// StrictTransitions defines allowed status transitions.
// Key is the current status, value is the list of valid next statuses.
// Statuses with no entry are terminal.
var StrictTransitions = map[domain.Status][]domain.Status{
	domain.StatusConfirmed: {domain.StatusPickedUp, domain.StatusInTransit, domain.StatusCancelled},
	domain.StatusPickedUp:  {domain.StatusInTransit, domain.StatusDelivered},
	domain.StatusInTransit: {domain.StatusDelivered},
}

// Strict enforces the delivery pipeline order.
type Strict struct{}

func (Strict) Allow(from, to domain.Status) bool {
	for _, target := range StrictTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func (Strict) Name() string { return PolicyStrict }

// IsTerminal reports whether no strict transition leaves s.
func IsTerminal(s domain.Status) bool {
	return len(StrictTransitions[s]) == 0
}

// PolicyByName resolves a configured policy. Empty selects Permissive.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyPermissive:
		return Permissive{}, nil
	case PolicyStrict:
		return Strict{}, nil
	default:
		return nil, fmt.Errorf("unknown transition policy %q", name)
	}
}
