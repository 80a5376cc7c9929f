package workflow

import (
	"fmt"
	"sort"
)

// Progress is what guards see when a trigger fires
type Progress struct {
	// Final is set when the decided node leads straight to an end node
	Final bool
}

// GuardFunc decides whether a transition may be taken
type GuardFunc func(p Progress) bool

// Final is the guard of transitions that close a flow
func Final(p Progress) bool { return p.Final }

// NotFinal is the guard of transitions that hand a flow to the next approver
func NotFinal(p Progress) bool { return !p.Final }

// Rules is a transition table under construction
type Rules struct {
	table map[State]map[Trigger][]transition
}

type transition struct {
	to    State
	guard GuardFunc
}

// NewRules returns an empty table
func NewRules() *Rules {
	return &Rules{table: make(map[State]map[Trigger][]transition)}
}

// Permit adds an unguarded transition
func (r *Rules) Permit(from State, trigger Trigger, to State) *Rules {
	return r.PermitIf(from, trigger, to, nil)
}

// PermitIf adds a guarded transition. Guards are tried in the order the
// transitions were added; the first passing one wins.
func (r *Rules) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Rules {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if r.table[from] == nil {
		r.table[from] = make(map[Trigger][]transition)
	}
	r.table[from][trigger] = append(r.table[from][trigger], transition{to: to, guard: guard})
	return r
}

// Machine positions a new machine at current. Rules added afterwards
// are not seen by it.
func (r *Rules) Machine(current State) *Machine {
	if !current.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", current))
	}
	snapshot := make(map[Trigger][]transition, len(r.table[current]))
	for trigger, ts := range r.table[current] {
		snapshot[trigger] = append([]transition(nil), ts...)
	}
	return &Machine{state: current, rules: r, from: snapshot}
}

// Machine tracks one instance's state. It is not safe for concurrent use.
type Machine struct {
	state State
	rules *Rules
	from  map[Trigger][]transition
}

func (m *Machine) State() State {
	return m.state
}

// CanFire reports whether any transition is configured for trigger,
// without evaluating guards
func (m *Machine) CanFire(trigger Trigger) bool {
	return len(m.from[trigger]) > 0
}

// Fire moves the machine along the first transition whose guard accepts p
func (m *Machine) Fire(trigger Trigger, p Progress) error {
	transitions := m.from[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	for _, t := range transitions {
		if t.guard == nil || t.guard(p) {
			m.state = t.to
			m.from = m.rules.Machine(t.to).from
			return nil
		}
	}
	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.state)
}

// PermittedTriggers returns the triggers configured for the current state, sorted
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.from))
	for trigger := range m.from {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
