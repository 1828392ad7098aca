// Package fsm is a small hierarchical state machine runtime: each state
// is a plain function value dispatching an event and returning a tagged
// Result, instead of the raw function-pointer-plus-signal-enum approach
// of the reference implementation. Composing states hierarchically is
// done by a state returning Super with its parent's handler.
package fsm

// Event is an opaque signal delivered to a state handler. Callers define
// their own event values (typically a small int-based type) and switch
// on them inside a State function.
type Event any

// Outcome tags what a State handler did with the event it was given.
type Outcome int

const (
	// Handled means the event was processed; no transition occurs.
	Handled Outcome = iota
	// Ignored means the state had nothing to do with the event; used by
	// callers that want to distinguish "handled" from "uninterested"
	// for diagnostics. Dispatch treats it the same as Handled.
	Ignored
	// Transition means the machine should move to Result.Next,
	// running Exit on the current state and Entry on the new one.
	Transition
	// Super means the event should be re-dispatched to Result.Next,
	// the current state's parent handler.
	Super
)

// Result is what a State handler returns from Dispatch.
type Result struct {
	Outcome Outcome
	Next    State
}

// State is a state handler. entry/exit transitions are modeled as
// ordinary events (see EntryEvent, ExitEvent) dispatched by the Machine,
// not as separate methods, matching how the reference implementation
// threads SIGNAL_ENTRY/SIGNAL_EXIT through the same dispatch function.
type State func(m *Machine, e Event) Result

// Sentinel lifecycle events dispatched by the Machine around a
// transition and at construction time.
type lifecycleEvent int

const (
	// EntryEvent is dispatched to a state right after it becomes current.
	EntryEvent lifecycleEvent = iota
	// ExitEvent is dispatched to a state right before it stops being current.
	ExitEvent
)

// Machine holds the current state and drives Dispatch. Embed it (or hold
// one by value) in a domain-specific context type; State handlers
// receive *Machine and type-assert or otherwise reach the surrounding
// context through a field the caller adds.
type Machine struct {
	current State
}

// Init sets the machine's starting state and runs its entry action.
func (m *Machine) Init(s State) {
	m.current = s
	if s != nil {
		s(m, EntryEvent)
	}
}

// Current returns the machine's active state handler.
func (m *Machine) Current() State {
	return m.current
}

// Dispatch delivers e to the current state, following Super chains and
// performing Exit/Entry around any Transition, up to a small bound to
// guard against a cyclic Super chain.
func (m *Machine) Dispatch(e Event) Outcome {
	const maxSuperHops = 16
	s := m.current
	for hops := 0; hops < maxSuperHops; hops++ {
		if s == nil {
			return Ignored
		}
		res := s(m, e)
		switch res.Outcome {
		case Transition:
			if m.current != nil {
				m.current(m, ExitEvent)
			}
			m.current = res.Next
			if m.current != nil {
				m.current(m, EntryEvent)
			}
			return Transition
		case Super:
			s = res.Next
			continue
		default:
			return res.Outcome
		}
	}
	return Ignored
}
