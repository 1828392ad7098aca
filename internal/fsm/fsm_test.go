package fsm

import "testing"

type pingEvent struct{}
type toBEvent struct{}

func TestBasicTransition(t *testing.T) {
	var log []string

	var stateB State
	stateA := func(m *Machine, e Event) Result {
		switch e.(type) {
		case lifecycleEvent:
			if e == EntryEvent {
				log = append(log, "A:entry")
			} else {
				log = append(log, "A:exit")
			}
			return Result{Outcome: Handled}
		case toBEvent:
			return Result{Outcome: Transition, Next: stateB}
		}
		return Result{Outcome: Ignored}
	}
	stateB = func(m *Machine, e Event) Result {
		switch e.(type) {
		case lifecycleEvent:
			if e == EntryEvent {
				log = append(log, "B:entry")
			} else {
				log = append(log, "B:exit")
			}
			return Result{Outcome: Handled}
		case pingEvent:
			log = append(log, "B:ping")
			return Result{Outcome: Handled}
		}
		return Result{Outcome: Ignored}
	}

	m := &Machine{}
	m.Init(stateA)
	m.Dispatch(toBEvent{})
	m.Dispatch(pingEvent{})

	want := []string{"A:entry", "A:exit", "B:entry", "B:ping"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestSuperDelegatesToParent(t *testing.T) {
	var parentHandled bool
	parent := func(m *Machine, e Event) Result {
		if _, ok := e.(pingEvent); ok {
			parentHandled = true
			return Result{Outcome: Handled}
		}
		return Result{Outcome: Ignored}
	}
	child := func(m *Machine, e Event) Result {
		if _, ok := e.(lifecycleEvent); ok {
			return Result{Outcome: Handled}
		}
		return Result{Outcome: Super, Next: parent}
	}

	m := &Machine{}
	m.Init(child)
	outcome := m.Dispatch(pingEvent{})

	if !parentHandled {
		t.Error("parent state never received the delegated event")
	}
	if outcome != Handled {
		t.Errorf("Dispatch outcome = %v, want Handled", outcome)
	}
	if m.Current() == nil {
		t.Error("Super must not change the current state")
	}
}

func TestDispatchOnNilMachineStateIsIgnored(t *testing.T) {
	m := &Machine{}
	if got := m.Dispatch(pingEvent{}); got != Ignored {
		t.Errorf("Dispatch on uninitialized machine = %v, want Ignored", got)
	}
}
