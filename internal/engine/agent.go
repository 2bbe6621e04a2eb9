package engine

import (
	"context"
	"errors"

	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Agent is one unit of pipeline work, selected by the run's step
	// pointer. An agent receives the current snapshot and returns the
	// updated snapshot together with how the engine should proceed; it
	// never persists state itself
	Agent interface {
		Step() api.Step
		Execute(ctx context.Context, st *api.RunState) (*Outcome, error)
	}

	// OutcomeKind tells the engine what to do after applying an agent's
	// transition
	OutcomeKind int

	// Outcome is the result of one agent execution
	Outcome struct {
		Kind  OutcomeKind
		State *api.RunState
	}
)

const (
	// OutcomeAdvance applies the transition and keeps the run moving
	OutcomeAdvance OutcomeKind = iota

	// OutcomeSuspend applies the transition and parks the run at its gate
	// until a human decision arrives
	OutcomeSuspend

	// OutcomePoll applies the transition and yields; the supervisor
	// re-enters the run on its monitoring interval
	OutcomePoll

	// OutcomeTerminal applies the transition and ends the run
	OutcomeTerminal
)

var ErrUnknownStep = errors.New("no agent for step")

// Advance wraps a transition that keeps the run moving
func Advance(st *api.RunState) *Outcome {
	return &Outcome{Kind: OutcomeAdvance, State: st}
}

// Suspend wraps a transition that parks the run at a gate
func Suspend(st *api.RunState) *Outcome {
	return &Outcome{Kind: OutcomeSuspend, State: st}
}

// Poll wraps a monitoring pass that yields until the next interval
func Poll(st *api.RunState) *Outcome {
	return &Outcome{Kind: OutcomePoll, State: st}
}

// Terminal wraps a transition that ends the run
func Terminal(st *api.RunState) *Outcome {
	return &Outcome{Kind: OutcomeTerminal, State: st}
}
