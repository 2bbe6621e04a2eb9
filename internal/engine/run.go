package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

// Run drives an item's run forward from its last persisted snapshot
// until it suspends at a gate, yields for monitoring, ends, or raises
// its error flag. Losing a compare-and-swap race reloads the winner's
// snapshot and re-evaluates, so a transition is applied exactly once no
// matter how many executors enter the run
func (e *Engine) Run(ctx context.Context, id api.ItemID) error {
	st, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	for {
		if st.Terminal() || st.Suspended() || st.Error != "" {
			return nil
		}

		agent, ok := e.agents[st.Step]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStep, st.Step)
		}

		out, execErr := e.execute(ctx, agent, st)
		if execErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st, err = e.flagError(ctx, st, execErr)
			if err != nil {
				return err
			}
			continue
		}

		// a monitoring pass that observed nothing new has no transition
		// to persist
		if out.State == st {
			return nil
		}

		applied, err := e.apply(ctx, st, out.State, api.EventStep)
		if errors.Is(err, store.ErrVersionConflict) {
			if st, err = e.load(ctx, id); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		st = applied

		switch out.Kind {
		case OutcomeSuspend:
			slog.Info("Run suspended",
				log.ItemID(id),
				log.Gate(st.Gate))
			return nil
		case OutcomePoll, OutcomeTerminal:
			return nil
		}
	}
}

func (e *Engine) load(ctx context.Context, id api.ItemID) (*api.RunState, error) {
	st, err := e.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	return st, err
}

// apply persists one transition with a single compare-and-swap and
// announces it with exactly one progress event
func (e *Engine) apply(
	ctx context.Context, prev, next *api.RunState, kind api.EventKind,
) (*api.RunState, error) {
	bumped := next.Bump(e.Now())
	err := e.store.CompareAndSwap(ctx, prev.ItemID, prev.Version, bumped)
	if err != nil {
		return nil, err
	}

	slog.Debug("Transition applied",
		log.ItemID(bumped.ItemID),
		log.Step(bumped.Step),
		log.Version(bumped.Version))

	// a suspending transition carries its gate payload so subscribers
	// can render the pending decision without a re-fetch
	e.publish(&api.Event{
		ItemID: bumped.ItemID,
		Kind:   kind,
		Step:   bumped.Step,
		Seq:    bumped.Version,
		Data: bumped.GateData.Merge(api.Args{
			"status": bumped.Status,
		}),
		Timestamp: bumped.UpdatedAt,
	})
	return bumped, nil
}

// execute invokes an agent with the configured retry budget. Permanent
// failures and an exhausted budget both surface as the final error
func (e *Engine) execute(
	ctx context.Context, agent Agent, st *api.RunState,
) (*Outcome, error) {
	var retries int
	for {
		out, err := agent.Execute(ctx, st)
		if err == nil {
			return out, nil
		}
		if !capability.IsRetryable(err) || !e.shouldRetry(retries) {
			return nil, err
		}

		delay := e.retryDelay(retries)
		retries++
		slog.Warn("Step failed; backing off",
			log.ItemID(st.ItemID),
			log.Step(st.Step),
			slog.Int("attempt", retries),
			slog.Duration("delay", delay),
			log.Error(err))

		if err := e.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// flagError records an exhausted retry budget on the run. The run stays
// resumable: a manual kick clears the flag and re-enters the failed step
func (e *Engine) flagError(
	ctx context.Context, st *api.RunState, cause error,
) (*api.RunState, error) {
	slog.Error("Run failed",
		log.ItemID(st.ItemID),
		log.Step(st.Step),
		log.Error(cause))

	next := st.SetError(cause.Error())
	applied, err := e.apply(ctx, st, next, api.EventError)
	if errors.Is(err, store.ErrVersionConflict) {
		return e.load(ctx, st.ItemID)
	}
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (e *Engine) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
