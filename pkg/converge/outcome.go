package converge

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/newtron-network/racctl/pkg/metrics"
	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/util"
)

// State is a target's position in its lifecycle.
type State string

const (
	StatePending               State = "pending"
	StateErrored               State = "errored"
	StateApplied               State = "applied"
	StateAddressConverged      State = "address-converged"
	StateConnectivityConfirmed State = "connectivity-confirmed"
	StateGaveUp                State = "gave-up"
	StateTimedOut              State = "timed-out"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateConnectivityConfirmed, StateGaveUp, StateTimedOut:
		return true
	}
	return false
}

const (
	EventApplyOK     = "apply-ok"
	EventApplyFailed = "apply-failed"
	EventGiveUp      = "give-up"
	EventAddressOK   = "address-ok"
	EventReachable   = "reachable"
	EventTimeout     = "timeout"
)

// Target is one module interface to configure.
type Target struct {
	ModuleType string
	Slot       string
	Addressing provision.Addressing
}

// Name returns the console module name ("server-1").
func (t Target) Name() string {
	return util.ModuleName(t.ModuleType, t.Slot)
}

// Outcome tracks one target through a run. Terminal states have no outgoing
// events, so an outcome never moves backwards.
type Outcome struct {
	Target Target

	ApplyAttempts int
	Polls         int
	Probes        int
	Address       string // last address the module reported
	Err           error
	Duration      time.Duration

	machine *fsm.FSM
	log     *logrus.Entry
	started time.Time
}

func newOutcome(t Target, log *logrus.Entry) *Outcome {
	o := &Outcome{
		Target:  t,
		log:     util.WithTarget(log, t.Name()),
		started: time.Now(),
	}
	o.machine = fsm.NewFSM(
		string(StatePending),
		fsm.Events{
			{Name: EventApplyOK, Src: []string{string(StatePending), string(StateErrored)}, Dst: string(StateApplied)},
			{Name: EventApplyFailed, Src: []string{string(StatePending)}, Dst: string(StateErrored)},
			{Name: EventGiveUp, Src: []string{string(StateErrored)}, Dst: string(StateGaveUp)},
			{Name: EventAddressOK, Src: []string{string(StateApplied)}, Dst: string(StateAddressConverged)},
			{Name: EventReachable, Src: []string{string(StateAddressConverged)}, Dst: string(StateConnectivityConfirmed)},
			{Name: EventTimeout, Src: []string{string(StateApplied), string(StateAddressConverged)}, Dst: string(StateTimedOut)},
		},
		fsm.Callbacks{
			"enter_state": wrapEvent(o.enterState),
		},
	)
	return o
}

// wrapEvent lets a callback fail its event.
func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// enterState records the cause carried by a failing event and observes the transition.
func (o *Outcome) enterState(_ context.Context, e *fsm.Event) error {
	if len(e.Args) > 0 {
		if err, ok := e.Args[0].(error); ok && err != nil {
			o.Err = err
		}
	}
	if State(e.Dst).Terminal() {
		o.Duration = time.Since(o.started)
	}
	metrics.ObserveTransition(e.Dst)
	o.log.Debugf("%s: %s -> %s on %s", o.Target.Name(), e.Src, e.Dst, e.Event)
	return nil
}

// State returns the current lifecycle state.
func (o *Outcome) State() State {
	return State(o.machine.Current())
}

// Done reports whether the outcome is terminal.
func (o *Outcome) Done() bool {
	return o.State().Terminal()
}

// Converged reports whether connectivity was confirmed.
func (o *Outcome) Converged() bool {
	return o.State() == StateConnectivityConfirmed
}

func (o *Outcome) fire(ctx context.Context, event string, cause error) error {
	if cause != nil {
		return o.machine.Event(ctx, event, cause)
	}
	return o.machine.Event(ctx, event)
}
