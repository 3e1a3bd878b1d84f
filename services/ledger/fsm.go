package ledger

import (
	"context"

	"github.com/looplab/fsm"
)

const (
	StateNotStarted = "NOT_STARTED"
	StateProcessing = "PROCESSING"
	StateDone       = "DONE"
	StateFailed     = "FAILED"

	EventStart  = "START"
	EventFinish = "FINISH"
	EventFail   = "FAIL"
)

// newFiniteStateMachine creates the lifecycle of a builder:
//
//	NOT_STARTED --START--> PROCESSING --FINISH--> DONE
//	NOT_STARTED, PROCESSING --FAIL--> FAILED
//
// DONE and FAILED are final.
func (b *Builder) newFiniteStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateNotStarted,
		fsm.Events{
			{
				Name: EventStart,
				Src:  []string{StateNotStarted},
				Dst:  StateProcessing,
			},
			{
				Name: EventFinish,
				Src:  []string{StateProcessing},
				Dst:  StateDone,
			},
			{
				Name: EventFail,
				Src:  []string{StateNotStarted, StateProcessing},
				Dst:  StateFailed,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				b.logger.Debugf("[LedgerBuilder] %s: %s -> %s", e.Event, e.Src, e.Dst)
			},
		},
	)
}
