package updater

import "github.com/looplab/fsm"

const (
	stateIdle    = "idle"
	statePending = "pending"
	stateWriting = "writing"

	eventEdit   = "edit"
	eventFire   = "fire"
	eventResume = "resume"
	eventSettle = "settle"
)

func newMachine() *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventEdit, Src: []string{stateIdle}, Dst: statePending},
			{Name: eventFire, Src: []string{statePending}, Dst: stateWriting},
			{Name: eventResume, Src: []string{stateWriting}, Dst: statePending},
			{Name: eventSettle, Src: []string{stateWriting}, Dst: stateIdle},
		},
		fsm.Callbacks{},
	)
}
