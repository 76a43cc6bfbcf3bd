package agent

import (
	"encoding/json"
	"fmt"
)

// Phase is the checkout lifecycle stage of an agent.
type Phase uint8

const (
	Shopping Phase = iota
	ToQueueSlot
	InQueue
	ToCashier
	AtCashier
	ToExit
	Exited
)

var phaseNames = [...]string{
	Shopping:    "shopping",
	ToQueueSlot: "to_queue_slot",
	InQueue:     "in_queue",
	ToCashier:   "to_cashier",
	AtCashier:   "at_cashier",
	ToExit:      "to_exit",
	Exited:      "exited",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Queued reports whether the agent is waiting in or walking to the checkout line.
func (p Phase) Queued() bool {
	return p == ToQueueSlot || p == InQueue
}
