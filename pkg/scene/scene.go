// Package scene captures the dynamic state of a running simulation as a
// frame that viewers can draw and clients can poll.
package scene

import (
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

// AgentState is one shopper as drawn in a frame.
type AgentState struct {
	ID       int         `json:"id"`
	Position geo.Vec2    `json:"position"`
	Velocity geo.Vec2    `json:"velocity"`
	Radius   float64     `json:"radius"`
	Phase    agent.Phase `json:"phase"`
	Waiting  bool        `json:"waiting"`
	Goal     *geo.Vec2   `json:"goal,omitempty"`
}

// CashierState is one checkout counter and who holds it.
type CashierState struct {
	ID           int      `json:"id"`
	ServicePoint geo.Vec2 `json:"service_point"`
	Serving      int      `json:"serving"`
	Expecting    int      `json:"expecting"`
}

// Frame is the state of the store at one tick.
type Frame struct {
	Metadata Metadata       `json:"metadata"`
	Agents   []AgentState   `json:"agents"`
	Cashiers []CashierState `json:"cashiers"`
	Queue    []int          `json:"queue"`
	Groups   Groups         `json:"groups"`
}

// Metadata holds frame-level information.
type Metadata struct {
	RunID       string   `json:"run_id"`
	Store       string   `json:"store"`
	Tick        int      `json:"tick"`
	Time        float64  `json:"time"`
	GeneratedAt string   `json:"generated_at"`
	Bounds      geo.Rect `json:"bounds"`
}

// Groups indexes agent IDs for fast filtering on the client.
type Groups struct {
	Phases  map[string][]int `json:"phases"`
	Waiting []int            `json:"waiting"`
}

// NewFrame creates an empty frame.
func NewFrame() *Frame {
	return &Frame{
		Agents:   []AgentState{},
		Cashiers: []CashierState{},
		Queue:    []int{},
		Groups: Groups{
			Phases:  make(map[string][]int),
			Waiting: []int{},
		},
	}
}
