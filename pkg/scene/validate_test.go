package scene

import (
	"math"
	"testing"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/queue"
)

func validFrame() *Frame {
	f := NewFrame()
	f.Agents = []AgentState{
		{ID: 1, Position: geo.V(2, 3), Radius: 0.15, Phase: agent.Shopping, Waiting: true},
		{ID: 2, Position: geo.V(5, 5), Radius: 0.15, Phase: agent.InQueue},
		{ID: 3, Position: geo.V(6, 6), Radius: 0.15, Phase: agent.AtCashier},
	}
	f.Groups.Phases["shopping"] = []int{1}
	f.Groups.Phases["in_queue"] = []int{2}
	f.Groups.Phases["at_cashier"] = []int{3}
	f.Groups.Waiting = []int{1}
	f.Cashiers = []CashierState{
		{ID: 0, ServicePoint: geo.V(6, 5.5), Serving: 3, Expecting: queue.NoAgent},
	}
	f.Queue = []int{2}
	f.Metadata = Metadata{
		Store:  "test",
		Bounds: geo.Rect{Min: geo.V(0, 0), Max: geo.V(10, 8)},
	}
	return f
}

func TestValidateFrame_Valid(t *testing.T) {
	r := ValidateFrame(validFrame())
	if !r.Valid {
		t.Errorf("expected valid, got %d errors", len(r.Errors))
		for _, e := range r.Errors {
			t.Logf("  error: %s", e.Message)
		}
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func TestValidateFrame_Nil(t *testing.T) {
	r := ValidateFrame(nil)
	if r.Valid {
		t.Error("expected invalid for nil frame")
	}
}

func TestValidateFrame_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *Frame)
	}{
		{"duplicate id", func(f *Frame) {
			f.Agents = append(f.Agents, AgentState{ID: 1, Position: geo.V(1, 1), Phase: agent.Shopping, Waiting: true})
		}},
		{"negative id", func(f *Frame) {
			f.Agents[0].ID = -4
		}},
		{"orphaned group reference", func(f *Frame) {
			f.Groups.Phases["shopping"] = append(f.Groups.Phases["shopping"], 99)
		}},
		{"missing phase membership", func(f *Frame) {
			f.Groups.Phases["in_queue"] = []int{}
		}},
		{"waiting group disagrees", func(f *Frame) {
			f.Groups.Waiting = nil
		}},
		{"non-finite position", func(f *Frame) {
			f.Agents[1].Position.X = math.NaN()
		}},
		{"cashier held twice", func(f *Frame) {
			f.Cashiers[0].Expecting = 1
		}},
		{"cashier held by missing agent", func(f *Frame) {
			f.Cashiers[0].Serving = 42
		}},
		{"queue holds missing agent", func(f *Frame) {
			f.Queue = append(f.Queue, 42)
		}},
		{"queued agent in wrong phase", func(f *Frame) {
			f.Queue = append(f.Queue, 3)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFrame()
			tt.mutate(f)
			if r := ValidateFrame(f); r.Valid {
				t.Error("expected invalid frame")
			}
		})
	}
}

func TestValidateFrame_OutOfBoundsWarning(t *testing.T) {
	f := validFrame()
	f.Agents[0].Position = geo.V(-3, 3)
	f.Agents[1].Position = geo.V(14, 3)
	r := ValidateFrame(f)
	if !r.Valid {
		t.Errorf("out-of-bounds agents should warn, got errors %v", r.Errors)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %d, want one per frame", len(r.Warnings))
	}
}

func TestValidateFrame_DoorwayTolerated(t *testing.T) {
	f := validFrame()
	f.Agents[0].Position = geo.V(-0.5, 3)
	if r := ValidateFrame(f); len(r.Warnings) != 0 {
		t.Errorf("agent just outside the outline warned: %v", r.Warnings)
	}
}
