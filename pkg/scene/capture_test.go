package scene

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

func runDefaultStore(t testing.TB, steps int) *sim.Simulation {
	t.Helper()
	s, err := spec.LoadProject("../../examples/default-store")
	if err != nil {
		t.Fatal(err)
	}
	sm, err := sim.New(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sm.Run(context.Background(), steps); err != nil {
		t.Fatal(err)
	}
	return sm
}

func TestCaptureDefaultStore(t *testing.T) {
	sm := runDefaultStore(t, 2400)
	f := Capture("run-1", sm)

	if f.Metadata.RunID != "run-1" || f.Metadata.Store != "default-store" {
		t.Errorf("metadata = %+v", f.Metadata)
	}
	if f.Metadata.Tick != 2400 {
		t.Errorf("tick = %d, want 2400", f.Metadata.Tick)
	}
	if len(f.Agents) == 0 {
		t.Fatal("no agents in store after two minutes")
	}
	if len(f.Cashiers) != len(sm.Spec().Environment.Cashiers) {
		t.Errorf("cashiers = %d, want %d", len(f.Cashiers), len(sm.Spec().Environment.Cashiers))
	}
	if len(f.Queue) != sm.Queue().Len() {
		t.Errorf("queue = %d, want %d", len(f.Queue), sm.Queue().Len())
	}

	grouped := 0
	for _, ids := range f.Groups.Phases {
		grouped += len(ids)
	}
	if grouped != len(f.Agents) {
		t.Errorf("phase groups hold %d agents, frame has %d", grouped, len(f.Agents))
	}

	r := ValidateFrame(f)
	if !r.Valid {
		for _, e := range r.Errors {
			t.Logf("  error: %s", e.Message)
		}
		t.Fatalf("captured frame invalid: %s", r.Summary)
	}
	t.Logf("frame: %d agents, %d queued, %s", len(f.Agents), len(f.Queue), r.Summary)
}

func TestCaptureSkipsScheduledAgents(t *testing.T) {
	s, err := spec.LoadProject("../../examples/default-store")
	if err != nil {
		t.Fatal(err)
	}
	s.Agents.SpawnRate = 0
	s.Agents.NAgents = 4
	s.Agents.MaxSpawnTime = 1000
	sm, err := sim.New(s, nil)
	if err != nil {
		t.Fatal(err)
	}

	f := Capture("", sm)
	active := 0
	for _, a := range sm.Agents() {
		if a.Active {
			active++
		}
	}
	if len(f.Agents) != active {
		t.Errorf("frame has %d agents, %d are active", len(f.Agents), active)
	}
}

func TestCaptureIsDetached(t *testing.T) {
	sm := runDefaultStore(t, 400)
	f := Capture("", sm)
	if len(f.Agents) == 0 {
		t.Skip("store empty at 20s")
	}
	before := f.Agents[0].Position
	sm.Tick()
	if f.Agents[0].Position != before {
		t.Error("frame changed when the simulation ticked")
	}
}

func TestFrameJSON(t *testing.T) {
	f := validFrame()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	agents := decoded["agents"].([]any)
	first := agents[0].(map[string]any)
	if first["phase"] != "shopping" {
		t.Errorf("phase encoded as %v, want its name", first["phase"])
	}
	if _, ok := first["goal"]; ok {
		t.Error("goal should be omitted when unset")
	}
}
