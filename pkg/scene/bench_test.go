package scene

import (
	"testing"
)

func TestBusyStoreFrame(t *testing.T) {
	sm := runDefaultStore(t, 6000)
	f := Capture("", sm)
	t.Logf("busy store at %.0fs: %d agents, %d queued", f.Metadata.Time, len(f.Agents), len(f.Queue))
	for phase, ids := range f.Groups.Phases {
		t.Logf("  %s: %d", phase, len(ids))
	}
}

func BenchmarkCapture(b *testing.B) {
	sm := runDefaultStore(b, 3000)
	for b.Loop() {
		Capture("", sm)
	}
}

func BenchmarkValidateFrame(b *testing.B) {
	f := Capture("", runDefaultStore(b, 3000))
	for b.Loop() {
		ValidateFrame(f)
	}
}
