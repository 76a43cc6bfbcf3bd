package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

// ProjectFile is the store file name looked up by LoadProject.
const ProjectFile = "store.yaml"

// Default returns the run parameters used when a spec file leaves them out.
// Store geometry has no defaults.
func Default() *StoreSpec {
	return &StoreSpec{
		DT:    0.05,
		Steps: 10000,
		Seed:  1,
		Physics: Physics{
			A:             1.5,
			B:             0.4,
			AW:            10,
			BW:            0.08,
			DesiredSpeed:  1.2,
			Tau:           0.6,
			BodyStiffness: 200,
			Damping:       0.2,
			Radius:        0.15,
			NeighborRange: 2.0,
			WallRange:     1.0,
		},
		Routing: Routing{
			GridSize:          0.5,
			ObstacleBuffer:    0.25,
			MaxIterations:     5000,
			SearchRadius:      10,
			WaypointThreshold: 0.2,
		},
		Queue: Queue{
			ServiceTime: Range{Min: 3, Max: 7},
		},
		Agents: Agents{
			MinStops: 1,
			Dwell:    Range{Min: 1, Max: 3},
		},
	}
}

// Random streams. Each component seeds its own source so that one
// component's draws never replay another's.
const (
	StreamArrivals int64 = iota
	StreamCheckout
	StreamForces
)

// StreamSeed returns the seed of one component's random source.
func (s *StoreSpec) StreamSeed(stream int64) int64 {
	return s.Seed + stream
}

// Load reads a store spec from a YAML file on top of Default.
func Load(path string) (*StoreSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (*StoreSpec, error) {
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing spec YAML: %w", err)
	}
	return s, nil
}

// LoadProject loads a store spec from a project directory.
// It looks for store.yaml in the given directory.
func LoadProject(projectDir string) (*StoreSpec, error) {
	return Load(filepath.Join(projectDir, ProjectFile))
}

// Point is a 2D coordinate written as [x, y].
type Point struct {
	X, Y float64
}

// Vec converts the point to a vector.
func (p Point) Vec() geo.Vec2 { return geo.Vec2{X: p.X, Y: p.Y} }

// UnmarshalYAML accepts a two-element sequence.
func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	var xy []float64
	if err := node.Decode(&xy); err != nil {
		return fmt.Errorf("line %d: point must be [x, y]: %w", node.Line, err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("line %d: point must have 2 coordinates, got %d", node.Line, len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// MarshalJSON writes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// Segment is a wall or shelf edge written as [[x1, y1], [x2, y2]].
type Segment struct {
	A, B Point
}

// Geo converts the segment to geometry.
func (s Segment) Geo() geo.Segment { return geo.Segment{A: s.A.Vec(), B: s.B.Vec()} }

// UnmarshalYAML accepts a two-point sequence.
func (s *Segment) UnmarshalYAML(node *yaml.Node) error {
	var pts []Point
	if err := node.Decode(&pts); err != nil {
		return err
	}
	if len(pts) != 2 {
		return fmt.Errorf("line %d: segment must have 2 points, got %d", node.Line, len(pts))
	}
	s.A, s.B = pts[0], pts[1]
	return nil
}

// MarshalJSON writes the segment as [[x1, y1], [x2, y2]].
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Point{s.A, s.B})
}
