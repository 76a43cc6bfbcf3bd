package scene2d

// Scene2D is the static floor plan of a store for an SVG top-down renderer.
// It does not change during a run; dynamic state lives in scene.Frame.
type Scene2D struct {
	Metadata  Metadata        `json:"metadata"`
	Walls     []Line2D        `json:"walls"`
	Doors     []Line2D        `json:"doors"`
	Shelves   []Line2D        `json:"shelves"`
	Counters  []Counter2D     `json:"counters"`
	Slots     [][2]float64    `json:"queue_slots"`
	POIs      []POI2D         `json:"points_of_interest"`
	Route     RouteMarkers    `json:"route"`
	Walkable  *WalkableGrid2D `json:"walkable,omitempty"`
}

// Metadata holds store-level summary data.
type Metadata struct {
	Store       string     `json:"store"`
	Width       float64    `json:"width_m"`
	Height      float64    `json:"height_m"`
	Origin      [2]float64 `json:"origin"`
	AreaM2      float64    `json:"area_m2"`
	GeneratedAt string     `json:"generated_at"`
}

// Line2D is a wall, door or shelf segment.
type Line2D struct {
	Start [2]float64 `json:"start"`
	End   [2]float64 `json:"end"`
}

// Counter2D is a checkout counter box and its service point.
type Counter2D struct {
	ID           int        `json:"id"`
	Min          [2]float64 `json:"min"`
	Max          [2]float64 `json:"max"`
	ServicePoint [2]float64 `json:"service_point"`
}

// POI2D is a shelf location shoppers may visit.
type POI2D struct {
	Name string     `json:"name"`
	Pos  [2]float64 `json:"pos"`
	Prob float64    `json:"prob"`
}

// RouteMarkers are the fixed points every shopper passes.
type RouteMarkers struct {
	Spawn     [2]float64   `json:"spawn"`
	Entrances [][2]float64 `json:"entrances"`
	Exits     [][2]float64 `json:"exits"`
}

// WalkableGrid2D is the planning grid as a debug overlay. Blocked lists the
// row-major indices of occupied cells.
type WalkableGrid2D struct {
	Origin   [2]float64 `json:"origin"`
	CellSize float64    `json:"cell_size"`
	Cols     int        `json:"cols"`
	Rows     int        `json:"rows"`
	Blocked  []int      `json:"blocked"`
	// Regions is the number of separate walkable areas.
	Regions int `json:"regions"`
}
