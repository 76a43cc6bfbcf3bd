package analytics

// Summary holds the aggregate results of one run.
type Summary struct {
	RunID    string  `json:"run_id"`
	Store    string  `json:"store"`
	Duration float64 `json:"duration_s"`
	Ticks    int     `json:"ticks"`

	Spawned    int `json:"spawned"`
	Exited     int `json:"exited"`
	TurnedAway int `json:"turned_away"`
	StillIn    int `json:"still_in_store"`

	MeanQueueLength float64 `json:"mean_queue_length"`
	MaxQueueLength  int     `json:"max_queue_length"`
	CashierUse      float64 `json:"cashier_utilization"`

	MeanTimeInStore float64 `json:"mean_time_in_store_s"`
	MaxTimeInStore  float64 `json:"max_time_in_store_s"`
	MeanSpeed       float64 `json:"mean_walking_speed"`
	LongestStall    float64 `json:"longest_stall_s"`
	Replans         int     `json:"replans"`

	PeakOccupancy int     `json:"peak_occupancy"`
	PeakDensity   float64 `json:"peak_density_per_m2"`
	Throughput    float64 `json:"throughput_per_min"`

	Timeline []Sample `json:"timeline,omitempty"`
}

// Sample is the store state at one recorded instant.
type Sample struct {
	Time      float64 `json:"t"`
	Occupancy int     `json:"occupancy"`
	Queue     int     `json:"queue"`
	Busy      int     `json:"busy_cashiers"`
	MeanSpeed float64 `json:"mean_speed"`
}
