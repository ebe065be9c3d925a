package telemetry

import "time"

// SelectionSample records one SelectBestPlanner decision. Immutable once
// recorded.
type SelectionSample struct {
	ID                   string             `json:"id"`
	Timestamp            time.Time          `json:"timestamp"`
	ObjectiveLength      int                `json:"objective_length"`
	RequiredCapabilities []string           `json:"required_capabilities"`
	ChosenPlanner        string             `json:"chosen_planner"`
	Score                float64            `json:"score"`
	CandidateCount       int                `json:"candidate_count"`
	DeepContext          bool               `json:"deep_context"`
	HotspotCount         int                `json:"hotspot_count"`
	Breakdown            map[string]float64 `json:"breakdown,omitempty"`
	Duration             time.Duration      `json:"duration_ns"`
	BoostConfig          map[string]float64 `json:"boost_config,omitempty"`
}

// InstantiationSample records one planner instantiation attempt.
type InstantiationSample struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Planner   string        `json:"planner"`
	Success   bool          `json:"success"`
	CacheHit  bool          `json:"cache_hit"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}
