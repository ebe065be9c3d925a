// Package factory implements the planner factory: a registry of discovered
// planner plugins with sandboxed imports, deterministic selection, bounded
// telemetry, and an explicit quarantine/self-heal state machine.
package factory

import (
	"time"

	"overmind/internal/ranking"
)

// PlannerStatus is the fault-isolation state of a planner record.
type PlannerStatus string

const (
	// StatusActive means the planner is eligible for selection.
	StatusActive PlannerStatus = "ACTIVE"

	// StatusFailed means the last instantiation or import failed but the
	// quarantine threshold has not been reached.
	StatusFailed PlannerStatus = "FAILED"

	// StatusQuarantined means the planner failed repeatedly and is excluded
	// from selection until a heal probe succeeds or a full reload runs.
	StatusQuarantined PlannerStatus = "QUARANTINED"

	// StatusHealing means a self-heal probe is in flight.
	StatusHealing PlannerStatus = "HEALING"
)

// PlannerRecord is the registry entry for one discovered planner. Copies of
// records are handed to callers; the live record and the planner instance it
// owns never leave the factory.
type PlannerRecord struct {
	Name                string        `json:"name"`
	Capabilities        []string      `json:"capabilities"`
	ReliabilityScore    float64       `json:"reliability_score"`
	Tier                ranking.Tier  `json:"tier"`
	ProductionReady     bool          `json:"production_ready"`
	Status              PlannerStatus `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	Fingerprint         string        `json:"fingerprint,omitempty"`
	HealAttempts        int           `json:"heal_attempts"`
	DiscoveredAt        time.Time     `json:"discovered_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (r *PlannerRecord) Clone() PlannerRecord {
	out := *r
	out.Capabilities = append([]string(nil), r.Capabilities...)
	return out
}

// candidate converts the record into the ranking input shape.
func (r *PlannerRecord) candidate() ranking.Candidate {
	return ranking.Candidate{
		Name:            r.Name,
		Capabilities:    r.Capabilities,
		Reliability:     r.ReliabilityScore,
		Tier:            r.Tier,
		ProductionReady: r.ProductionReady,
	}
}

// =============================================================================
// STATE MACHINE - PURE TRANSITION FUNCTIONS
// =============================================================================
// ACTIVE -> FAILED -> QUARANTINED -> HEALING -> ACTIVE | QUARANTINED.
// Kept free of I/O so transitions are testable in isolation.

// NextStatusOnFailure returns the status and failure count after one more
// failure. The count reaching threshold quarantines the planner.
func NextStatusOnFailure(failures, threshold int) (PlannerStatus, int) {
	failures++
	if threshold > 0 && failures >= threshold {
		return StatusQuarantined, failures
	}
	return StatusFailed, failures
}

// NextStatusOnHeal returns the status after a heal probe completes.
func NextStatusOnHeal(probeSucceeded bool) PlannerStatus {
	if probeSucceeded {
		return StatusActive
	}
	return StatusQuarantined
}

// =============================================================================
// RELIABILITY DYNAMICS
// =============================================================================

const (
	reliabilitySuccessBump  = 0.05
	reliabilityFailureDecay = 0.8
)

// clampReliability keeps a score inside [0,1].
func clampReliability(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// bumpReliability rewards a successful instantiation.
func bumpReliability(score float64) float64 {
	return clampReliability(score + reliabilitySuccessBump)
}

// decayReliability penalizes a failure.
func decayReliability(score float64) float64 {
	return clampReliability(score * reliabilityFailureDecay)
}
