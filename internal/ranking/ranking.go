// Package ranking implements pure, deterministic planner scoring: capability
// matching, a weighted rank hint, and deep-context boosts. Nothing here
// depends on map iteration order, hashing, or randomness - identical inputs
// always produce identical ordered output, across runs and processes.
package ranking

import (
	"sort"

	"overmind/internal/config"
)

// Tier classifies a planner's maturity.
type Tier string

const (
	TierExperimental Tier = "experimental"
	TierStable       Tier = "stable"
	TierProduction   Tier = "production"
)

// Score returns the tier's contribution on a [0,1] scale.
func (t Tier) Score() float64 {
	switch t {
	case TierProduction:
		return 1.0
	case TierStable:
		return 0.6
	case TierExperimental:
		return 0.3
	default:
		return 0.3
	}
}

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierExperimental, TierStable, TierProduction:
		return true
	}
	return false
}

// Capability tags with ranking significance.
const (
	CapDeepIndexAware = "deep_index_aware"
	CapHotspotAware   = "hotspot_aware"
)

// DeepContext carries optional enrichment data supplied by the caller.
// A populated index summary and a high hotspot count can boost
// capability-aware planners.
type DeepContext struct {
	IndexSummary string
	HotspotCount int
}

// Candidate is the slice of planner state ranking needs. The factory builds
// candidates from its records under lock; ranking never touches shared state.
type Candidate struct {
	Name            string
	Capabilities    []string
	Reliability     float64
	Tier            Tier
	ProductionReady bool
}

// Ranked pairs a candidate with its total score and per-term breakdown.
type Ranked struct {
	Candidate Candidate
	Score     float64
	Breakdown map[string]float64
}

// CapabilitiesMatchRatio returns 1.0 when required is empty, otherwise the
// fraction of required capabilities the offered set covers.
func CapabilitiesMatchRatio(required, offered []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	offeredSet := make(map[string]struct{}, len(offered))
	for _, cap := range offered {
		offeredSet[cap] = struct{}{}
	}
	matched := 0
	for _, cap := range required {
		if _, ok := offeredSet[cap]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// ComputeRankHint produces a deterministic weighted score. Higher match
// ratio, higher reliability, production readiness, and higher tier each
// increase the score monotonically. Objective length is a mild modulating
// factor: longer objectives weight the capability match more heavily,
// saturating at 400 characters.
func ComputeRankHint(objectiveLength int, matchRatio, reliability float64, tier Tier, productionReady bool, cfg config.FactoryConfig) float64 {
	score := cfg.MatchWeight*matchRatio +
		cfg.ReliabilityWeight*reliability +
		cfg.TierWeight*tier.Score()
	if productionReady {
		score += cfg.ProductionBonus
	}

	lengthFactor := float64(objectiveLength) / 400.0
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}
	score += cfg.LengthWeight * lengthFactor * matchRatio

	return score
}

// ComputeDeepBoosts returns the total deep-context boost for a candidate and
// an itemized breakdown for diagnostics. No boost applies without deep
// context.
func ComputeDeepBoosts(capabilities, required []string, deep *DeepContext, cfg config.FactoryConfig) (float64, map[string]float64) {
	breakdown := make(map[string]float64)
	if deep == nil {
		return 0, breakdown
	}

	capSet := make(map[string]struct{}, len(capabilities))
	for _, cap := range capabilities {
		capSet[cap] = struct{}{}
	}

	boost := 0.0
	if deep.IndexSummary != "" {
		if _, ok := capSet[CapDeepIndexAware]; ok {
			boost += cfg.DeepIndexCapBoost
			breakdown["deep_index"] = cfg.DeepIndexCapBoost
		}
	}
	if deep.HotspotCount > cfg.HotspotThreshold {
		if _, ok := capSet[CapHotspotAware]; ok {
			boost += cfg.HotspotCapBoost
			breakdown["hotspot"] = cfg.HotspotCapBoost
		}
	}
	return boost, breakdown
}

// RankPlanners scores every candidate and returns them sorted by total score
// descending. Ties break by planner name in ascending lexical order, never by
// map iteration order.
func RankPlanners(candidates []Candidate, required []string, objective string, deep *DeepContext, cfg config.FactoryConfig) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, cand := range candidates {
		matchRatio := CapabilitiesMatchRatio(required, cand.Capabilities)
		hint := ComputeRankHint(len(objective), matchRatio, cand.Reliability, cand.Tier, cand.ProductionReady, cfg)
		boost, breakdown := ComputeDeepBoosts(cand.Capabilities, required, deep, cfg)

		breakdown["match_ratio"] = matchRatio
		breakdown["rank_hint"] = hint

		ranked = append(ranked, Ranked{
			Candidate: cand,
			Score:     hint + boost,
			Breakdown: breakdown,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Candidate.Name < ranked[j].Candidate.Name
	})

	return ranked
}
