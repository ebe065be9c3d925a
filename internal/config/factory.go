package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FactoryConfig configures the planner factory. It is treated as a read-only
// snapshot after construction: the factory copies it once and never mutates it.
type FactoryConfig struct {
	// AllowedPlanners restricts discovery to the listed planner names.
	// Empty means no restriction.
	AllowedPlanners []string `yaml:"allowed_planners"`

	// DefaultReliability is assigned to planners whose manifest declares
	// no reliability score.
	DefaultReliability float64 `yaml:"default_reliability"`

	// MinReliability is the eligibility gate for selection. Planners below
	// this score are never returned by SelectBestPlanner.
	MinReliability float64 `yaml:"min_reliability"`

	// DeepFingerprint enables hashing of plugin entry sources so that
	// re-discovery can detect changed plugins and drop stale instances.
	DeepFingerprint bool `yaml:"deep_fingerprint"`

	// SandboxTimeout bounds a full sandboxed import during discovery.
	SandboxTimeout string `yaml:"sandbox_timeout"`

	// HealTimeout bounds a self-heal probe. Kept shorter than
	// SandboxTimeout so reviving a quarantined planner stays cheap.
	HealTimeout string `yaml:"heal_timeout"`

	// SandboxSubprocess selects the isolation mode: true spawns a worker
	// process per import, false interprets in-process (trusted paths, tests).
	SandboxSubprocess bool `yaml:"sandbox_subprocess"`

	// QuarantineThreshold is the consecutive-failure count that moves a
	// planner to quarantine.
	QuarantineThreshold int `yaml:"quarantine_threshold"`

	// Ranking weights. See ranking.ComputeRankHint for how each is applied.
	MatchWeight       float64 `yaml:"match_weight"`
	ReliabilityWeight float64 `yaml:"reliability_weight"`
	TierWeight        float64 `yaml:"tier_weight"`
	ProductionBonus   float64 `yaml:"production_bonus"`
	LengthWeight      float64 `yaml:"length_weight"`

	// Deep-context boosts.
	DeepIndexCapBoost float64 `yaml:"deep_index_cap_boost"`
	HotspotCapBoost   float64 `yaml:"hotspot_cap_boost"`
	HotspotThreshold  int     `yaml:"hotspot_threshold"`

	// Telemetry capacities. MaxSamples bounds instantiation sample
	// retention, MaxProfiles bounds selection profile retention.
	MaxSamples  int `yaml:"max_samples"`
	MaxProfiles int `yaml:"max_profiles"`

	// AsyncWorkers bounds the worker pool used by the async facade.
	AsyncWorkers int `yaml:"async_workers"`

	// ReliabilityDBPath is the SQLite file for reliability persistence.
	// Empty disables persistence.
	ReliabilityDBPath string `yaml:"reliability_db_path"`
}

// DefaultFactoryConfig returns the documented factory defaults.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		DefaultReliability:  0.1,
		MinReliability:      0.25,
		DeepFingerprint:     true,
		SandboxTimeout:      "10s",
		HealTimeout:         "2s",
		SandboxSubprocess:   true,
		QuarantineThreshold: 3,

		MatchWeight:       0.50,
		ReliabilityWeight: 0.30,
		TierWeight:        0.15,
		ProductionBonus:   0.05,
		LengthWeight:      0.10,

		DeepIndexCapBoost: 0.15,
		HotspotCapBoost:   0.10,
		HotspotThreshold:  5,

		MaxSamples:  256,
		MaxProfiles: 256,

		AsyncWorkers: 4,
	}
}

// FactoryConfigFromEnv builds a FactoryConfig from the process environment,
// applying the documented defaults for anything unset.
func FactoryConfigFromEnv() FactoryConfig {
	return DefaultFactoryConfig().withEnvOverrides()
}

// withEnvOverrides returns a copy with OVERMIND_* environment overrides applied.
func (fc FactoryConfig) withEnvOverrides() FactoryConfig {
	if v := os.Getenv("OVERMIND_PLANNER_ALLOWLIST"); v != "" {
		parts := strings.Split(v, ",")
		allowed := make([]string, 0, len(parts))
		for _, p := range parts {
			if name := strings.TrimSpace(p); name != "" {
				allowed = append(allowed, name)
			}
		}
		fc.AllowedPlanners = allowed
	}
	if v, ok := envFloat("OVERMIND_DEFAULT_RELIABILITY"); ok {
		fc.DefaultReliability = v
	}
	if v, ok := envFloat("OVERMIND_MIN_RELIABILITY"); ok {
		fc.MinReliability = v
	}
	if v, ok := envBool("OVERMIND_DEEP_FINGERPRINT"); ok {
		fc.DeepFingerprint = v
	}
	if v := os.Getenv("OVERMIND_SANDBOX_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			fc.SandboxTimeout = v
		}
	}
	if v := os.Getenv("OVERMIND_HEAL_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			fc.HealTimeout = v
		}
	}
	if v, ok := envBool("OVERMIND_SANDBOX_SUBPROCESS"); ok {
		fc.SandboxSubprocess = v
	}
	if v, ok := envInt("OVERMIND_QUARANTINE_THRESHOLD"); ok {
		fc.QuarantineThreshold = v
	}
	if v, ok := envFloat("OVERMIND_DEEP_INDEX_BOOST"); ok {
		fc.DeepIndexCapBoost = v
	}
	if v, ok := envFloat("OVERMIND_HOTSPOT_BOOST"); ok {
		fc.HotspotCapBoost = v
	}
	if v, ok := envInt("OVERMIND_HOTSPOT_THRESHOLD"); ok {
		fc.HotspotThreshold = v
	}
	if v, ok := envInt("OVERMIND_TELEMETRY_MAX_SAMPLES"); ok {
		fc.MaxSamples = v
	}
	if v, ok := envInt("OVERMIND_TELEMETRY_MAX_PROFILES"); ok {
		fc.MaxProfiles = v
	}
	if v, ok := envInt("OVERMIND_ASYNC_WORKERS"); ok && v > 0 {
		fc.AsyncWorkers = v
	}
	if v := os.Getenv("OVERMIND_RELIABILITY_DB"); v != "" {
		fc.ReliabilityDBPath = v
	}
	return fc
}

// GetSandboxTimeout returns the sandbox import timeout as a duration.
func (fc FactoryConfig) GetSandboxTimeout() time.Duration {
	d, err := time.ParseDuration(fc.SandboxTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetHealTimeout returns the self-heal probe timeout as a duration.
func (fc FactoryConfig) GetHealTimeout() time.Duration {
	d, err := time.ParseDuration(fc.HealTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Allows reports whether the allow-list permits the planner name.
// An empty allow-list permits everything.
func (fc FactoryConfig) Allows(name string) bool {
	if len(fc.AllowedPlanners) == 0 {
		return true
	}
	for _, allowed := range fc.AllowedPlanners {
		if allowed == name {
			return true
		}
	}
	return false
}

// Flatten exports every field as a flat mapping for diagnostics.
func (fc FactoryConfig) Flatten() map[string]interface{} {
	return map[string]interface{}{
		"allowed_planners":     append([]string(nil), fc.AllowedPlanners...),
		"default_reliability":  fc.DefaultReliability,
		"min_reliability":      fc.MinReliability,
		"deep_fingerprint":     fc.DeepFingerprint,
		"sandbox_timeout":      fc.SandboxTimeout,
		"heal_timeout":         fc.HealTimeout,
		"sandbox_subprocess":   fc.SandboxSubprocess,
		"quarantine_threshold": fc.QuarantineThreshold,
		"match_weight":         fc.MatchWeight,
		"reliability_weight":   fc.ReliabilityWeight,
		"tier_weight":          fc.TierWeight,
		"production_bonus":     fc.ProductionBonus,
		"length_weight":        fc.LengthWeight,
		"deep_index_cap_boost": fc.DeepIndexCapBoost,
		"hotspot_cap_boost":    fc.HotspotCapBoost,
		"hotspot_threshold":    fc.HotspotThreshold,
		"max_samples":          fc.MaxSamples,
		"max_profiles":         fc.MaxProfiles,
		"async_workers":        fc.AsyncWorkers,
		"reliability_db_path":  fc.ReliabilityDBPath,
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
