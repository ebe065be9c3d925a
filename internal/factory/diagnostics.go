package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"overmind/internal/telemetry"
)

// factoryVersion is stamped into every diagnostics document.
const factoryVersion = "0.4.0"

// Stats aggregates registry counters for dashboards.
type Stats struct {
	Total           int     `json:"total"`
	Active          int     `json:"active"`
	Failed          int     `json:"failed"`
	Quarantined     int     `json:"quarantined"`
	Healing         int     `json:"healing"`
	CachedInstances int     `json:"cached_instances"`
	MeanReliability float64 `json:"mean_reliability"`
}

// PlannerStats returns aggregate registry counters.
func (f *PlannerFactory) PlannerStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := Stats{
		Total:           len(f.records),
		CachedInstances: len(f.instances),
	}
	sum := 0.0
	for _, rec := range f.records {
		sum += rec.ReliabilityScore
		switch rec.Status {
		case StatusActive:
			stats.Active++
		case StatusFailed:
			stats.Failed++
		case StatusQuarantined:
			stats.Quarantined++
		case StatusHealing:
			stats.Healing++
		}
	}
	if stats.Total > 0 {
		stats.MeanReliability = sum / float64(stats.Total)
	}
	return stats
}

// DiagnosticsDocument is the serialized registry + telemetry snapshot shape.
type DiagnosticsDocument struct {
	FactoryVersion string                 `json:"factory_version"`
	Timestamp      time.Time              `json:"timestamp"`
	Config         map[string]interface{} `json:"config"`
	Stats          Stats                  `json:"stats"`
	Planners       []PlannerRecord        `json:"planners"`
	Telemetry      DiagnosticsTelemetry   `json:"telemetry"`
}

// DiagnosticsTelemetry groups the telemetry snapshot inside the document.
type DiagnosticsTelemetry struct {
	Selections     []telemetry.SelectionSample     `json:"selections"`
	Instantiations []telemetry.InstantiationSample `json:"instantiations"`
}

// diagnosticsDocument builds the full snapshot.
func (f *PlannerFactory) diagnosticsDocument() DiagnosticsDocument {
	return DiagnosticsDocument{
		FactoryVersion: factoryVersion,
		Timestamp:      time.Now().UTC(),
		Config:         f.cfg.Flatten(),
		Stats:          f.PlannerStats(),
		Planners:       f.ListPlanners(true),
		Telemetry: DiagnosticsTelemetry{
			Selections:     f.telemetry.SelectionSamples(0),
			Instantiations: f.telemetry.InstantiationSamples(0),
		},
	}
}

// DiagnosticsJSON serializes the full registry and telemetry snapshot.
func (f *PlannerFactory) DiagnosticsJSON() ([]byte, error) {
	doc := f.diagnosticsDocument()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	return data, nil
}

// DiagnosticsReport renders a human-readable snapshot for operators.
func (f *PlannerFactory) DiagnosticsReport() string {
	doc := f.diagnosticsDocument()

	var b strings.Builder
	fmt.Fprintf(&b, "planner factory %s - %s\n", doc.FactoryVersion, doc.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "planners: %d total, %d active, %d failed, %d quarantined, %d healing\n",
		doc.Stats.Total, doc.Stats.Active, doc.Stats.Failed, doc.Stats.Quarantined, doc.Stats.Healing)
	fmt.Fprintf(&b, "cached instances: %d, mean reliability: %.3f\n",
		doc.Stats.CachedInstances, doc.Stats.MeanReliability)

	for _, rec := range doc.Planners {
		fmt.Fprintf(&b, "  %-20s %-12s tier=%-12s reliability=%.3f failures=%d caps=[%s]\n",
			rec.Name, rec.Status, rec.Tier, rec.ReliabilityScore,
			rec.ConsecutiveFailures, strings.Join(rec.Capabilities, ","))
		if rec.LastError != "" {
			fmt.Fprintf(&b, "    last error: %s\n", rec.LastError)
		}
	}

	if n := len(doc.Telemetry.Selections); n > 0 {
		fmt.Fprintf(&b, "recent selections (%d):\n", n)
		for _, s := range doc.Telemetry.Selections {
			fmt.Fprintf(&b, "  %s -> %s (score=%.4f, %d candidates, %v)\n",
				s.Timestamp.Format(time.RFC3339), s.ChosenPlanner, s.Score, s.CandidateCount, s.Duration)
		}
	}

	return b.String()
}

// ExportDiagnostics writes the diagnostics document to the given path for
// external monitoring.
func (f *PlannerFactory) ExportDiagnostics(path string) error {
	data, err := f.DiagnosticsJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	return nil
}

// Capabilities returns the union of capabilities across non-quarantined
// planners, sorted. Handy for admin surfaces.
func (f *PlannerFactory) Capabilities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := make(map[string]struct{})
	for _, rec := range f.records {
		if rec.Status == StatusQuarantined {
			continue
		}
		for _, cap := range rec.Capabilities {
			set[cap] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for cap := range set {
		out = append(out, cap)
	}
	sort.Strings(out)
	return out
}
