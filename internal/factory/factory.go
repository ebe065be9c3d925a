package factory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"overmind/internal/config"
	"overmind/internal/logging"
	"overmind/internal/manifest"
	"overmind/internal/ranking"
	"overmind/internal/sandbox"
	"overmind/internal/store"
	"overmind/internal/telemetry"
	"overmind/internal/types"
)

// errMissingManifest covers the unlikely case of a record without a manifest,
// e.g. after a racing reload.
var errMissingManifest = errors.New("no manifest available for planner")

// SelectionRequest is one independent selection query.
type SelectionRequest struct {
	Objective            string
	RequiredCapabilities []string
	DeepContext          *ranking.DeepContext
}

// SelectionResult pairs a selection outcome with its error, for batch calls.
type SelectionResult struct {
	Planner PlannerRecord
	Err     error
}

// PlannerFactory is the stateful registry of discovered planners. All
// mutation of registry state is guarded by a single mutex; sandboxed imports
// run outside the lock so a slow plugin never blocks concurrent readers.
type PlannerFactory struct {
	cfg       config.FactoryConfig
	sandbox   *sandbox.Sandbox
	telemetry *telemetry.Manager
	store     *store.ReliabilityStore // nil when persistence is disabled
	pool      *workerPool

	mu          sync.Mutex
	records     map[string]*PlannerRecord
	manifests   map[string]*manifest.Manifest
	instances   map[string]interface{}
	quarantine  map[string]struct{}
	searchPaths []string
}

// New creates a factory with the given configuration. A reliability store is
// opened when the config names a database path; failure to open it is logged
// and persistence disabled rather than failing construction.
func New(cfg config.FactoryConfig) *PlannerFactory {
	f := NewWithSandbox(cfg, sandbox.New())
	return f
}

// NewWithSandbox creates a factory using the provided sandbox. Tests use this
// to point subprocess probes at a helper binary.
func NewWithSandbox(cfg config.FactoryConfig, sb *sandbox.Sandbox) *PlannerFactory {
	f := &PlannerFactory{
		cfg:        cfg,
		sandbox:    sb,
		telemetry:  telemetry.NewManager(cfg.MaxSamples, cfg.MaxProfiles),
		records:    make(map[string]*PlannerRecord),
		manifests:  make(map[string]*manifest.Manifest),
		instances:  make(map[string]interface{}),
		quarantine: make(map[string]struct{}),
	}
	f.pool = newWorkerPool(cfg.AsyncWorkers)

	if cfg.ReliabilityDBPath != "" {
		st, err := store.Open(cfg.ReliabilityDBPath)
		if err != nil {
			logging.StoreWarn("reliability persistence disabled: %v", err)
		} else {
			f.store = st
		}
	}

	return f
}

// Config returns the factory's configuration snapshot.
func (f *PlannerFactory) Config() config.FactoryConfig {
	return f.cfg
}

// Close releases the reliability store and the async worker pool.
func (f *PlannerFactory) Close() error {
	f.pool.close()
	if f.store != nil {
		return f.store.Close()
	}
	return nil
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Discover scans the search paths for plugin manifests and sandbox-imports
// every allow-listed candidate. A failing plugin is recorded on its own
// record and discovery continues; one broken plugin never aborts the pass.
// Returns the number of planners registered or updated successfully.
func (f *PlannerFactory) Discover(ctx context.Context, searchPaths []string) int {
	timer := logging.StartTimer(logging.CategoryFactory, "discover")
	defer timer.Stop()

	f.mu.Lock()
	f.searchPaths = append([]string(nil), searchPaths...)
	f.mu.Unlock()

	manifests := manifest.Scan(searchPaths)
	persisted := f.loadPersisted()

	count := 0
	for _, m := range manifests {
		if !f.cfg.Allows(m.Name) {
			logging.FactoryDebug("discover: %s not on allow-list, skipping", m.Name)
			continue
		}

		var fp string
		if f.cfg.DeepFingerprint {
			fp = m.Fingerprint()
		}

		// Unchanged source on a healthy record: refresh metadata without
		// re-importing and keep any cached instance. Non-active records are
		// always re-probed.
		f.mu.Lock()
		if existing, ok := f.records[m.Name]; ok && existing.Status == StatusActive &&
			f.cfg.DeepFingerprint && fp != "" && existing.Fingerprint == fp {
			f.applyManifestLocked(existing, m)
			f.manifests[m.Name] = m
			f.mu.Unlock()
			count++
			continue
		}
		f.mu.Unlock()

		err := f.sandbox.ImportInSandbox(ctx, m, f.cfg.SandboxSubprocess, f.cfg.GetSandboxTimeout())

		f.mu.Lock()
		rec, known := f.records[m.Name]
		if !known {
			rec = &PlannerRecord{
				Name:         m.Name,
				Status:       StatusActive,
				DiscoveredAt: time.Now(),
			}
			rec.ReliabilityScore = f.seedReliability(m, persisted)
			f.records[m.Name] = rec
		}
		f.applyManifestLocked(rec, m)
		f.manifests[m.Name] = m
		// The source changed (or is new): any cached instance is stale.
		delete(f.instances, m.Name)

		if err != nil {
			status, failures := NextStatusOnFailure(rec.ConsecutiveFailures, f.cfg.QuarantineThreshold)
			rec.Status = status
			rec.ConsecutiveFailures = failures
			rec.LastError = err.Error()
			rec.ReliabilityScore = decayReliability(rec.ReliabilityScore)
			// A failed probe never earns a fingerprint; the next pass must
			// re-probe the same source.
			rec.Fingerprint = ""
			if status == StatusQuarantined {
				f.quarantine[m.Name] = struct{}{}
			}
			logging.FactoryWarn("discover: import of %s failed (%d consecutive): %v",
				m.Name, failures, err)
		} else {
			rec.Status = StatusActive
			rec.Fingerprint = fp
			rec.ConsecutiveFailures = 0
			rec.LastError = ""
			delete(f.quarantine, m.Name)
			count++
			logging.FactoryDebug("discover: registered %s (tier=%s, caps=%v)",
				m.Name, rec.Tier, rec.Capabilities)
		}
		f.persistLocked(rec)
		f.mu.Unlock()
	}

	logging.Factory("discover: %d planners registered/updated from %d manifests", count, len(manifests))
	return count
}

// RefreshMetadata re-reads declared metadata for known planners without a
// full re-import. Changed entry sources get a best-effort probe using the
// short heal timeout; any probe error is swallowed. Returns the number of
// records refreshed.
func (f *PlannerFactory) RefreshMetadata(ctx context.Context) int {
	f.mu.Lock()
	paths := append([]string(nil), f.searchPaths...)
	f.mu.Unlock()

	refreshed := 0
	for _, m := range manifest.Scan(paths) {
		f.mu.Lock()
		rec, known := f.records[m.Name]
		if !known {
			f.mu.Unlock()
			continue
		}
		f.applyManifestLocked(rec, m)
		f.manifests[m.Name] = m
		changed := false
		if f.cfg.DeepFingerprint {
			if fp := m.Fingerprint(); fp != "" && fp != rec.Fingerprint {
				rec.Fingerprint = fp
				delete(f.instances, m.Name)
				changed = true
			}
		}
		f.mu.Unlock()
		refreshed++

		if changed {
			// Speculative probe; the outcome only warms logs, a failure
			// will surface on the next GetPlanner.
			f.sandbox.SafeImport(ctx, m, f.cfg.SandboxSubprocess, f.cfg.GetHealTimeout())
		}
	}

	logging.FactoryDebug("refresh metadata: %d records updated", refreshed)
	return refreshed
}

// ReloadPlanners clears the registry and instance cache, then re-runs
// discovery against the previously used search paths.
func (f *PlannerFactory) ReloadPlanners(ctx context.Context) int {
	f.mu.Lock()
	paths := append([]string(nil), f.searchPaths...)
	f.records = make(map[string]*PlannerRecord)
	f.manifests = make(map[string]*manifest.Manifest)
	f.instances = make(map[string]interface{})
	f.quarantine = make(map[string]struct{})
	f.mu.Unlock()

	logging.Factory("reload: registry cleared, re-discovering %d paths", len(paths))
	return f.Discover(ctx, paths)
}

// =============================================================================
// INSTANTIATION
// =============================================================================

// GetPlanner returns the cached or newly instantiated planner instance.
// Unknown names and quarantined planners fail fast with typed errors; an
// instantiation failure increments the record's failure count and may
// quarantine it.
func (f *PlannerFactory) GetPlanner(ctx context.Context, name string) (interface{}, error) {
	start := time.Now()

	f.mu.Lock()
	rec, ok := f.records[name]
	if !ok {
		f.mu.Unlock()
		return nil, types.NewPlannerNotFound(name)
	}
	if rec.Status == StatusQuarantined {
		reason := rec.LastError
		f.mu.Unlock()
		return nil, types.NewPlannerQuarantined(name, reason)
	}
	if inst, cached := f.instances[name]; cached {
		f.mu.Unlock()
		f.telemetry.RecordInstantiation(telemetry.InstantiationSample{
			Planner:  name,
			Success:  true,
			CacheHit: true,
			Duration: time.Since(start),
		})
		return inst, nil
	}
	m := f.manifests[name]
	f.mu.Unlock()

	if m == nil {
		return nil, types.NewSandboxImportError(name, errMissingManifest)
	}

	inst, err := f.sandbox.Instantiate(ctx, m, f.cfg.GetSandboxTimeout())

	f.mu.Lock()
	// The registry may have been reloaded while we were instantiating; only
	// touch the record if it is still the one we started from.
	if rec, ok = f.records[name]; ok {
		rec.UpdatedAt = time.Now()
		if err != nil {
			status, failures := NextStatusOnFailure(rec.ConsecutiveFailures, f.cfg.QuarantineThreshold)
			rec.Status = status
			rec.ConsecutiveFailures = failures
			rec.LastError = err.Error()
			rec.ReliabilityScore = decayReliability(rec.ReliabilityScore)
			if status == StatusQuarantined {
				f.quarantine[name] = struct{}{}
				delete(f.instances, name)
				logging.FactoryWarn("planner %s quarantined after %d consecutive failures", name, failures)
			}
		} else {
			rec.Status = StatusActive
			rec.ConsecutiveFailures = 0
			rec.LastError = ""
			rec.ReliabilityScore = bumpReliability(rec.ReliabilityScore)
			f.instances[name] = inst
		}
		f.persistLocked(rec)
	}
	f.mu.Unlock()

	sample := telemetry.InstantiationSample{
		Planner:  name,
		Success:  err == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		sample.Error = err.Error()
	}
	f.telemetry.RecordInstantiation(sample)

	if err != nil {
		return nil, err
	}
	return inst, nil
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectBestPlanner filters to active, sufficiently reliable, allow-listed
// planners with a non-zero capability match, ranks the survivors
// deterministically, records a selection sample, and returns the winner.
func (f *PlannerFactory) SelectBestPlanner(objective string, required []string, deep *ranking.DeepContext) (PlannerRecord, error) {
	start := time.Now()

	// Snapshot eligible records under the lock. The returned record is the
	// snapshot clone, so a planner failing concurrently after this point
	// cannot leak a non-active state to the caller.
	f.mu.Lock()
	candidates := make([]ranking.Candidate, 0, len(f.records))
	snapshots := make(map[string]PlannerRecord, len(f.records))
	for _, rec := range f.records {
		if rec.Status != StatusActive {
			continue
		}
		if rec.ReliabilityScore < f.cfg.MinReliability {
			continue
		}
		if !f.cfg.Allows(rec.Name) {
			continue
		}
		if ranking.CapabilitiesMatchRatio(required, rec.Capabilities) <= 0 {
			continue
		}
		candidates = append(candidates, rec.candidate())
		snapshots[rec.Name] = rec.Clone()
	}
	f.mu.Unlock()

	if len(candidates) == 0 {
		return PlannerRecord{}, types.NewNoActivePlanners(required)
	}

	ranked := ranking.RankPlanners(candidates, required, objective, deep, f.cfg)
	best := ranked[0]

	hotspots := 0
	if deep != nil {
		hotspots = deep.HotspotCount
	}
	f.telemetry.RecordSelection(telemetry.SelectionSample{
		ObjectiveLength:      len(objective),
		RequiredCapabilities: append([]string(nil), required...),
		ChosenPlanner:        best.Candidate.Name,
		Score:                best.Score,
		CandidateCount:       len(candidates),
		DeepContext:          deep != nil,
		HotspotCount:         hotspots,
		Breakdown:            best.Breakdown,
		Duration:             time.Since(start),
		BoostConfig: map[string]float64{
			"deep_index_cap_boost": f.cfg.DeepIndexCapBoost,
			"hotspot_cap_boost":    f.cfg.HotspotCapBoost,
			"hotspot_threshold":    float64(f.cfg.HotspotThreshold),
		},
	})

	winner := snapshots[best.Candidate.Name]
	logging.RankingDebug("selected %s (score=%.4f, %d candidates)", winner.Name, best.Score, len(candidates))
	return winner, nil
}

// SelectBestPlannerName is SelectBestPlanner returning only the winner's name.
func (f *PlannerFactory) SelectBestPlannerName(objective string, required []string, deep *ranking.DeepContext) (string, error) {
	rec, err := f.SelectBestPlanner(objective, required, deep)
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}

// BatchSelectBestPlanners applies SelectBestPlanner independently to each
// request; there is no cross-request interaction.
func (f *PlannerFactory) BatchSelectBestPlanners(requests []SelectionRequest) []SelectionResult {
	results := make([]SelectionResult, len(requests))
	for i, req := range requests {
		rec, err := f.SelectBestPlanner(req.Objective, req.RequiredCapabilities, req.DeepContext)
		results[i] = SelectionResult{Planner: rec, Err: err}
	}
	return results
}

// =============================================================================
// QUARANTINE AND SELF-HEALING
// =============================================================================

// SelfHeal probes quarantined planners with the short heal timeout. An empty
// name heals every quarantined planner. A successful probe resets the failure
// count and reactivates the planner; a failing probe keeps it quarantined and
// bumps the heal-attempt counter. Never returns an error; outcomes are
// reflected on the records. Returns the number of planners healed.
func (f *PlannerFactory) SelfHeal(ctx context.Context, name string) int {
	f.mu.Lock()
	targets := make([]string, 0, len(f.quarantine))
	for quarantined := range f.quarantine {
		if name != "" && quarantined != name {
			continue
		}
		if rec, ok := f.records[quarantined]; ok {
			rec.Status = StatusHealing
			rec.UpdatedAt = time.Now()
			targets = append(targets, quarantined)
		}
	}
	f.mu.Unlock()
	sort.Strings(targets)

	healed := 0
	for _, target := range targets {
		f.mu.Lock()
		m := f.manifests[target]
		f.mu.Unlock()

		probeErr := errMissingManifest
		if m != nil {
			probeErr = f.sandbox.ImportInSandbox(ctx, m, f.cfg.SandboxSubprocess, f.cfg.GetHealTimeout())
		}

		f.mu.Lock()
		rec, ok := f.records[target]
		if !ok {
			f.mu.Unlock()
			continue
		}
		rec.Status = NextStatusOnHeal(probeErr == nil)
		rec.UpdatedAt = time.Now()
		if probeErr == nil {
			rec.ConsecutiveFailures = 0
			rec.LastError = ""
			if rec.ReliabilityScore < f.cfg.MinReliability {
				rec.ReliabilityScore = f.cfg.MinReliability
			}
			delete(f.quarantine, target)
			healed++
			logging.Factory("self-heal: %s recovered", target)
		} else {
			rec.HealAttempts++
			rec.LastError = probeErr.Error()
			logging.FactoryWarn("self-heal: probe for %s failed (attempt %d): %v",
				target, rec.HealAttempts, probeErr)
		}
		f.persistLocked(rec)
		f.mu.Unlock()
	}

	return healed
}

// ListQuarantined returns the names of all quarantined planners, sorted.
func (f *PlannerFactory) ListQuarantined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.quarantine))
	for name := range f.quarantine {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// ListPlanners returns read-only copies of the registry, sorted by name.
// Quarantined records are excluded unless requested.
func (f *PlannerFactory) ListPlanners(includeQuarantined bool) []PlannerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]PlannerRecord, 0, len(f.records))
	for _, rec := range f.records {
		if !includeQuarantined && rec.Status == StatusQuarantined {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DescribePlanner returns a read-only copy of one record.
func (f *PlannerFactory) DescribePlanner(name string) (PlannerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[name]
	if !ok {
		return PlannerRecord{}, types.NewPlannerNotFound(name)
	}
	return rec.Clone(), nil
}

// HealthReport summarizes registry health for liveness probes.
type HealthReport struct {
	Ready       bool `json:"ready"`
	Active      int  `json:"active"`
	Quarantined int  `json:"quarantined"`
	Total       int  `json:"total"`
}

// HealthCheck reports ready=false whenever the active planner count drops
// below minRequired.
func (f *PlannerFactory) HealthCheck(minRequired int) HealthReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := HealthReport{Total: len(f.records)}
	for _, rec := range f.records {
		switch rec.Status {
		case StatusActive:
			report.Active++
		case StatusQuarantined:
			report.Quarantined++
		}
	}
	report.Ready = report.Active >= minRequired
	return report
}

// SelectionProfiles returns the most recent selection telemetry samples.
func (f *PlannerFactory) SelectionProfiles(limit int) []telemetry.SelectionSample {
	return f.telemetry.SelectionSamples(limit)
}

// InstantiationProfiles returns the most recent instantiation samples.
func (f *PlannerFactory) InstantiationProfiles(limit int) []telemetry.InstantiationSample {
	return f.telemetry.InstantiationSamples(limit)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// applyManifestLocked copies declared metadata onto the record. Caller holds
// the lock.
func (f *PlannerFactory) applyManifestLocked(rec *PlannerRecord, m *manifest.Manifest) {
	rec.Capabilities = append([]string(nil), m.Capabilities...)
	tier := ranking.Tier(m.Tier)
	if !tier.Valid() {
		tier = ranking.TierExperimental
	}
	rec.Tier = tier
	rec.ProductionReady = m.ProductionReady
	rec.UpdatedAt = time.Now()
}

// seedReliability picks the starting score for a newly discovered planner:
// persisted history wins, then the manifest declaration, then the default.
func (f *PlannerFactory) seedReliability(m *manifest.Manifest, persisted map[string]store.ReliabilityRecord) float64 {
	if persisted != nil {
		if prev, ok := persisted[m.Name]; ok {
			return clampReliability(prev.Reliability)
		}
	}
	if m.Reliability != nil {
		return clampReliability(*m.Reliability)
	}
	return clampReliability(f.cfg.DefaultReliability)
}

// loadPersisted fetches all persisted reliability rows, or nil without a store.
func (f *PlannerFactory) loadPersisted() map[string]store.ReliabilityRecord {
	if f.store == nil {
		return nil
	}
	records, err := f.store.All()
	if err != nil {
		logging.StoreWarn("failed to load persisted reliability: %v", err)
		return nil
	}
	return records
}

// persistLocked saves one record's reliability state, best-effort. Caller
// holds the lock.
func (f *PlannerFactory) persistLocked(rec *PlannerRecord) {
	if f.store == nil {
		return
	}
	err := f.store.Save(store.ReliabilityRecord{
		Name:                rec.Name,
		Reliability:         rec.ReliabilityScore,
		ConsecutiveFailures: rec.ConsecutiveFailures,
		Quarantined:         rec.Status == StatusQuarantined,
	})
	if err != nil {
		logging.StoreWarn("failed to persist %s: %v", rec.Name, err)
	}
}
