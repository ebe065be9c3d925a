package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overmind/internal/config"
	"overmind/internal/ranking"
	"overmind/internal/types"
)

const workingPlanner = `package main

type basicPlanner struct{}

func (p *basicPlanner) Plan(objective string) []string {
	return []string{objective}
}

func NewPlanner() interface{} {
	return &basicPlanner{}
}
`

const brokenPlanner = `package main

func NewPlanner() interface{} {
	panic("broken on purpose")
}
`

// pluginSpec describes one on-disk plugin for test setup.
type pluginSpec struct {
	name            string
	capabilities    []string
	tier            string
	productionReady bool
	reliability     float64
	source          string
}

func writePluginDir(t *testing.T, root string, spec pluginSpec) {
	t.Helper()
	dir := filepath.Join(root, spec.name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	manifest := fmt.Sprintf("name: %s\ntier: %s\nproduction_ready: %v\nreliability: %v\n",
		spec.name, spec.tier, spec.productionReady, spec.reliability)
	if len(spec.capabilities) > 0 {
		manifest += "capabilities:\n"
		for _, cap := range spec.capabilities {
			manifest += "  - " + cap + "\n"
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(manifest), 0o644))

	source := spec.source
	if source == "" {
		source = workingPlanner
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.go"), []byte(source), 0o644))
}

// testConfig keeps sandboxing in-process and persistence off.
func testConfig() config.FactoryConfig {
	cfg := config.DefaultFactoryConfig()
	cfg.SandboxSubprocess = false
	cfg.SandboxTimeout = "10s"
	cfg.HealTimeout = "10s"
	return cfg
}

func newTestFactory(t *testing.T, cfg config.FactoryConfig, root string, specs ...pluginSpec) *PlannerFactory {
	t.Helper()
	for _, spec := range specs {
		writePluginDir(t, root, spec)
	}
	f := New(cfg)
	t.Cleanup(func() { f.Close() })
	f.Discover(context.Background(), []string{root})
	return f
}

func TestDiscoverRegistersPlanners(t *testing.T) {
	root := t.TempDir()
	for _, spec := range []pluginSpec{
		{name: "alpha", capabilities: []string{"plan"}, tier: "stable", reliability: 0.5},
		{name: "beta", capabilities: []string{"plan"}, tier: "production", productionReady: true, reliability: 0.9},
	} {
		writePluginDir(t, root, spec)
	}

	f := New(testConfig())
	defer f.Close()

	n := f.Discover(context.Background(), []string{root})
	assert.Equal(t, 2, n)

	records := f.ListPlanners(true)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "beta", records[1].Name)
	assert.Equal(t, StatusActive, records[0].Status)
	assert.Equal(t, ranking.TierProduction, records[1].Tier)
	assert.True(t, records[1].ProductionReady)
	assert.Equal(t, 0.9, records[1].ReliabilityScore)
	assert.NotEmpty(t, records[0].Fingerprint)
}

func TestDiscoverContinuesPastBrokenPlugin(t *testing.T) {
	root := t.TempDir()
	writePluginDir(t, root, pluginSpec{name: "bad", tier: "stable", reliability: 0.5, source: brokenPlanner})
	writePluginDir(t, root, pluginSpec{name: "good", tier: "stable", reliability: 0.5})

	f := New(testConfig())
	defer f.Close()

	n := f.Discover(context.Background(), []string{root})
	assert.Equal(t, 1, n, "only the working plugin counts")

	bad, err := f.DescribePlanner("bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Equal(t, 1, bad.ConsecutiveFailures)
	assert.NotEmpty(t, bad.LastError)

	good, err := f.DescribePlanner("good")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, good.Status)
}

func TestDiscoverReprobesFailedPlugin(t *testing.T) {
	root := t.TempDir()
	writePluginDir(t, root, pluginSpec{name: "bad", tier: "stable", reliability: 0.5, source: brokenPlanner})
	writePluginDir(t, root, pluginSpec{name: "good", tier: "stable", reliability: 0.5})

	f := New(testConfig())
	defer f.Close()

	first := f.Discover(context.Background(), []string{root})
	second := f.Discover(context.Background(), []string{root})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second, "a still-broken plugin must not count on later passes")

	bad, err := f.DescribePlanner("bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Equal(t, 2, bad.ConsecutiveFailures, "every pass must re-probe a failed plugin")
	assert.Empty(t, bad.Fingerprint, "a failed probe must not earn a fingerprint")

	// Threshold is 3: the next pass tips the record into quarantine.
	f.Discover(context.Background(), []string{root})
	bad, err = f.DescribePlanner("bad")
	require.NoError(t, err)
	assert.Equal(t, StatusQuarantined, bad.Status)
}

func TestDiscoverFingerprintFastPath(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.5})

	// Instantiate so a cached instance exists.
	_, err := f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)

	// Unchanged source: a second pass refreshes metadata and keeps the cache.
	n := f.Discover(context.Background(), []string{root})
	assert.Equal(t, 1, n)

	_, err = f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)

	samples := f.InstantiationProfiles(1)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].CacheHit, "instance cache should survive an unchanged re-discover")
}

func TestDiscoverDropsStaleInstanceOnSourceChange(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.5})

	_, err := f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)

	before, err := f.DescribePlanner("alpha")
	require.NoError(t, err)

	changed := workingPlanner + "\n// v2\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "planner.go"), []byte(changed), 0o644))
	f.Discover(context.Background(), []string{root})

	after, err := f.DescribePlanner("alpha")
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)

	_, err = f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)
	samples := f.InstantiationProfiles(1)
	require.Len(t, samples, 1)
	assert.False(t, samples[0].CacheHit, "changed source must be re-instantiated")
}

func TestDiscoverHonorsAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedPlanners = []string{"allowed"}

	root := t.TempDir()
	f := newTestFactory(t, cfg, root,
		pluginSpec{name: "allowed", tier: "stable", reliability: 0.5},
		pluginSpec{name: "forbidden", tier: "stable", reliability: 0.5})

	records := f.ListPlanners(true)
	require.Len(t, records, 1)
	assert.Equal(t, "allowed", records[0].Name)
}

func TestGetPlannerNotFound(t *testing.T) {
	f := New(testConfig())
	defer f.Close()

	_, err := f.GetPlanner(context.Background(), "ghost")
	assert.True(t, types.IsNotFound(err), "err = %v", err)
}

func TestGetPlannerCachesInstances(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.5})

	first, err := f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)
	require.NotNil(t, second)

	samples := f.InstantiationProfiles(0)
	require.Len(t, samples, 2)
	assert.False(t, samples[0].CacheHit)
	assert.True(t, samples[1].CacheHit)
}

func TestGetPlannerSuccessBumpsReliability(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.5})

	_, err := f.GetPlanner(context.Background(), "alpha")
	require.NoError(t, err)

	rec, err := f.DescribePlanner("alpha")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, rec.ReliabilityScore, 1e-9)
}

func TestQuarantineAfterConsecutiveFailures(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "flaky", capabilities: []string{"plan"}, tier: "stable", reliability: 0.8})

	// Break the entry source after discovery so instantiation fails while the
	// record is still active.
	require.NoError(t, os.WriteFile(filepath.Join(root, "flaky", "planner.go"), []byte(brokenPlanner), 0o644))

	threshold := f.Config().QuarantineThreshold
	for i := 1; i < threshold; i++ {
		_, err := f.GetPlanner(context.Background(), "flaky")
		require.True(t, types.IsSandboxImport(err), "attempt %d err = %v", i, err)

		rec, derr := f.DescribePlanner("flaky")
		require.NoError(t, derr)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Equal(t, i, rec.ConsecutiveFailures)
	}

	// The threshold-th failure quarantines.
	_, err := f.GetPlanner(context.Background(), "flaky")
	require.Error(t, err)

	rec, err := f.DescribePlanner("flaky")
	require.NoError(t, err)
	assert.Equal(t, StatusQuarantined, rec.Status)
	assert.Equal(t, []string{"flaky"}, f.ListQuarantined())

	// Further lookups fail fast with the quarantine error.
	_, err = f.GetPlanner(context.Background(), "flaky")
	assert.True(t, types.IsQuarantined(err), "err = %v", err)

	// Quarantined planners never win selection.
	_, err = f.SelectBestPlanner("objective", []string{"plan"}, nil)
	assert.True(t, types.IsNoActivePlanners(err), "err = %v", err)
}

func TestFailureDecaysReliability(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "flaky", tier: "stable", reliability: 0.5})
	require.NoError(t, os.WriteFile(filepath.Join(root, "flaky", "planner.go"), []byte(brokenPlanner), 0o644))

	_, err := f.GetPlanner(context.Background(), "flaky")
	require.Error(t, err)

	rec, err := f.DescribePlanner("flaky")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, rec.ReliabilityScore, 1e-9)
}

func TestSelectBestPlanner(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "junior", capabilities: []string{"plan"}, tier: "experimental", reliability: 0.4},
		pluginSpec{name: "senior", capabilities: []string{"plan"}, tier: "production", productionReady: true, reliability: 0.9},
		pluginSpec{name: "unrelated", capabilities: []string{"summarize"}, tier: "production", productionReady: true, reliability: 0.9})

	rec, err := f.SelectBestPlanner("refactor the parser", []string{"plan"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "senior", rec.Name)

	samples := f.SelectionProfiles(1)
	require.Len(t, samples, 1)
	assert.Equal(t, "senior", samples[0].ChosenPlanner)
	assert.Equal(t, 2, samples[0].CandidateCount, "zero-match candidates are filtered before ranking")
	assert.Contains(t, samples[0].Breakdown, "rank_hint")
}

func TestSelectBestPlannerReliabilityGate(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "shaky", capabilities: []string{"plan"}, tier: "production", productionReady: true, reliability: 0.2})

	_, err := f.SelectBestPlanner("objective", []string{"plan"}, nil)
	assert.True(t, types.IsNoActivePlanners(err),
		"planners below the minimum reliability must not be selectable: %v", err)
}

func TestSelectBestPlannerDeepBoostFlipsWinner(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "generalist", capabilities: []string{"plan"}, tier: "stable", reliability: 0.6},
		pluginSpec{name: "indexer", capabilities: []string{"plan", ranking.CapDeepIndexAware}, tier: "stable", reliability: 0.5})

	// Without deep context the higher reliability wins.
	rec, err := f.SelectBestPlanner("objective", []string{"plan"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "generalist", rec.Name)

	// With a populated index summary the capability boost flips the ranking.
	rec, err = f.SelectBestPlanner("objective", []string{"plan"},
		&ranking.DeepContext{IndexSummary: "1200 symbols indexed"})
	require.NoError(t, err)
	assert.Equal(t, "indexer", rec.Name)

	samples := f.SelectionProfiles(1)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].DeepContext)
	assert.Contains(t, samples[0].Breakdown, "deep_index")
}

func TestSelectBestPlannerNoCandidates(t *testing.T) {
	f := New(testConfig())
	defer f.Close()

	_, err := f.SelectBestPlanner("objective", nil, nil)
	assert.True(t, types.IsNoActivePlanners(err), "err = %v", err)
}

func TestSelectBestPlannerConcurrentFailureSafety(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "flappy", capabilities: []string{"plan"}, tier: "stable", reliability: 0.9})

	// One goroutine keeps breaking and restoring the record while selections
	// run. A selection must never surface a failed or under-reliable record.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			f.mu.Lock()
			rec := f.records["flappy"]
			rec.Status = StatusFailed
			rec.ReliabilityScore = 0.16
			f.mu.Unlock()
			f.mu.Lock()
			rec.Status = StatusActive
			rec.ReliabilityScore = 0.9
			f.mu.Unlock()
		}
	}()

	minReliability := f.Config().MinReliability
	for i := 0; i < 500; i++ {
		rec, err := f.SelectBestPlanner("objective", []string{"plan"}, nil)
		if err != nil {
			require.True(t, types.IsNoActivePlanners(err), "err = %v", err)
			continue
		}
		require.Equal(t, StatusActive, rec.Status)
		require.GreaterOrEqual(t, rec.ReliabilityScore, minReliability)
	}
	close(done)
	wg.Wait()
}

func TestBatchSelectBestPlanners(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "planner_a", capabilities: []string{"plan"}, tier: "stable", reliability: 0.6},
		pluginSpec{name: "summarizer", capabilities: []string{"summarize"}, tier: "stable", reliability: 0.6})

	results := f.BatchSelectBestPlanners([]SelectionRequest{
		{Objective: "first", RequiredCapabilities: []string{"plan"}},
		{Objective: "second", RequiredCapabilities: []string{"summarize"}},
		{Objective: "third", RequiredCapabilities: []string{"translate"}},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "planner_a", results[0].Planner.Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "summarizer", results[1].Planner.Name)
	assert.NoError(t, results[1].Err)
	assert.True(t, types.IsNoActivePlanners(results[2].Err),
		"independent requests fail independently: %v", results[2].Err)
}

func TestSelfHealRecoversFixedPlanner(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "phoenix", capabilities: []string{"plan"}, tier: "stable", reliability: 0.8})

	entryPath := filepath.Join(root, "phoenix", "planner.go")
	require.NoError(t, os.WriteFile(entryPath, []byte(brokenPlanner), 0o644))
	for i := 0; i < f.Config().QuarantineThreshold; i++ {
		f.GetPlanner(context.Background(), "phoenix")
	}
	require.Equal(t, []string{"phoenix"}, f.ListQuarantined())

	// Heal while still broken: the probe fails and quarantine persists.
	assert.Equal(t, 0, f.SelfHeal(context.Background(), "phoenix"))
	rec, err := f.DescribePlanner("phoenix")
	require.NoError(t, err)
	assert.Equal(t, StatusQuarantined, rec.Status)
	assert.Equal(t, 1, rec.HealAttempts)

	// Fix the source and heal again.
	require.NoError(t, os.WriteFile(entryPath, []byte(workingPlanner), 0o644))
	assert.Equal(t, 1, f.SelfHeal(context.Background(), "phoenix"))

	rec, err = f.DescribePlanner("phoenix")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
	assert.Empty(t, rec.LastError)
	assert.GreaterOrEqual(t, rec.ReliabilityScore, f.Config().MinReliability,
		"a healed planner must be eligible for selection again")
	assert.Empty(t, f.ListQuarantined())
}

func TestSelfHealAllQuarantined(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "a", tier: "stable", reliability: 0.8},
		pluginSpec{name: "b", tier: "stable", reliability: 0.8})

	for _, name := range []string{"a", "b"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "planner.go"), []byte(brokenPlanner), 0o644))
		for i := 0; i < f.Config().QuarantineThreshold; i++ {
			f.GetPlanner(context.Background(), name)
		}
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "planner.go"), []byte(workingPlanner), 0o644))
	}
	require.Len(t, f.ListQuarantined(), 2)

	assert.Equal(t, 2, f.SelfHeal(context.Background(), ""))
	assert.Empty(t, f.ListQuarantined())
}

func TestSelfHealNoQuarantined(t *testing.T) {
	f := New(testConfig())
	defer f.Close()
	assert.Equal(t, 0, f.SelfHeal(context.Background(), ""))
}

func TestHealthCheck(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.8},
		pluginSpec{name: "beta", tier: "stable", reliability: 0.8})

	report := f.HealthCheck(2)
	assert.True(t, report.Ready)
	assert.Equal(t, 2, report.Active)
	assert.Equal(t, 2, report.Total)

	// Quarantine one and readiness at the same bar drops.
	require.NoError(t, os.WriteFile(filepath.Join(root, "beta", "planner.go"), []byte(brokenPlanner), 0o644))
	for i := 0; i < f.Config().QuarantineThreshold; i++ {
		f.GetPlanner(context.Background(), "beta")
	}

	report = f.HealthCheck(2)
	assert.False(t, report.Ready)
	assert.Equal(t, 1, report.Active)
	assert.Equal(t, 1, report.Quarantined)
	assert.Equal(t, 2, report.Total)

	assert.True(t, f.HealthCheck(1).Ready)
	assert.True(t, f.HealthCheck(0).Ready)
}

func TestListPlannersExcludesQuarantined(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", tier: "stable", reliability: 0.8},
		pluginSpec{name: "beta", tier: "stable", reliability: 0.8})

	require.NoError(t, os.WriteFile(filepath.Join(root, "beta", "planner.go"), []byte(brokenPlanner), 0o644))
	for i := 0; i < f.Config().QuarantineThreshold; i++ {
		f.GetPlanner(context.Background(), "beta")
	}

	visible := f.ListPlanners(false)
	require.Len(t, visible, 1)
	assert.Equal(t, "alpha", visible[0].Name)

	all := f.ListPlanners(true)
	assert.Len(t, all, 2)
}

func TestReloadPlanners(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "keeper", tier: "stable", reliability: 0.8},
		pluginSpec{name: "goner", tier: "stable", reliability: 0.8})

	require.NoError(t, os.RemoveAll(filepath.Join(root, "goner")))

	n := f.ReloadPlanners(context.Background())
	assert.Equal(t, 1, n)

	_, err := f.DescribePlanner("goner")
	assert.True(t, types.IsNotFound(err), "removed plugin survived reload: %v", err)

	_, err = f.DescribePlanner("keeper")
	assert.NoError(t, err)
}

func TestRefreshMetadataPicksUpManifestChanges(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", capabilities: []string{"plan"}, tier: "experimental", reliability: 0.8})

	manifest := "name: alpha\ntier: production\nproduction_ready: true\nreliability: 0.8\ncapabilities:\n  - plan\n  - summarize\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "plugin.yaml"), []byte(manifest), 0o644))

	n := f.RefreshMetadata(context.Background())
	assert.Equal(t, 1, n)

	rec, err := f.DescribePlanner("alpha")
	require.NoError(t, err)
	assert.Equal(t, ranking.TierProduction, rec.Tier)
	assert.True(t, rec.ProductionReady)
	assert.Len(t, rec.Capabilities, 2)
}

func TestRefreshMetadataIgnoresUnknownPlugins(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "known", tier: "stable", reliability: 0.8})

	writePluginDir(t, root, pluginSpec{name: "newcomer", tier: "stable", reliability: 0.8})

	n := f.RefreshMetadata(context.Background())
	assert.Equal(t, 1, n, "refresh only touches already-registered planners")
	_, err := f.DescribePlanner("newcomer")
	assert.True(t, types.IsNotFound(err))
}

func TestReliabilityPersistsAcrossFactories(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "reliability.db")

	cfg := testConfig()
	cfg.ReliabilityDBPath = dbPath

	writePluginDir(t, root, pluginSpec{name: "veteran", tier: "stable", reliability: 0.5})

	f1 := New(cfg)
	f1.Discover(context.Background(), []string{root})
	_, err := f1.GetPlanner(context.Background(), "veteran")
	require.NoError(t, err)

	rec, err := f1.DescribePlanner("veteran")
	require.NoError(t, err)
	bumped := rec.ReliabilityScore
	assert.InDelta(t, 0.55, bumped, 1e-9)
	require.NoError(t, f1.Close())

	// A fresh factory over the same database seeds from history, not the
	// manifest declaration.
	f2 := New(cfg)
	defer f2.Close()
	f2.Discover(context.Background(), []string{root})

	rec, err = f2.DescribePlanner("veteran")
	require.NoError(t, err)
	assert.InDelta(t, bumped, rec.ReliabilityScore, 1e-9)
}

func TestCapabilitiesUnion(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "a", capabilities: []string{"plan", "summarize"}, tier: "stable", reliability: 0.8},
		pluginSpec{name: "b", capabilities: []string{"plan", "translate"}, tier: "stable", reliability: 0.8})

	caps := f.Capabilities()
	assert.Equal(t, []string{"plan", "summarize", "translate"}, caps)
}

func TestDiagnostics(t *testing.T) {
	root := t.TempDir()
	f := newTestFactory(t, testConfig(), root,
		pluginSpec{name: "alpha", capabilities: []string{"plan"}, tier: "stable", reliability: 0.8})

	_, err := f.SelectBestPlanner("objective", []string{"plan"}, nil)
	require.NoError(t, err)

	data, err := f.DiagnosticsJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"factory_version"`)
	assert.Contains(t, string(data), `"alpha"`)
	assert.Contains(t, string(data), `"selections"`)

	report := f.DiagnosticsReport()
	assert.Contains(t, report, "alpha")

	out := filepath.Join(t.TempDir(), "diag", "dump.json")
	require.NoError(t, f.ExportDiagnostics(out))
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"alpha"`)

	stats := f.PlannerStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
}
