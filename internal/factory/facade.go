package factory

import (
	"context"
	"sync"

	"overmind/internal/config"
	"overmind/internal/ranking"
	"overmind/internal/telemetry"
)

// =============================================================================
// PROCESS-WIDE FACADE
// =============================================================================
// Most of the application constructs its own factory and passes it around.
// The facade exists for the composition root and for call sites that predate
// dependency injection: one lazily-initialized process-wide factory plus flat
// convenience functions over it.

var (
	defaultFactory *PlannerFactory
	defaultMu      sync.Mutex
)

// Default returns the process-wide factory, creating it from the environment
// on first use.
func Default() *PlannerFactory {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultFactory == nil {
		defaultFactory = New(config.FactoryConfigFromEnv())
	}
	return defaultFactory
}

// SetDefault replaces the process-wide factory. Intended for the composition
// root; returns the previous factory (which the caller owns closing).
func SetDefault(f *PlannerFactory) *PlannerFactory {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultFactory
	defaultFactory = f
	return prev
}

// Discover runs discovery on the process-wide factory.
func Discover(ctx context.Context, searchPaths []string) int {
	return Default().Discover(ctx, searchPaths)
}

// GetPlanner fetches an instance from the process-wide factory.
func GetPlanner(ctx context.Context, name string) (interface{}, error) {
	return Default().GetPlanner(ctx, name)
}

// SelectBestPlanner selects on the process-wide factory.
func SelectBestPlanner(objective string, required []string, deep *ranking.DeepContext) (PlannerRecord, error) {
	return Default().SelectBestPlanner(objective, required, deep)
}

// SelectBestPlannerName selects on the process-wide factory, returning the name.
func SelectBestPlannerName(objective string, required []string, deep *ranking.DeepContext) (string, error) {
	return Default().SelectBestPlannerName(objective, required, deep)
}

// AGetPlanner is the async facade over the process-wide factory.
func AGetPlanner(ctx context.Context, name string) <-chan PlannerResult {
	return Default().AGetPlanner(ctx, name)
}

// ASelectBestPlanner is the async facade over the process-wide factory.
func ASelectBestPlanner(ctx context.Context, objective string, required []string, deep *ranking.DeepContext) <-chan SelectionResult {
	return Default().ASelectBestPlanner(ctx, objective, required, deep)
}

// SelfHeal heals quarantined planners on the process-wide factory.
func SelfHeal(ctx context.Context, name string) int {
	return Default().SelfHeal(ctx, name)
}

// HealthCheck reports health of the process-wide factory.
func HealthCheck(minRequired int) HealthReport {
	return Default().HealthCheck(minRequired)
}

// ListPlanners lists records from the process-wide factory.
func ListPlanners(includeQuarantined bool) []PlannerRecord {
	return Default().ListPlanners(includeQuarantined)
}

// SelectionProfiles returns recent selection samples from the process-wide factory.
func SelectionProfiles(limit int) []telemetry.SelectionSample {
	return Default().SelectionProfiles(limit)
}
