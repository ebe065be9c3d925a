package telemetry

// Manager owns exactly one profiler of each kind and is the single telemetry
// entry point used by the factory core. Keeping storage behind the manager
// decouples selection logic from retention concerns.
type Manager struct {
	selections     *SelectionProfiler
	instantiations *InstantiationProfiler
}

// NewManager creates a manager. Selection profiles are retained up to
// maxProfiles, instantiation samples up to maxSamples.
func NewManager(maxSamples, maxProfiles int) *Manager {
	return &Manager{
		selections:     NewSelectionProfiler(maxProfiles),
		instantiations: NewInstantiationProfiler(maxSamples),
	}
}

// RecordSelection appends a selection sample.
func (m *Manager) RecordSelection(sample SelectionSample) {
	m.selections.RecordSelection(sample)
}

// RecordInstantiation appends an instantiation sample.
func (m *Manager) RecordInstantiation(sample InstantiationSample) {
	m.instantiations.RecordInstantiation(sample)
}

// SelectionSamples returns the most recent limit selection samples.
func (m *Manager) SelectionSamples(limit int) []SelectionSample {
	return m.selections.Samples(limit)
}

// InstantiationSamples returns the most recent limit instantiation samples.
func (m *Manager) InstantiationSamples(limit int) []InstantiationSample {
	return m.instantiations.Samples(limit)
}
