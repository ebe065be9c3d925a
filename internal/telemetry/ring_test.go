package telemetry

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRingBufferBoundedGrowth(t *testing.T) {
	rb := NewRingBuffer[int](3)

	for i := 1; i <= 100; i++ {
		rb.Push(i)
		if rb.Len() > 3 {
			t.Fatalf("len %d exceeded capacity after %d pushes", rb.Len(), i)
		}
	}
	if rb.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rb.Len())
	}
	if rb.Cap() != 3 {
		t.Errorf("Cap() = %d, want 3", rb.Cap())
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	got := rb.Last(3)
	want := []int{3, 4, 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Last(3) mismatch (-want +got):\n%s", diff)
	}
}

func TestRingBufferLast(t *testing.T) {
	tests := []struct {
		name   string
		cap    int
		pushes int
		k      int
		want   []int
	}{
		{"empty", 4, 0, 3, nil},
		{"partial fill", 4, 2, 5, []int{1, 2}},
		{"exact fill", 4, 4, 4, []int{1, 2, 3, 4}},
		{"wrapped", 4, 7, 2, []int{6, 7}},
		{"k larger than count", 4, 7, 10, []int{4, 5, 6, 7}},
		{"k zero", 4, 3, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer[int](tt.cap)
			for i := 1; i <= tt.pushes; i++ {
				rb.Push(i)
			}
			got := rb.Last(tt.k)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Last(%d) mismatch (-want +got):\n%s", tt.k, diff)
			}
		})
	}
}

func TestRingBufferNonPositiveCapacity(t *testing.T) {
	rb := NewRingBuffer[string](0)
	rb.Push("a")
	rb.Push("b")

	if rb.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", rb.Cap())
	}
	got := rb.Last(1)
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("Last(1) = %v, want [b]", got)
	}
}

func TestRingBufferConcurrentPush(t *testing.T) {
	rb := NewRingBuffer[int](64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rb.Push(base*1000 + i)
			}
		}(g)
	}
	wg.Wait()

	if rb.Len() != 64 {
		t.Errorf("Len() = %d, want 64 after concurrent fill", rb.Len())
	}
}

func TestProfilerStampsSamples(t *testing.T) {
	p := NewSelectionProfiler(8)
	p.RecordSelection(SelectionSample{ChosenPlanner: "tree_sitter", Score: 0.91})
	p.RecordSelection(SelectionSample{ChosenPlanner: "spec_driven", Score: 0.77})

	samples := p.Samples(0)
	if len(samples) != 2 {
		t.Fatalf("Samples(0) returned %d samples, want 2", len(samples))
	}
	for _, s := range samples {
		if s.ID == "" {
			t.Errorf("sample for %s missing ID", s.ChosenPlanner)
		}
		if s.Timestamp.IsZero() {
			t.Errorf("sample for %s missing timestamp", s.ChosenPlanner)
		}
	}
	if samples[0].ChosenPlanner != "tree_sitter" || samples[1].ChosenPlanner != "spec_driven" {
		t.Errorf("samples out of insertion order: %v", samples)
	}
}

func TestProfilerLimit(t *testing.T) {
	p := NewInstantiationProfiler(4)
	for i := 0; i < 6; i++ {
		p.RecordInstantiation(InstantiationSample{Planner: "p", Success: true})
	}

	if got := len(p.Samples(2)); got != 2 {
		t.Errorf("Samples(2) returned %d, want 2", got)
	}
	if got := len(p.Samples(0)); got != 4 {
		t.Errorf("Samples(0) returned %d, want 4 (retention cap)", got)
	}
	if got := len(p.Samples(100)); got != 4 {
		t.Errorf("Samples(100) returned %d, want 4", got)
	}
}

func TestManagerRoutesSamples(t *testing.T) {
	m := NewManager(16, 16)
	m.RecordSelection(SelectionSample{ChosenPlanner: "a"})
	m.RecordInstantiation(InstantiationSample{Planner: "a", CacheHit: true})

	if got := len(m.SelectionSamples(0)); got != 1 {
		t.Errorf("SelectionSamples(0) = %d entries, want 1", got)
	}
	inst := m.InstantiationSamples(0)
	if len(inst) != 1 || !inst[0].CacheHit {
		t.Errorf("InstantiationSamples(0) = %+v, want one cache hit", inst)
	}
}

func TestManagerIndependentCapacities(t *testing.T) {
	m := NewManager(2, 3)
	for i := 0; i < 5; i++ {
		m.RecordSelection(SelectionSample{ChosenPlanner: "a"})
		m.RecordInstantiation(InstantiationSample{Planner: "a"})
	}

	if got := len(m.SelectionSamples(0)); got != 3 {
		t.Errorf("SelectionSamples(0) = %d entries, want 3", got)
	}
	if got := len(m.InstantiationSamples(0)); got != 2 {
		t.Errorf("InstantiationSamples(0) = %d entries, want 2", got)
	}
}
