package filemanager

import (
	"sync"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

// Step consumes a freshly published snapshot.
type Step interface {
	Process(data *snapshot.SnapshotData)
}

// StepFunc adapts a function to Step.
type StepFunc func(data *snapshot.SnapshotData)

// Process calls f(data).
func (f StepFunc) Process(data *snapshot.SnapshotData) { f(data) }

type registryEntry struct {
	enabled bool
	step    Step
}

// Registry is an ordered set of named post-processing steps. Steps run in
// registration order after every published recompute.
type Registry struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds an enabled step. Registering an existing name replaces its
// step and re-enables it without changing its position.
func (r *Registry) Register(name string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		e.step = step
		e.enabled = true
		return
	}
	r.entries[name] = &registryEntry{enabled: true, step: step}
	r.order = append(r.order, name)
}

// Enable switches a step on or off. It reports false for unknown names.
func (r *Registry) Enable(name string, on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.enabled = on
	return true
}

// Enabled reports whether name is registered and enabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	return ok && e.enabled
}

// Unregister removes a step. It reports false for unknown names.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns registered step names in run order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Run calls every enabled step in order. Steps run outside the registry
// lock, so a step may modify the registry; changes apply from the next Run.
func (r *Registry) Run(data *snapshot.SnapshotData) {
	r.mu.Lock()
	steps := make([]Step, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.enabled && e.step != nil {
			steps = append(steps, e.step)
		}
	}
	r.mu.Unlock()

	for _, s := range steps {
		s.Process(data)
	}
}
