package registry

import (
	"sync"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// Registry holds the authoritative map of component identity to health,
// status and dependency metadata. Registration is idempotent by id; the
// latest status wins.
type Registry struct {
	mu         sync.RWMutex
	components map[model.ComponentID]model.ComponentStatus
	logger     *zap.Logger
}

// NewRegistry creates an empty component registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		components: make(map[model.ComponentID]model.ComponentStatus),
		logger:     logger,
	}
}

// Register inserts or replaces the entry for status.ID and returns true
// when an existing entry was replaced.
func (r *Registry) Register(status model.ComponentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.components[status.ID]
	if status.RegisteredAt.IsZero() {
		status.RegisteredAt = time.Now()
	}
	if !status.State.Valid() {
		status.State = model.StateStarting
	}
	r.components[status.ID] = status.Clone()

	r.logger.Info("Component registered",
		zap.String("component_id", string(status.ID)),
		zap.String("state", string(status.State)),
		zap.Int("dependencies", len(status.Dependencies)),
		zap.Bool("replaced", replaced))

	return replaced
}

// Unregister removes the entry for id. It is a no-op returning false if
// the id is not registered.
func (r *Registry) Unregister(id model.ComponentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[id]; !ok {
		return false
	}
	delete(r.components, id)

	r.logger.Info("Component unregistered", zap.String("component_id", string(id)))
	return true
}

// Get returns the status for id, if registered.
func (r *Registry) Get(id model.ComponentID) (model.ComponentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[id]
	if !ok {
		return model.ComponentStatus{}, false
	}
	return c.Clone(), true
}

// SetState updates the state of a registered component and stamps the
// check time. Unknown ids are ignored.
func (r *Registry) SetState(id model.ComponentID, state model.ComponentState, checkedAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[id]
	if !ok {
		return false
	}
	c.State = state
	c.LastChecked = checkedAt
	r.components[id] = c
	return true
}

// Snapshot returns a deep copy of the component map.
func (r *Registry) Snapshot() map[model.ComponentID]model.ComponentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[model.ComponentID]model.ComponentStatus, len(r.components))
	for id, c := range r.components {
		out[id] = c.Clone()
	}
	return out
}

// Count returns the number of registered components.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.components)
}
