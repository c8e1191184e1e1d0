package dispatcher

import (
	"sort"
	"sync"

	"github.com/dshills/keystorm/internal/dispatcher/handler"
)

// Registry manages handler registration by exact action name in two
// layers. The builtin layer is populated during startup and becomes
// effectively immutable once Freeze is called; anything registered after
// that (plugin actions, test doubles) lands in an append-only runtime
// overlay consulted first at lookup time. Lookups on a frozen registry
// never contend on the builtin layer's contents, and a runtime
// registration can shadow but never destroy a builtin action.
type Registry struct {
	mu sync.RWMutex

	// builtin holds the startup registrations; read-only after Freeze.
	builtin map[string][]handler.Handler

	// runtime is the append-only overlay for post-freeze registrations.
	runtime map[string][]handler.Handler

	frozen bool
}

// NewRegistry creates a new handler registry.
func NewRegistry() *Registry {
	return &Registry{
		builtin: make(map[string][]handler.Handler),
		runtime: make(map[string][]handler.Handler),
	}
}

// Freeze seals the builtin layer. Registrations from here on go to the
// runtime overlay. Freezing twice is a no-op.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Register adds a handler for an action name: into the builtin layer
// before Freeze, into the runtime overlay after. Multiple handlers can be
// registered for the same action; they are sorted by priority.
func (r *Registry) Register(actionName string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	layer := r.builtin
	if r.frozen {
		layer = r.runtime
	}

	handlers := append(layer[actionName], h)

	// Sort by priority (descending)
	sort.Slice(handlers, func(i, j int) bool {
		return handlers[i].Priority() > handlers[j].Priority()
	})

	layer[actionName] = handlers
}

// Unregister removes all handlers for an action name. On a frozen
// registry only the runtime overlay is affected; builtin actions stay.
func (r *Registry) Unregister(actionName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runtime, actionName)
	if !r.frozen {
		delete(r.builtin, actionName)
	}
}

// UnregisterHandler removes a specific handler for an action name, from
// whichever layer holds it (the builtin layer only while unfrozen).
func (r *Registry) UnregisterHandler(actionName string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remove := func(layer map[string][]handler.Handler) bool {
		handlers := layer[actionName]
		for i, existing := range handlers {
			if existing == h {
				layer[actionName] = append(handlers[:i], handlers[i+1:]...)
				return true
			}
		}
		return false
	}

	if remove(r.runtime) {
		return
	}
	if !r.frozen {
		remove(r.builtin)
	}
}

// Get returns the highest priority handler for an action, preferring the
// runtime overlay. Returns nil if no handler is registered.
func (r *Registry) Get(actionName string) handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handlers := r.runtime[actionName]; len(handlers) > 0 {
		return handlers[0]
	}
	if handlers := r.builtin[actionName]; len(handlers) > 0 {
		return handlers[0]
	}
	return nil
}

// GetAll returns all handlers for an action, runtime overlay first.
func (r *Registry) GetAll(actionName string) []handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runtime := r.runtime[actionName]
	builtin := r.builtin[actionName]
	result := make([]handler.Handler, 0, len(runtime)+len(builtin))
	result = append(result, runtime...)
	result = append(result, builtin...)
	return result
}

// Has returns true if a handler is registered for the action.
func (r *Registry) Has(actionName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runtime[actionName]) > 0 || len(r.builtin[actionName]) > 0
}

// List returns all registered action names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.builtin)+len(r.runtime))
	names := make([]string, 0, len(r.builtin)+len(r.runtime))
	for _, layer := range []map[string][]handler.Handler{r.builtin, r.runtime} {
		for name, handlers := range layer {
			if len(handlers) == 0 || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.builtin)+len(r.runtime))
	for _, layer := range []map[string][]handler.Handler{r.builtin, r.runtime} {
		for name, handlers := range layer {
			if len(handlers) > 0 {
				seen[name] = true
			}
		}
	}
	return len(seen)
}

// Clear removes all registered handlers from both layers and unfreezes
// the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtin = make(map[string][]handler.Handler)
	r.runtime = make(map[string][]handler.Handler)
	r.frozen = false
}
