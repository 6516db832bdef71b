package property

import (
	"log/slog"
	"slices"
	"sync"
)

// Event describes one change of a property.
type Event struct {
	// Name is the name of the property that changed.
	Name string
	// Old is the value before the change.
	Old any
	// New is the value after the change.
	New any
}

// Listener receives change events.
//
// Listeners are removed by comparing them with ==, so implementations must
// be comparable. Pointer receivers are the usual choice; Listen and OnChange
// return pointers.
type Listener interface {
	PropertyChanged(ev Event)
}

type funcListener struct {
	fn func(Event)
}

func (l *funcListener) PropertyChanged(ev Event) { l.fn(ev) }

// Listen adapts fn to a Listener. Each call returns a distinct Listener;
// keep the result to remove it later.
func Listen(fn func(ev Event)) Listener {
	if fn == nil {
		return nil
	}
	return &funcListener{fn: fn}
}

type typedListener[T any] struct {
	fn func(name string, old, new T)
}

func (l *typedListener[T]) PropertyChanged(ev Event) {
	old, _ := ev.Old.(T)
	value, _ := ev.New.(T)
	l.fn(ev.Name, old, value)
}

// OnChange adapts a typed callback to a Listener.
// Old or new values that are nil, or not of type T, arrive as the zero T.
func OnChange[T any](fn func(name string, old, new T)) Listener {
	if fn == nil {
		return nil
	}
	return &typedListener[T]{fn: fn}
}

// Registry dispatches change events to listeners keyed by property name.
// Implementations must be safe for concurrent use by every property that
// shares them.
type Registry interface {
	// AddListener registers l for events named name.
	AddListener(name string, l Listener)
	// RemoveListener removes one registration of l for name, if any.
	RemoveListener(name string, l Listener)
	// Fire delivers ev to the listeners registered for ev.Name.
	Fire(ev Event)
}

// Hub is the default Registry.
//
// Listeners for a name run in registration order, followed by listeners
// registered with AddAnyListener. A listener registered twice runs twice.
type Hub struct {
	// named maps a property name to its listeners.
	named map[string][]Listener

	// wildcard listeners receive every event.
	wildcard []Listener

	// mu protects named and wildcard.
	mu sync.RWMutex

	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger used for debug output.
// Default: slog.Default().
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		named:  make(map[string][]Listener),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddListener registers l for events named name.
func (h *Hub) AddListener(name string, l Listener) {
	if l == nil {
		return
	}

	h.mu.Lock()
	h.named[name] = append(h.named[name], l)
	n := len(h.named[name])
	h.mu.Unlock()

	h.logger.Debug("property listener added", "property", name, "listeners", n)
}

// RemoveListener removes the first registration of l for name.
func (h *Hub) RemoveListener(name string, l Listener) {
	if l == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.named[name]
	i := indexOf(subs, l)
	if i < 0 {
		return
	}
	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(h.named, name)
	} else {
		h.named[name] = subs
	}

	h.logger.Debug("property listener removed", "property", name, "listeners", len(subs))
}

// AddAnyListener registers l for events of every name.
func (h *Hub) AddAnyListener(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.wildcard = append(h.wildcard, l)
	h.mu.Unlock()
}

// RemoveAnyListener removes the first wildcard registration of l.
func (h *Hub) RemoveAnyListener(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := indexOf(h.wildcard, l); i >= 0 {
		h.wildcard = slices.Delete(h.wildcard, i, i+1)
	}
}

// Listeners returns a copy of the listeners registered for name,
// excluding wildcard listeners.
func (h *Hub) Listeners(name string) []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.named[name])
}

// HasListeners reports whether any listener, named or wildcard, would
// receive an event named name.
func (h *Hub) HasListeners(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.named[name]) > 0 || len(h.wildcard) > 0
}

// Fire delivers ev to its listeners on the calling goroutine.
// The listener set is copied before dispatch, so listeners may add or
// remove listeners without deadlocking.
func (h *Hub) Fire(ev Event) {
	h.mu.RLock()
	subs := make([]Listener, 0, len(h.named[ev.Name])+len(h.wildcard))
	subs = append(subs, h.named[ev.Name]...)
	subs = append(subs, h.wildcard...)
	h.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	h.logger.Debug("property changed", "property", ev.Name, "listeners", len(subs))

	for _, l := range subs {
		l.PropertyChanged(ev)
	}
}

func indexOf(subs []Listener, l Listener) int {
	if !comparableListener(l) {
		return -1
	}
	for i, existing := range subs {
		if comparableListener(existing) && existing == l {
			return i
		}
	}
	return -1
}
