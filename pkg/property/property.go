package property

import (
	"strings"
	"sync"
)

// Property is a named, observable value cell.
//
// Get may be called concurrently with Set. Writes are linearized per
// instance; notifications run on the writer's goroutine after the value
// has been stored.
type Property[T any] struct {
	name     string
	nullable bool
	registry Registry

	// value is the current value.
	value T

	// mu protects value.
	mu sync.RWMutex

	// equal decides whether a write is a change.
	// If nil, identity comparison is used.
	equal func(T, T) bool
}

// dispatch selects how commit notifies.
type dispatch int

const (
	notifyOnChange dispatch = iota
	notifyAlways
	silent
)

// New creates a non-nullable property. A nil initial value of a nilable
// type is rejected, as is a blank name.
func New[T any](name string, initial T, opts ...Option) (*Property[T], error) {
	return newProperty("New", name, false, initial, opts)
}

// NewNullable creates a nullable property holding the zero value of T.
func NewNullable[T any](name string, opts ...Option) (*Property[T], error) {
	var zero T
	return newProperty("NewNullable", name, true, zero, opts)
}

// NewNullableWith creates a nullable property holding initial.
func NewNullableWith[T any](name string, initial T, opts ...Option) (*Property[T], error) {
	return newProperty("NewNullableWith", name, true, initial, opts)
}

func newProperty[T any](op, name string, nullable bool, initial T, opts []Option) (*Property[T], error) {
	o, err := buildOptions(op, opts)
	if err != nil {
		return nil, err
	}
	return build(op, name, nullable, initial, o)
}

func build[T any](op, name string, nullable bool, initial T, o options) (*Property[T], error) {
	if strings.TrimSpace(name) == "" {
		return nil, argError(op, "name", "must not be blank")
	}
	if !nullable && isAbsent(initial) {
		return nil, absentError(op)
	}
	return &Property[T]{
		name:     name,
		nullable: nullable,
		registry: o.registry,
		value:    initial,
	}, nil
}

// Name returns the property name.
func (p *Property[T]) Name() string {
	return p.name
}

// Nullable reports whether the property accepts nil values.
func (p *Property[T]) Nullable() bool {
	return p.nullable
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores value and notifies listeners, unless value is the same
// instance as the stored value.
func (p *Property[T]) Set(value T) error {
	return p.commit("Property.Set", func(T) T { return value }, notifyOnChange)
}

// SetSilently stores value without notifying anyone, whether or not it
// differs from the stored value.
func (p *Property[T]) SetSilently(value T) error {
	return p.commit("Property.SetSilently", func(T) T { return value }, silent)
}

// Update atomically replaces the value with fn(current) and notifies as Set
// does. fn runs under the property's lock and must not access the property.
func (p *Property[T]) Update(fn func(T) T) error {
	if fn == nil {
		return argError("Property.Update", "function", "must not be nil")
	}
	return p.commit("Property.Update", fn, notifyOnChange)
}

// WithEquals replaces the change test used by Set and Update and returns p.
// A nil fn restores identity comparison. Call it before the property is
// shared.
func (p *Property[T]) WithEquals(fn func(a, b T) bool) *Property[T] {
	p.equal = fn
	return p
}

// AddListener registers l under the property's name.
// Registering the same listener twice makes it run twice per change.
func (p *Property[T]) AddListener(l Listener) error {
	if err := checkListener("Property.AddListener", l); err != nil {
		return err
	}
	p.registry.AddListener(p.name, l)
	return nil
}

// RemoveListener unregisters l. Unknown listeners are ignored.
func (p *Property[T]) RemoveListener(l Listener) error {
	if err := checkListener("Property.RemoveListener", l); err != nil {
		return err
	}
	p.registry.RemoveListener(p.name, l)
	return nil
}

// commit stores the next value and then, outside the lock, dispatches
// according to mode.
func (p *Property[T]) commit(op string, next func(T) T, mode dispatch) error {
	ev, fire, err := p.swap(op, next, mode)
	if err != nil || !fire {
		return err
	}
	p.registry.Fire(ev)
	return nil
}

// swap computes the next value under the write lock and stores it.
// It reports the event to dispatch, if any, without dispatching it.
func (p *Property[T]) swap(op string, next func(T) T, mode dispatch) (Event, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.value
	value := next(old)
	if !p.nullable && isAbsent(value) {
		return Event{}, false, absentError(op)
	}
	if mode == notifyOnChange && p.same(old, value) {
		return Event{}, false, nil
	}
	p.value = value
	return Event{Name: p.name, Old: old, New: value}, mode != silent, nil
}

func (p *Property[T]) same(a, b T) bool {
	if p.equal != nil {
		return p.equal(a, b)
	}
	return identical(a, b)
}

func checkListener(op string, l Listener) error {
	if isAbsent(l) {
		return argError(op, "listener", "must not be nil")
	}
	if !comparableListener(l) {
		return argError(op, "listener", "must be comparable")
	}
	return nil
}
