package property

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// CopyPolicy decides whether a List copies slices on the way in and out.
type CopyPolicy int32

const (
	// Snapshot copies on every write and hands out the stored copy on read.
	// Slices returned by Get are shared and must not be modified; their
	// capacity is clipped so that append always reallocates.
	Snapshot CopyPolicy = iota

	// AlwaysCopy copies on every write and on every read.
	AlwaysCopy

	// ByReference neither copies on write nor on read. The list aliases the
	// caller's slice, and changes made through an alias are not observed
	// as notifications.
	ByReference
)

func (c CopyPolicy) String() string {
	switch c {
	case Snapshot:
		return "snapshot"
	case AlwaysCopy:
		return "copy"
	case ByReference:
		return "reference"
	default:
		return fmt.Sprintf("CopyPolicy(%d)", int32(c))
	}
}

func (c CopyPolicy) valid() bool {
	return c >= Snapshot && c <= ByReference
}

// ParseCopyPolicy converts the String form of a policy back to a CopyPolicy.
func ParseCopyPolicy(s string) (CopyPolicy, error) {
	switch s {
	case "snapshot", "":
		return Snapshot, nil
	case "copy":
		return AlwaysCopy, nil
	case "reference":
		return ByReference, nil
	}
	return Snapshot, argError("ParseCopyPolicy", "copy policy", fmt.Sprintf("unknown policy %q", s))
}

// List is a property holding a slice.
//
// Name, storage and listeners are delegated to an inner Property[[]T].
// The list itself is never nil; it holds an empty slice instead.
type List[T any] struct {
	inner  *Property[[]T]
	policy atomic.Int32

	// mu serializes writes so that Sort can read, reorder and store
	// without holding the value lock while the comparator runs.
	mu sync.Mutex
}

// NewList creates a list property. A nil initial slice is rejected; use an
// empty slice for an empty list. Under the default Snapshot policy the
// initial slice is copied.
func NewList[T any](name string, initial []T, opts ...Option) (*List[T], error) {
	const op = "NewList"
	o, err := buildOptions(op, opts)
	if err != nil {
		return nil, err
	}
	stored, err := admit(op, initial, o.copyPolicy)
	if err != nil {
		return nil, err
	}
	inner, err := build(op, name, false, stored, o)
	if err != nil {
		return nil, err
	}

	l := &List[T]{inner: inner}
	l.policy.Store(int32(o.copyPolicy))
	return l, nil
}

// Name returns the property name.
func (l *List[T]) Name() string {
	return l.inner.Name()
}

// CopyPolicy returns the current copy policy.
func (l *List[T]) CopyPolicy() CopyPolicy {
	return CopyPolicy(l.policy.Load())
}

// SetCopyPolicy changes the copy policy for subsequent calls.
// Switching to ByReference hands aliasing risk to the callers.
func (l *List[T]) SetCopyPolicy(policy CopyPolicy) error {
	if !policy.valid() {
		return argError("List.SetCopyPolicy", "copy policy", "unknown policy "+policy.String())
	}
	l.policy.Store(int32(policy))
	return nil
}

// Get returns the current elements according to the copy policy.
func (l *List[T]) Get() []T {
	s := l.inner.Get()
	switch l.CopyPolicy() {
	case Snapshot:
		return slices.Clip(s)
	case AlwaysCopy:
		return copyOf(s)
	default:
		return s
	}
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	return len(l.inner.Get())
}

// IsEmpty reports whether the list has no elements.
func (l *List[T]) IsEmpty() bool {
	return l.Len() == 0
}

// Set replaces the elements and notifies listeners. A nil seq is rejected.
// Under the copying policies every call stores a new slice and therefore
// notifies, except under Snapshot when seq is the slice currently returned
// by Get.
func (l *List[T]) Set(seq []T) error {
	return l.store("List.Set", seq, notifyOnChange)
}

// SetSilently replaces the elements without notifying.
func (l *List[T]) SetSilently(seq []T) error {
	return l.store("List.SetSilently", seq, silent)
}

func (l *List[T]) store(op string, seq []T, mode dispatch) error {
	policy := l.CopyPolicy()
	stored, err := admit(op, seq, policy)
	if err != nil {
		return err
	}
	return l.write(op, func(old []T) []T {
		if policy == Snapshot && sameBacking(old, seq) {
			return old
		}
		return stored
	}, mode)
}

// write stores next(current) under the list mutex and dispatches after
// releasing it, so listeners may write to the list.
func (l *List[T]) write(op string, next func([]T) []T, mode dispatch) error {
	l.mu.Lock()
	ev, fire, err := l.inner.swap(op, next, mode)
	l.mu.Unlock()
	if err != nil || !fire {
		return err
	}
	l.inner.registry.Fire(ev)
	return nil
}

// Clear replaces the elements with a new empty slice and always notifies,
// even if the list was already empty.
func (l *List[T]) Clear() error {
	return l.write("List.Clear", func([]T) []T {
		return make([]T, 0)
	}, notifyAlways)
}

// Sort orders the elements with cmp, which follows the cmp.Compare
// convention, and always notifies, even if the order did not change.
// The sort is stable. Under ByReference the live slice is sorted in place.
//
// cmp runs without the value lock held, so it may read the list. It must
// not write to it.
func (l *List[T]) Sort(cmp func(a, b T) int) error {
	const op = "List.Sort"
	if cmp == nil {
		return argError(op, "comparator", "must not be nil")
	}

	l.mu.Lock()
	sorted := l.inner.Get()
	if l.CopyPolicy() != ByReference {
		sorted = copyOf(sorted)
	}
	slices.SortStableFunc(sorted, cmp)
	ev, fire, err := l.inner.swap(op, func([]T) []T { return sorted }, notifyAlways)
	l.mu.Unlock()

	if err != nil || !fire {
		return err
	}
	l.inner.registry.Fire(ev)
	return nil
}

// AddListener registers l under the list's name.
func (l *List[T]) AddListener(listener Listener) error {
	return l.inner.AddListener(listener)
}

// RemoveListener unregisters l.
func (l *List[T]) RemoveListener(listener Listener) error {
	return l.inner.RemoveListener(listener)
}

// admit prepares seq for storage under policy.
func admit[T any](op string, seq []T, policy CopyPolicy) ([]T, error) {
	if seq == nil {
		return nil, absentError(op)
	}
	if policy == ByReference {
		return seq, nil
	}
	return copyOf(seq), nil
}

func copyOf[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// sameBacking reports whether a and b view the same elements.
// Capacity is ignored because Get clips it.
func sameBacking[T any](a, b []T) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
