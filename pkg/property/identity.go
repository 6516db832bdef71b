package property

import "reflect"

// identical reports whether a and b are the same instance.
// Reference kinds compare by address; kinds without an identity fall back
// to == when comparable and are otherwise always considered different.
func identical[T any](a, b T) bool {
	return sameValue(reflect.ValueOf(any(a)), reflect.ValueOf(any(b)))
}

func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return !a.IsValid() && !b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() &&
			a.Len() == b.Len() &&
			a.Cap() == b.Cap() &&
			a.IsNil() == b.IsNil()
	case reflect.Func:
		// Closures share code pointers, so only nil has an identity.
		return a.IsNil() && b.IsNil()
	case reflect.Interface:
		return sameValue(a.Elem(), b.Elem())
	default:
		if a.Comparable() && b.Comparable() {
			return a.Equal(b)
		}
		return false
	}
}

// isAbsent reports whether v is a nil value of a nilable kind.
func isAbsent[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// comparableListener reports whether l can be found again with == by
// RemoveListener. It inspects the dynamic value, so a struct whose interface
// field holds a slice is rejected.
func comparableListener(l Listener) bool {
	return reflect.ValueOf(l).Comparable()
}
