// Package property provides named, observable value cells.
//
// A Property[T] holds one value of type T under a name. Writing a new value
// notifies every listener registered for that name, synchronously, on the
// writer's goroutine. A List[T] applies the same contract to slices and adds
// Clear and Sort.
//
// # Core Types
//
// Property[T] is a named mutable cell:
//
//	count, _ := property.New("count", 0)
//	count.AddListener(property.OnChange(func(name string, old, new int) {
//	    fmt.Printf("%s: %d -> %d\n", name, old, new)
//	}))
//	count.Set(5)          // prints "count: 0 -> 5"
//	count.SetSilently(6)  // no notification
//
// List[T] is a named mutable slice:
//
//	items, _ := property.NewList("items", []int{3, 1, 2})
//	items.Sort(cmp.Compare[int])  // always notifies
//	items.Clear()                 // always notifies
//
// # Change Detection
//
// Set suppresses the notification when the new value is the same instance
// as the stored one: equal pointers, maps and channels; slices sharing the
// same backing array, length and capacity. Values without an identity in Go
// (numbers, strings, plain structs) are compared with ==, so setting a
// property to an equal int does not notify. Two distinct pointers to equal
// values are still a change. Property.WithEquals replaces the rule.
//
// Under the default Snapshot policy, List.Get returns the stored slice
// itself. Writing to its elements changes the list without a notification,
// and passing it back to Set is then a no-op. Treat it as read-only, or use
// the AlwaysCopy policy to get a private copy on every read.
//
// # Registries
//
// Listeners live in a Registry keyed by property name. By default every
// property gets a private Hub. Related properties can share one Hub, which
// makes it a single place to observe all of them:
//
//	hub := property.NewHub()
//	first, _ := property.New("first", "Ada", property.WithRegistry(hub))
//	last, _ := property.New("last", "Lovelace", property.WithRegistry(hub))
//	hub.AddAnyListener(property.Listen(func(ev property.Event) {
//	    log.Printf("%s changed", ev.Name)
//	}))
//
// Listeners are never removed automatically. Owners must call
// RemoveListener with the same Listener value to stop receiving events.
//
// # Errors
//
// Contract violations (blank names, nil values on non-nullable properties,
// nil listeners or comparators) are returned as *ArgumentError values that
// match ErrInvalidArgument with errors.Is.
//
// # Thread Safety
//
// All types are safe for concurrent use. Storing a value and dispatching
// its notification are two separate steps: a concurrent reader may observe
// the new value before any listener has run.
package property
