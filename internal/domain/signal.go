package domain

// Signal wraps a value reported by an external party that may not have been
// observed yet. The zero value is the unknown state.
type Signal[T any] struct {
	value    T
	observed bool
}

// Observed builds a signal carrying an actually reported value.
func Observed[T any](v T) Signal[T] {
	return Signal[T]{value: v, observed: true}
}

// Unknown builds the not-yet-observed state of a signal.
func Unknown[T any]() Signal[T] {
	return Signal[T]{}
}

// Value returns the reported value and whether it was observed at all.
func (s Signal[T]) Value() (T, bool) {
	return s.value, s.observed
}

// IsObserved reports whether the upstream party has reported anything yet.
func (s Signal[T]) IsObserved() bool {
	return s.observed
}

// ValueOr returns the reported value, or fallback when the signal is unknown.
func (s Signal[T]) ValueOr(fallback T) T {
	if !s.observed {
		return fallback
	}
	return s.value
}
