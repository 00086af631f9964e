package domain

// Advisory carries the result of a non-critical computation. When the
// computation could not run, Value holds its documented neutral default,
// Fallback is set and Err records the cause.
type Advisory[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// Computed wraps a legitimately computed value.
func Computed[T any](v T) Advisory[T] {
	return Advisory[T]{Value: v}
}

// FallbackTo wraps a default returned because of err.
func FallbackTo[T any](v T, err error) Advisory[T] {
	return Advisory[T]{Value: v, Fallback: true, Err: err}
}
