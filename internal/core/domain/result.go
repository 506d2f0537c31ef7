package domain

// Result is a two-variant outcome: a value or a failure reason, never both
// and never neither. It is the uniform return contract for pipeline stages so
// failures travel as values until they are folded into user-visible state.
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrUnexpected
	}
	return Result[T]{err: err}
}

func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the success value and the zero value on failure. Use Unpack
// when the failure needs to be observed.
func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Unpack() (T, error) {
	return r.value, r.err
}

// MapErr transforms only the failure reason, passing success through.
func (r Result[T]) MapErr(f func(error) error) Result[T] {
	if r.err == nil {
		return r
	}
	return Result[T]{err: f(r.err)}
}

// Map transforms a success value, passing failure through unchanged.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return Result[U]{value: f(r.value)}
}

// FlatMap chains a success into another fallible step; the first failure in a
// left-to-right chain short-circuits the rest.
func FlatMap[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return f(r.value)
}

// Fold reduces both variants to a single value type, crossing the Result
// boundary into caller-visible state.
func Fold[T, U any](r Result[T], onOk func(T) U, onErr func(error) U) U {
	if r.err != nil {
		return onErr(r.err)
	}
	return onOk(r.value)
}
