package result

import (
	"fmt"

	"github.com/samber/mo"
)

// Package result holds the two-variant outcome returned by fetch operations.

// Result is either a Success carrying a value or an Error carrying a
// human-readable message. Build one with Success or Error; the zero Result
// is a Success holding the zero value of T.
type Result[T any] struct {
	either mo.Either[string, T]
}

// Success wraps a value.
func Success[T any](value T) Result[T] {
	return Result[T]{either: mo.Right[string, T](value)}
}

// Error wraps a failure message.
func Error[T any](message string) Result[T] {
	return Result[T]{either: mo.Left[string, T](message)}
}

func (r Result[T]) IsSuccess() bool { return r.either.IsRight() }
func (r Result[T]) IsError() bool   { return r.either.IsLeft() }

// Value returns the success value and true, or the zero value and false for an Error.
func (r Result[T]) Value() (T, bool) {
	return r.either.Right()
}

// Message returns the error message and true, or "" and false for a Success.
func (r Result[T]) Message() (string, bool) {
	return r.either.Left()
}

// Match calls exactly one of the handlers.
func (r Result[T]) Match(onSuccess func(T), onError func(string)) {
	if msg, ok := r.either.Left(); ok {
		if onError != nil {
			onError(msg)
		}
		return
	}
	if v, ok := r.either.Right(); ok && onSuccess != nil {
		onSuccess(v)
	}
}

// Either exposes the underlying value: Left is the message, Right the value.
func (r Result[T]) Either() mo.Either[string, T] {
	return r.either
}

func (r Result[T]) String() string {
	if msg, ok := r.either.Left(); ok {
		return fmt.Sprintf("Error(%s)", msg)
	}
	v, _ := r.either.Right()
	return fmt.Sprintf("Success(%v)", v)
}
