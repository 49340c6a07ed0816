// Package result provides the loading / success / error wrapper that data access
// calls hand to the presentation layer.
package result

import (
	"encoding/json"
	"errors"
)

// State is the tri-state discriminator.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

const unknownError = "An unknown error occurred"

// Result carries either nothing (loading), a value (success) or an error and
// its user-facing message.
type Result[T any] struct {
	state   State
	value   T
	err     error
	message string
}

// Loading returns a result in the loading state.
func Loading[T any]() Result[T] { return Result[T]{state: StateLoading} }

// Success wraps a value.
func Success[T any](v T) Result[T] { return Result[T]{state: StateSuccess, value: v} }

// Failure wraps an error. The message defaults to err.Error().
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = errors.New(unknownError)
	}
	return Result[T]{state: StateError, err: err, message: err.Error()}
}

// FailureMessage wraps an error with an explicit user-facing message.
func FailureMessage[T any](err error, message string) Result[T] {
	r := Failure[T](err)
	if message != "" {
		r.message = message
	}
	return r
}

// Of runs fn and wraps its outcome.
func Of[T any](fn func() (T, error)) Result[T] {
	v, err := fn()
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// Map transforms the success value and passes other states through.
func Map[T, R any](r Result[T], fn func(T) R) Result[R] {
	switch r.state {
	case StateSuccess:
		return Success(fn(r.value))
	case StateError:
		return Result[R]{state: StateError, err: r.err, message: r.message}
	default:
		return Loading[R]()
	}
}

func (r Result[T]) State() State {
	if r.state == "" {
		return StateLoading
	}
	return r.state
}

func (r Result[T]) IsLoading() bool { return r.State() == StateLoading }
func (r Result[T]) IsSuccess() bool { return r.state == StateSuccess }
func (r Result[T]) IsError() bool   { return r.state == StateError }

// Value returns the success value and whether there is one.
func (r Result[T]) Value() (T, bool) {
	if r.state != StateSuccess {
		var zero T
		return zero, false
	}
	return r.value, true
}

// OrDefault returns the success value or def.
func (r Result[T]) OrDefault(def T) T {
	if r.state != StateSuccess {
		return def
	}
	return r.value
}

func (r Result[T]) Err() error      { return r.err }
func (r Result[T]) Message() string { return r.message }

// OnSuccess runs fn with the value when the result is a success.
func (r Result[T]) OnSuccess(fn func(T)) Result[T] {
	if r.state == StateSuccess {
		fn(r.value)
	}
	return r
}

// OnError runs fn with the error and message when the result is an error.
func (r Result[T]) OnError(fn func(error, string)) Result[T] {
	if r.state == StateError {
		fn(r.err, r.message)
	}
	return r
}

type envelope[T any] struct {
	State   State  `json:"state"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON renders {"state": ..., "data": ..., "message": ...}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	env := envelope[T]{State: r.State(), Message: r.message}
	if r.state == StateSuccess {
		v := r.value
		env.Data = &v
	}
	return json.Marshal(env)
}
