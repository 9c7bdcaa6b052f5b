package route

import "fmt"

// BindError means the route's listen address could not be bound. It ends the route.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// AcceptError means Accept failed while the route's policy is to stop
type AcceptError struct {
	Addr string
	Err  error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("failed to accept on %s: %v", e.Addr, e.Err)
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

// DialError means the destination could not be reached for one accepted client.
// Only that client is dropped.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}
