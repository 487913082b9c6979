package connectors

import "fmt"

// ConnectionError is the single connector-level error kind. Client
// construction failures, liveness failures and operation failures all
// normalize to it, regardless of the backend-specific cause, so the
// executor's retry logic never branches on backend.
type ConnectionError struct {
	Key string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %q: %v", e.Key, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports a node whose connection key has no bound
// configuration.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no connection configuration bound to key %q", e.Key)
}

// SecretsError reports secrets that fail the backend's schema. It is a
// configuration error raised before any client is built.
type SecretsError struct {
	Key     string
	Kind    Kind
	Missing []string
}

func (e *SecretsError) Error() string {
	return fmt.Sprintf("connection %q (%s): missing required secrets %v", e.Key, e.Kind, e.Missing)
}
