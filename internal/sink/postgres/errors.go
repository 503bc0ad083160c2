package postgres

// SchemaError is returned when the target schema does not match what the
// sink expects. It is fatal to sink initialization.
type SchemaError struct {
	Msg string
	Err error
}

func (e *SchemaError) Error() string { return e.Msg }

func (e *SchemaError) Unwrap() error { return e.Err }

// UpdateError is returned when persisting a single block fails. The sink
// does not retry; the caller owns that policy.
type UpdateError struct {
	Msg string
	Err error
}

func (e *UpdateError) Error() string { return e.Msg }

func (e *UpdateError) Unwrap() error { return e.Err }
