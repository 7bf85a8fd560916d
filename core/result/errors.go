package result

import (
	"fmt"
	"strconv"
)

// DecodeError is returned when a file cannot be decoded into rows.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return "unreadable file: " + e.Err.Error()
	}
	return fmt.Sprintf("unreadable file %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError identifies the first invalid row of a batch.
// Row is the 1-based position of the row in the batch (the header excluded), 0 when the whole batch is at fault.
type ValidationError struct {
	Reason string
	Row    int
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Row == 0 {
		return e.Reason
	}
	return "row " + strconv.Itoa(e.Row) + ": " + e.Reason
}

// EditError is returned when a manual edit cannot be applied to the working copy.
type EditError struct {
	Index    string
	RawValue string
	Reason   string
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s: invalid mark %q: %s", e.Index, e.RawValue, e.Reason)
}
