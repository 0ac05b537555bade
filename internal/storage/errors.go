package storage

import "fmt"

// Error records a failed storage operation together with the object it
// targeted.
type Error struct {
	// Op is the operation that failed, e.g. "put".
	Op string

	Bucket string
	Key    string

	// Err is the underlying error from the backend.
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage: %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
