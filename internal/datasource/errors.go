package datasource

import "fmt"

// StorageAccessError reports a failure to list or read from the object
// store. It is fatal to a run.
type StorageAccessError struct {
	Op     string // "list" or "read"
	Bucket string
	Object string // empty for listing failures
	Err    error
}

func (e *StorageAccessError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("storage access: %s gs://%s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("storage access: %s gs://%s/%s: %v", e.Op, e.Bucket, e.Object, e.Err)
}

func (e *StorageAccessError) Unwrap() error { return e.Err }

// ParseError reports an object whose content is not valid UTF-8 JSON, or
// that could not be flattened into a table.
type ParseError struct {
	Object string
	Index  int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (index %d): %v", e.Object, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
