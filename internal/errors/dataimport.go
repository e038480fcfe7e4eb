// Package errors defines the structured error envelope the media inliner
// wraps every per-resource failure in, so a log line or a metrics label can
// always name which resource and which step of the pipeline failed without
// the caller needing to inspect the underlying error chain.
package errors

import "fmt"

// Op names a step of the scan-fetch-store-rewrite pipeline.
type Op string

// The pipeline steps that can fail independently of one another.
const (
	OpFetch     Op = "fetch"
	OpDetect    Op = "detect"
	OpStore     Op = "store"
	OpPersist   Op = "persist"
	OpScan      Op = "scan"
	OpTranscode Op = "transcode"
)

// DataImportError wraps the cause of a single resource's failure with enough
// context to log or alert on without unwinding the whole job.
type DataImportError struct {
	ResourceKind string // "post", "post_meta", "tag", "user"
	ResourceID   string
	Op           Op
	Cause        error
}

// New builds a DataImportError. Cause may be nil, though callers normally
// only construct one in response to a non-nil error.
func New(resourceKind, resourceID string, op Op, cause error) *DataImportError {
	return &DataImportError{
		ResourceKind: resourceKind,
		ResourceID:   resourceID,
		Op:           op,
		Cause:        cause,
	}
}

func (e *DataImportError) Error() string {
	return fmt.Sprintf("data import: %s %s: %s failed: %v", e.ResourceKind, e.ResourceID, e.Op, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *DataImportError) Unwrap() error {
	return e.Cause
}
