package shard

import "fmt"

// NotFoundError is returned by ShardManager.GetShard for an id with no
// backing shard.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("shard: %q not found", e.ID) }

// AlreadyExistsError is returned when a shard is created twice for the
// same partition value outside the idempotent getOrCreateShard path.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string { return fmt.Sprintf("shard: %q already exists", e.ID) }

// PersistFailureError wraps a failed atomic-replace of a shard's
// payload or sidecar metadata.
type PersistFailureError struct {
	ID  string
	Err error
}

func (e *PersistFailureError) Error() string {
	return fmt.Sprintf("shard: persist failed for %q: %v", e.ID, e.Err)
}

func (e *PersistFailureError) Unwrap() error { return e.Err }

// PartitionKeyNotFoundError is returned when a record being appended
// is missing its collection's partition field.
type PartitionKeyNotFoundError struct {
	Field string
}

func (e *PartitionKeyNotFoundError) Error() string {
	return fmt.Sprintf("shard: partition key %q not found in record", e.Field)
}
