package engine

import (
	"fmt"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

// Re-exported so callers can errors.As against a single pkg/engine
// surface instead of reaching into the packages an Engine composes.
type (
	ShardNotFoundError        = shard.NotFoundError
	ShardAlreadyExistsError   = shard.AlreadyExistsError
	ShardPersistFailureError  = shard.PersistFailureError
	PartitionKeyNotFoundError = shard.PartitionKeyNotFoundError
	DecodeFailureError        = wire.DecodeFailure
	EncodeFailureError        = wire.EncodeFailure
	CodecFailureError         = codec.Failure
)

// IndexKeyNotFoundError is returned by insert/bulkInsert when a record
// is missing a field the collection has declared an index on, or the
// field holds a non-scalar value. A read-time miss against an existing
// index is not an error: index.Manager.Search reports it as (nil, false).
type IndexKeyNotFoundError struct {
	Field string
}

func (e *IndexKeyNotFoundError) Error() string {
	return fmt.Sprintf("engine: index key %q not found in record", e.Field)
}

// DocumentNotFoundError is returned by update/delete when no record in
// the collection satisfies the given predicate.
type DocumentNotFoundError struct {
	Collection string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("engine: no document in %q matched", e.Collection)
}

// InvalidDocumentError is returned when a caller-supplied record fails
// validation before ever reaching the codec or shard layer, e.g. an
// empty collection name or a nil document.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("engine: invalid document: %s", e.Reason)
}

// CollectionNotFoundError is returned when an operation names a
// collection the Engine has never seen and isn't configured to
// lazily create.
type CollectionNotFoundError struct {
	Name string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("engine: collection %q not found", e.Name)
}

// CancelledError wraps a caller-cancelled context observed at an
// operation boundary.
type CancelledError struct {
	Op string
}

func (e *CancelledError) Error() string { return fmt.Sprintf("engine: %s cancelled", e.Op) }

// TimeoutError is returned when an operation exceeds its configured or
// context-supplied deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("engine: %s timed out", e.Op) }
