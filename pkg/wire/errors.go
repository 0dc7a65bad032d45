package wire

import (
	"errors"
	"fmt"
)

// errNotScalar is returned internally by the format-specific
// extractors when the named field resolves to an array or map; wire's
// exported ExtractField turns it into FieldNotScalar so callers (the
// partition router, the index manager) can report it without
// depending on format internals.
var errNotScalar = errors.New("wire: field is not a scalar")

// FieldNotScalar reports that a field named by ExtractField exists but
// carries an array or map value, which has no canonical string form.
type FieldNotScalar struct {
	Field string
}

func (e *FieldNotScalar) Error() string {
	return fmt.Sprintf("wire: field %q is not a scalar", e.Field)
}

// DecodeFailure wraps an error produced while parsing a record's byte
// stream, whether decoding the full record or extracting one field.
type DecodeFailure struct {
	Format Format
	Err    error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("wire: decode failed (%s): %v", e.Format, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// EncodeFailure wraps an error produced while lowering a Document into
// a wire format's byte stream.
type EncodeFailure struct {
	Format Format
	Err    error
}

func (e *EncodeFailure) Error() string {
	return fmt.Sprintf("wire: encode failed (%s): %v", e.Format, e.Err)
}

func (e *EncodeFailure) Unwrap() error { return e.Err }
