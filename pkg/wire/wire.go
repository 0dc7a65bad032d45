package wire

import "github.com/nyarudb/nyarudb2/pkg/metrics"

// Encode lowers doc into the given wire Format's byte representation.
func Encode(doc Document, format Format) ([]byte, error) {
	v, err := ToValue(doc)
	if err != nil {
		metrics.EncodeFailuresTotal.WithLabelValues(format.String(), "encode").Inc()
		return nil, &EncodeFailure{Format: format, Err: err}
	}
	switch format {
	case TagTree:
		return encodeTagTree(v), nil
	case Packed:
		return encodePacked(v), nil
	default:
		metrics.EncodeFailuresTotal.WithLabelValues(format.String(), "encode").Inc()
		return nil, &EncodeFailure{Format: format, Err: errUnknownFormat(format)}
	}
}

// Decode parses data, previously produced by Encode in the same
// format, back into a Document.
func Decode(data []byte, format Format) (Document, error) {
	var v Value
	var err error
	switch format {
	case TagTree:
		v, err = decodeTagTree(data)
	case Packed:
		v, err = decodePacked(data)
	default:
		metrics.EncodeFailuresTotal.WithLabelValues(format.String(), "decode").Inc()
		return nil, &DecodeFailure{Format: format, Err: errUnknownFormat(format)}
	}
	if err != nil {
		metrics.EncodeFailuresTotal.WithLabelValues(format.String(), "decode").Inc()
		return nil, &DecodeFailure{Format: format, Err: err}
	}
	doc, err := FromValue(v)
	if err != nil {
		metrics.EncodeFailuresTotal.WithLabelValues(format.String(), "decode").Inc()
		return nil, &DecodeFailure{Format: format, Err: err}
	}
	return doc, nil
}

// ExtractField returns the canonical string form of one top-level
// field without decoding the rest of the record. The bool return
// reports whether the field was present; when it is present but holds
// an array or map, the error is a *FieldNotScalar.
func ExtractField(data []byte, field string, format Format) (string, bool, error) {
	var s string
	var ok bool
	var err error
	switch format {
	case TagTree:
		s, ok, err = extractTagTreeField(data, field)
	case Packed:
		s, ok, err = extractPackedField(data, field)
	default:
		return "", false, &DecodeFailure{Format: format, Err: errUnknownFormat(format)}
	}
	if err != nil {
		if err == errNotScalar {
			return "", false, &FieldNotScalar{Field: field}
		}
		return "", false, &DecodeFailure{Format: format, Err: err}
	}
	return s, ok, nil
}

func errUnknownFormat(f Format) error {
	return &unknownFormatError{f}
}

type unknownFormatError struct{ f Format }

func (e *unknownFormatError) Error() string {
	return "wire: unknown format " + e.f.String()
}
