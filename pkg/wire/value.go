package wire

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind tags the dynamic type carried by a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindArray
	KindMap
)

// KV is one field of a KindMap Value. Map fields are kept in a slice,
// not a Go map, so canonical encoding can emit them in a stable,
// sorted order without a second pass.
type KV struct {
	Key   string
	Value Value
}

// Value is the dynamic, self-describing value tree both wire formats
// encode and decode. It is the common intermediate form a Document
// (map[string]any) is lowered to before serialization, and the form
// field extraction produces without needing a full Document.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Arr   []Value
	Map   []KV
}

// Document is the record type NyaruDB2 collections store. It mirrors
// the map[string]interface{} document model used throughout the
// retrieved example pack's document-store code (bunbase's
// storage.Document is the direct precedent) rather than requiring
// callers to register a Go struct type.
type Document map[string]any

// Field looks up a top-level field, the same way a decoded record is
// inspected by collection-level code (index maintenance, predicate
// evaluation against an already-decoded record).
func (d Document) Field(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

// ToValue lowers a Document into the canonical Value tree.
func ToValue(doc Document) (Value, error) {
	fields := make([]KV, 0, len(doc))
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := anyToValue(doc[k])
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", k, err)
		}
		fields = append(fields, KV{Key: k, Value: v})
	}
	return Value{Kind: KindMap, Map: fields}, nil
}

// FromValue raises a decoded Value tree back into a Document. v must
// have Kind == KindMap (a bare scalar or array is not a record).
func FromValue(v Value) (Document, error) {
	if v.Kind != KindMap {
		return nil, fmt.Errorf("wire: top-level value is not a document (kind=%d)", v.Kind)
	}
	doc := make(Document, len(v.Map))
	for _, kv := range v.Map {
		doc[kv.Key] = valueToAny(kv.Value)
	}
	return doc, nil
}

func anyToValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: x}, nil
	case string:
		return Value{Kind: KindString, Str: x}, nil
	case int:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int64:
		return Value{Kind: KindInt, Int: x}, nil
	case uint:
		return Value{Kind: KindUint, Uint: uint64(x)}, nil
	case uint8:
		return Value{Kind: KindUint, Uint: uint64(x)}, nil
	case uint16:
		return Value{Kind: KindUint, Uint: uint64(x)}, nil
	case uint32:
		return Value{Kind: KindUint, Uint: uint64(x)}, nil
	case uint64:
		return Value{Kind: KindUint, Uint: x}, nil
	case float32:
		return Value{Kind: KindFloat, Float: float64(x)}, nil
	case float64:
		return Value{Kind: KindFloat, Float: x}, nil
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			iv, err := anyToValue(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Value{Kind: KindArray, Arr: items}, nil
	case Document:
		return ToValue(x)
	case map[string]any:
		return ToValue(Document(x))
	default:
		return Value{}, fmt.Errorf("wire: unsupported value type %T", v)
	}
}

func valueToAny(v Value) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindUint:
		return v.Uint
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = valueToAny(e)
		}
		return out
	case KindMap:
		out := make(Document, len(v.Map))
		for _, kv := range v.Map {
			out[kv.Key] = valueToAny(kv.Value)
		}
		return out
	default:
		return nil
	}
}

// CanonicalString renders a decoded Document field value (as produced
// by FromValue/valueToAny) in the same canonical string form
// ExtractField produces when reading the same field directly off the
// wire bytes. Predicate evaluation uses this so a query run against
// already-decoded records agrees with one run against an index or a
// raw byte scan, regardless of which path the planner picked. ok is
// false for array/map values, which have no scalar string form.
func CanonicalString(v any) (s string, ok bool) {
	val, err := anyToValue(v)
	if err != nil || !val.Scalar() {
		return "", false
	}
	return val.String(), true
}

// Scalar reports whether a Value can be stringified by ExtractField
// (anything but array/map).
func (v Value) Scalar() bool {
	return v.Kind != KindArray && v.Kind != KindMap
}

// String renders a scalar Value in the canonical decimal/text form
// used by ExtractField and, by extension, B-tree index keys.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindString:
		return v.Str
	default:
		return ""
	}
}
