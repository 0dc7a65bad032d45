package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Packed is a binary length-prefixed encoding of the same Value tree
// tag-tree encodes as text. Every token leads with a one-byte kind tag
// (the Value.Kind constants double as the wire tag, so the two enums
// never drift apart), followed by fixed-width fields for scalars or a
// uint32 count for arrays/maps.
//
//	null            tag
//	bool            tag + 1 byte
//	int/uint/float  tag + 8 bytes big-endian
//	string          tag + uint32 length + bytes
//	array           tag + uint32 count + count values
//	map             tag + uint32 count + count (uint32 keylen + key + value)

func encodePacked(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendPackedValue(buf, v)
}

func appendPackedValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindNull:
		return buf
	case KindBool:
		if v.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindInt:
		return appendUint64(buf, uint64(v.Int))
	case KindUint:
		return appendUint64(buf, v.Uint)
	case KindFloat:
		return appendUint64(buf, math.Float64bits(v.Float))
	case KindString:
		return appendPackedBytes(buf, []byte(v.Str))
	case KindArray:
		buf = appendUint32(buf, uint32(len(v.Arr)))
		for _, item := range v.Arr {
			buf = appendPackedValue(buf, item)
		}
		return buf
	case KindMap:
		buf = appendUint32(buf, uint32(len(v.Map)))
		for _, kv := range v.Map {
			buf = appendPackedBytes(buf, []byte(kv.Key))
			buf = appendPackedValue(buf, kv.Value)
		}
		return buf
	default:
		return buf
	}
}

func appendUint64(buf []byte, n uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendPackedBytes(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func decodePacked(data []byte) (Value, error) {
	v, pos, err := parsePackedValue(data, 0)
	if err != nil {
		return Value{}, err
	}
	if pos != len(data) {
		return Value{}, fmt.Errorf("wire: trailing bytes after top-level value (%d of %d consumed)", pos, len(data))
	}
	return v, nil
}

func readUint64(data []byte, pos int) (uint64, int, error) {
	if pos+8 > len(data) {
		return 0, pos, fmt.Errorf("wire: truncated 8-byte field at %d", pos)
	}
	return binary.BigEndian.Uint64(data[pos : pos+8]), pos + 8, nil
}

func readUint32(data []byte, pos int) (uint32, int, error) {
	if pos+4 > len(data) {
		return 0, pos, fmt.Errorf("wire: truncated 4-byte field at %d", pos)
	}
	return binary.BigEndian.Uint32(data[pos : pos+4]), pos + 4, nil
}

func readPackedBytes(data []byte, pos int) (string, int, error) {
	n, next, err := readUint32(data, pos)
	if err != nil {
		return "", pos, err
	}
	end := next + int(n)
	if end > len(data) {
		return "", pos, fmt.Errorf("wire: length %d overruns input at %d", n, next)
	}
	return string(data[next:end]), end, nil
}

func parsePackedValue(data []byte, pos int) (Value, int, error) {
	if pos >= len(data) {
		return Value{}, pos, fmt.Errorf("wire: unexpected end of input at %d", pos)
	}
	kind := Kind(data[pos])
	pos++
	switch kind {
	case KindNull:
		return Value{Kind: KindNull}, pos, nil
	case KindBool:
		if pos >= len(data) {
			return Value{}, pos, fmt.Errorf("wire: truncated bool at %d", pos)
		}
		return Value{Kind: KindBool, Bool: data[pos] != 0}, pos + 1, nil
	case KindInt:
		n, next, err := readUint64(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindInt, Int: int64(n)}, next, nil
	case KindUint:
		n, next, err := readUint64(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindUint, Uint: n}, next, nil
	case KindFloat:
		n, next, err := readUint64(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindFloat, Float: math.Float64frombits(n)}, next, nil
	case KindString:
		s, next, err := readPackedBytes(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindString, Str: s}, next, nil
	case KindArray:
		count, next, err := readUint32(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		pos = next
		items := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			item, n, err := parsePackedValue(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			items = append(items, item)
			pos = n
		}
		return Value{Kind: KindArray, Arr: items}, pos, nil
	case KindMap:
		count, next, err := readUint32(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		pos = next
		fields := make([]KV, 0, count)
		for i := uint32(0); i < count; i++ {
			key, n, err := readPackedBytes(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			pos = n
			val, n2, err := parsePackedValue(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			pos = n2
			fields = append(fields, KV{Key: key, Value: val})
		}
		return Value{Kind: KindMap, Map: fields}, pos, nil
	default:
		return Value{}, pos, fmt.Errorf("wire: unknown packed tag %d at %d", kind, pos-1)
	}
}

func skipPackedValue(data []byte, pos int) (int, error) {
	if pos >= len(data) {
		return pos, fmt.Errorf("wire: unexpected end of input at %d", pos)
	}
	kind := Kind(data[pos])
	pos++
	switch kind {
	case KindNull:
		return pos, nil
	case KindBool:
		return pos + 1, nil
	case KindInt, KindUint, KindFloat:
		_, next, err := readUint64(data, pos)
		return next, err
	case KindString:
		_, next, err := readPackedBytes(data, pos)
		return next, err
	case KindArray:
		count, next, err := readUint32(data, pos)
		if err != nil {
			return pos, err
		}
		pos = next
		for i := uint32(0); i < count; i++ {
			pos, err = skipPackedValue(data, pos)
			if err != nil {
				return pos, err
			}
		}
		return pos, nil
	case KindMap:
		count, next, err := readUint32(data, pos)
		if err != nil {
			return pos, err
		}
		pos = next
		for i := uint32(0); i < count; i++ {
			_, n, err := readPackedBytes(data, pos)
			if err != nil {
				return pos, err
			}
			pos, err = skipPackedValue(data, n)
			if err != nil {
				return pos, err
			}
		}
		return pos, nil
	default:
		return pos, fmt.Errorf("wire: unknown packed tag %d at %d", kind, pos-1)
	}
}

// extractPackedField mirrors extractTagTreeField for the binary format.
func extractPackedField(data []byte, field string) (string, bool, error) {
	if len(data) == 0 || Kind(data[0]) != KindMap {
		return "", false, fmt.Errorf("wire: top-level value is not a map")
	}
	count, pos, err := readUint32(data, 1)
	if err != nil {
		return "", false, err
	}
	for i := uint32(0); i < count; i++ {
		key, next, err := readPackedBytes(data, pos)
		if err != nil {
			return "", false, err
		}
		pos = next
		if key == field {
			val, _, err := parsePackedValue(data, pos)
			if err != nil {
				return "", false, err
			}
			if !val.Scalar() {
				return "", false, errNotScalar
			}
			return val.String(), true, nil
		}
		pos, err = skipPackedValue(data, pos)
		if err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}
