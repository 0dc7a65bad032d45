package wire

import (
	"fmt"
	"strconv"
)

// Tag-tree wire grammar. Every value starts with a one-byte tag:
//
//	n              null
//	b<0|1>         bool
//	i<len>:<text>  signed integer, canonical decimal text
//	u<len>:<text>  unsigned integer, canonical decimal text
//	f<len>:<text>  float, canonical decimal text
//	s<len>:<text>  string, raw bytes
//	a<count>:V*    array of count values
//	m<count>:(K V)*  map of count (key, value) pairs; K is <len>:<bytes>
//
// Lengths/counts are ASCII decimal. This is a hand-rolled, self-
// describing text format deliberately avoiding encoding/json: the
// extractField path below must be able to locate one top-level field
// by walking these tags directly, never materializing the caller's
// record type (spec requirement: format-neutral, reflection-free
// field extraction on the write/route hot path).

func encodeTagTree(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendTagTreeValue(buf, v)
}

func appendTagTreeValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, 'n')
	case KindBool:
		if v.Bool {
			return append(buf, 'b', '1')
		}
		return append(buf, 'b', '0')
	case KindInt:
		return appendLenPrefixed(buf, 'i', strconv.FormatInt(v.Int, 10))
	case KindUint:
		return appendLenPrefixed(buf, 'u', strconv.FormatUint(v.Uint, 10))
	case KindFloat:
		return appendLenPrefixed(buf, 'f', strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindString:
		return appendLenPrefixed(buf, 's', v.Str)
	case KindArray:
		buf = append(buf, 'a')
		buf = strconv.AppendInt(buf, int64(len(v.Arr)), 10)
		buf = append(buf, ':')
		for _, item := range v.Arr {
			buf = appendTagTreeValue(buf, item)
		}
		return buf
	case KindMap:
		buf = append(buf, 'm')
		buf = strconv.AppendInt(buf, int64(len(v.Map)), 10)
		buf = append(buf, ':')
		for _, kv := range v.Map {
			buf = appendLenPrefixedKey(buf, kv.Key)
			buf = appendTagTreeValue(buf, kv.Value)
		}
		return buf
	default:
		return append(buf, 'n')
	}
}

func appendLenPrefixed(buf []byte, tag byte, text string) []byte {
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, int64(len(text)), 10)
	buf = append(buf, ':')
	return append(buf, text...)
}

func appendLenPrefixedKey(buf []byte, key string) []byte {
	buf = strconv.AppendInt(buf, int64(len(key)), 10)
	buf = append(buf, ':')
	return append(buf, key...)
}

func decodeTagTree(data []byte) (Value, error) {
	v, pos, err := parseTagTreeValue(data, 0)
	if err != nil {
		return Value{}, err
	}
	if pos != len(data) {
		return Value{}, fmt.Errorf("wire: trailing bytes after top-level value (%d of %d consumed)", pos, len(data))
	}
	return v, nil
}

func parseTagTreeValue(data []byte, pos int) (Value, int, error) {
	if pos >= len(data) {
		return Value{}, pos, fmt.Errorf("wire: unexpected end of input at %d", pos)
	}
	tag := data[pos]
	pos++
	switch tag {
	case 'n':
		return Value{Kind: KindNull}, pos, nil
	case 'b':
		if pos >= len(data) {
			return Value{}, pos, fmt.Errorf("wire: truncated bool at %d", pos)
		}
		b := data[pos] == '1'
		return Value{Kind: KindBool, Bool: b}, pos + 1, nil
	case 'i', 'u', 'f', 's':
		text, next, err := readLenPrefixed(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		switch tag {
		case 'i':
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return Value{}, pos, fmt.Errorf("wire: malformed int %q: %w", text, err)
			}
			return Value{Kind: KindInt, Int: n}, next, nil
		case 'u':
			n, err := strconv.ParseUint(text, 10, 64)
			if err != nil {
				return Value{}, pos, fmt.Errorf("wire: malformed uint %q: %w", text, err)
			}
			return Value{Kind: KindUint, Uint: n}, next, nil
		case 'f':
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return Value{}, pos, fmt.Errorf("wire: malformed float %q: %w", text, err)
			}
			return Value{Kind: KindFloat, Float: n}, next, nil
		default: // 's'
			return Value{Kind: KindString, Str: text}, next, nil
		}
	case 'a':
		count, next, err := readCount(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		pos = next
		items := make([]Value, 0, count)
		for i := 0; i < count; i++ {
			item, n, err := parseTagTreeValue(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			items = append(items, item)
			pos = n
		}
		return Value{Kind: KindArray, Arr: items}, pos, nil
	case 'm':
		count, next, err := readCount(data, pos)
		if err != nil {
			return Value{}, pos, err
		}
		pos = next
		fields := make([]KV, 0, count)
		for i := 0; i < count; i++ {
			key, n, err := readLenPrefixed(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			pos = n
			val, n2, err := parseTagTreeValue(data, pos)
			if err != nil {
				return Value{}, pos, err
			}
			pos = n2
			fields = append(fields, KV{Key: key, Value: val})
		}
		return Value{Kind: KindMap, Map: fields}, pos, nil
	default:
		return Value{}, pos, fmt.Errorf("wire: unknown tag-tree tag %q at %d", tag, pos-1)
	}
}

// skipTagTreeValue advances past one value without building a Value,
// used by extractTagTreeField to pass over fields that are not the
// one being looked up.
func skipTagTreeValue(data []byte, pos int) (int, error) {
	if pos >= len(data) {
		return pos, fmt.Errorf("wire: unexpected end of input at %d", pos)
	}
	tag := data[pos]
	pos++
	switch tag {
	case 'n':
		return pos, nil
	case 'b':
		return pos + 1, nil
	case 'i', 'u', 'f', 's':
		_, next, err := readLenPrefixed(data, pos)
		return next, err
	case 'a':
		count, next, err := readCount(data, pos)
		if err != nil {
			return pos, err
		}
		pos = next
		for i := 0; i < count; i++ {
			pos, err = skipTagTreeValue(data, pos)
			if err != nil {
				return pos, err
			}
		}
		return pos, nil
	case 'm':
		count, next, err := readCount(data, pos)
		if err != nil {
			return pos, err
		}
		pos = next
		for i := 0; i < count; i++ {
			_, n, err := readLenPrefixed(data, pos)
			if err != nil {
				return pos, err
			}
			pos, err = skipTagTreeValue(data, n)
			if err != nil {
				return pos, err
			}
		}
		return pos, nil
	default:
		return pos, fmt.Errorf("wire: unknown tag-tree tag %q at %d", tag, pos-1)
	}
}

func readCount(data []byte, pos int) (int, int, error) {
	text, next, err := readDigitsUntilColon(data, pos)
	if err != nil {
		return 0, pos, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, pos, fmt.Errorf("wire: malformed count %q: %w", text, err)
	}
	return n, next, nil
}

func readLenPrefixed(data []byte, pos int) (string, int, error) {
	lenText, next, err := readDigitsUntilColon(data, pos)
	if err != nil {
		return "", pos, err
	}
	n, err := strconv.Atoi(lenText)
	if err != nil {
		return "", pos, fmt.Errorf("wire: malformed length %q: %w", lenText, err)
	}
	if next+n > len(data) {
		return "", pos, fmt.Errorf("wire: length %d overruns input at %d", n, next)
	}
	return string(data[next : next+n]), next + n, nil
}

func readDigitsUntilColon(data []byte, pos int) (string, int, error) {
	start := pos
	for pos < len(data) && data[pos] != ':' {
		pos++
	}
	if pos >= len(data) {
		return "", pos, fmt.Errorf("wire: missing ':' after length at %d", start)
	}
	return string(data[start:pos]), pos + 1, nil
}

// extractTagTreeField walks a top-level map token looking for field,
// returning its canonical string form without decoding sibling
// fields or constructing a Document.
func extractTagTreeField(data []byte, field string) (string, bool, error) {
	if len(data) == 0 || data[0] != 'm' {
		return "", false, fmt.Errorf("wire: top-level value is not a map")
	}
	count, pos, err := readCount(data, 1)
	if err != nil {
		return "", false, err
	}
	for i := 0; i < count; i++ {
		key, next, err := readLenPrefixed(data, pos)
		if err != nil {
			return "", false, err
		}
		pos = next
		if key == field {
			val, _, err := parseTagTreeValue(data, pos)
			if err != nil {
				return "", false, err
			}
			if !val.Scalar() {
				return "", false, errNotScalar
			}
			return val.String(), true, nil
		}
		pos, err = skipTagTreeValue(data, pos)
		if err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}
