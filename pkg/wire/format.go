// Package wire implements NyaruDB2's canonical record serialization:
// two interchangeable wire formats (a self-describing text "tag-tree"
// format and a binary "packed" format) plus a format-aware field
// extractor that reads a named top-level field's string form directly
// off the byte stream, without fully decoding the record.
package wire

import "fmt"

// Format selects the wire representation a collection encodes its
// records with. It is fixed per collection at creation time and
// stored in every shard's payload header.
type Format byte

const (
	// TagTree is the self-describing text format.
	TagTree Format = 0
	// Packed is the binary, length-prefixed format.
	Packed Format = 1
)

func (f Format) String() string {
	switch f {
	case TagTree:
		return "tagTree"
	case Packed:
		return "packed"
	default:
		return fmt.Sprintf("unknown(%d)", byte(f))
	}
}

// ParseFormat maps a configuration string ("tagTree" | "packed") onto
// a Format, as used by engine.Options and the YAML config loader.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "tagTree", "":
		return TagTree, nil
	case "packed":
		return Packed, nil
	default:
		return 0, fmt.Errorf("wire: unknown format %q", s)
	}
}
