package engine

import (
	"time"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

// Options configures an Engine at construction, either built as a Go
// literal or loaded from YAML via LoadOptions.
type Options struct {
	// Path is the engine's root directory; one subdirectory per
	// collection lives under it. Required.
	Path string

	// Codec is the default codec new collections use when their
	// CollectionConfig doesn't set one explicitly.
	Codec codec.Kind
	// Format is the default wire format new collections use.
	Format wire.Format
	// FileProtection is a passthrough flag for an OS file-protection
	// API (e.g. marking shard files non-backed-up); NyaruDB2 itself
	// does not interpret it beyond carrying it in Options, since
	// the concrete OS primitive is an external collaborator.
	FileProtection bool

	// CompactionThreshold is the default per-shard document count
	// below which a shard is a compaction candidate.
	CompactionThreshold int
	// CompactionIntervalSec is the default compaction loop period.
	CompactionIntervalSec int
	// OperationTimeout bounds a single collection operation; zero
	// means no timeout. Exceeding it yields *TimeoutError.
	OperationTimeout time.Duration
}

// DefaultIndexDegree is the B-tree minimum degree used for every
// index a collection creates.
const DefaultIndexDegree = 3

// DefaultOptions returns the documented defaults for every option but
// Path, which the caller must supply.
func DefaultOptions(path string) Options {
	return Options{
		Path:                  path,
		Codec:                 codec.None,
		Format:                wire.TagTree,
		CompactionThreshold:   shard.DefaultCompactionThreshold,
		CompactionIntervalSec: int(shard.DefaultCompactionInterval / time.Second),
	}
}

// CollectionConfig is a collection's immutable-at-creation
// configuration (PartitionKey may subsequently change via
// SetPartitionKey, the one documented exception).
type CollectionConfig struct {
	Name         string
	PartitionKey string // "" routes every write to the synthetic "default" partition
	IndexFields  []string
	Format       wire.Format
	Codec        codec.Kind
}

func (cfg CollectionConfig) withDefaults(opts Options) CollectionConfig {
	if cfg.Format == 0 && opts.Format != 0 {
		cfg.Format = opts.Format
	}
	if cfg.Codec == codec.None && opts.Codec != codec.None {
		cfg.Codec = opts.Codec
	}
	return cfg
}
