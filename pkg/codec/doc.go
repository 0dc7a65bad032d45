// Package codec provides the compress/decompress primitives NyaruDB2
// shards use for their on-disk payload. See pkg/shard for how a codec
// Kind is tagged into a shard's header and metadata.
package codec
