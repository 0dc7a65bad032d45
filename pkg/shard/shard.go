// Package shard implements NyaruDB2's on-disk partition files: one
// compressed, codec- and format-tagged payload per partition value,
// a JSON sidecar carrying document counts and per-field min/max
// bounds, and the background compaction loop that merges small
// shards into one.
package shard

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/log"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

const (
	payloadExt = ".nyaru"

	headerMagic       = "NYRU"
	headerVersion     = byte(1)
	headerSize        = 8 // magic(4) + version(1) + codec(1) + format(1) + reserved(1)
	headerReservedIdx = 7
)

// Shard is one partition's document array for one collection,
// compressed on disk with the collection's codec and encoded with its
// wire format. All mutating operations take the shard's own lock;
// ShardManager is responsible for ensuring only one Shard value exists
// per partition id.
type Shard struct {
	mu sync.RWMutex

	id          string
	collection  string
	path        string // payload file path
	codecKind   codec.Kind
	format      wire.Format
	indexFields []string

	meta Metadata
}

// New creates the in-memory handle for a shard; it does not touch the
// filesystem. Use Open to load an existing shard or Append/SaveAll to
// create one lazily.
func New(collection, dir, id string, codecKind codec.Kind, format wire.Format, indexFields []string) *Shard {
	return &Shard{
		id:          id,
		collection:  collection,
		path:        filepath.Join(dir, id+payloadExt),
		codecKind:   codecKind,
		format:      format,
		indexFields: indexFields,
		meta:        newMetadata(),
	}
}

// Open loads an existing shard's metadata from its sidecar. If the
// sidecar is missing or unreadable, metadata is recomputed from the
// payload during Open: a corrupt sidecar is non-fatal, and only an
// unreadable payload fails the open.
func Open(collection, dir, id string, codecKind codec.Kind, format wire.Format, indexFields []string) (*Shard, error) {
	s := New(collection, dir, id, codecKind, format, indexFields)
	if m, err := loadMetadata(s.path); err == nil {
		s.meta = m
	} else {
		log.WithShard(collection, id).Warn().Err(err).Msg("shard metadata sidecar unreadable, will recompute")
		if err := s.recomputeMetadata(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID returns the shard's partition value.
func (s *Shard) ID() string { return s.id }

// Path returns the shard's payload file path.
func (s *Shard) Path() string { return s.path }

// Metadata returns a copy of the shard's current sidecar metadata.
func (s *Shard) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyMeta()
}

func (s *Shard) copyMeta() Metadata {
	out := Metadata{
		DocumentCount: s.meta.DocumentCount,
		CreatedAt:     s.meta.CreatedAt,
		UpdatedAt:     s.meta.UpdatedAt,
		FieldStats:    make(map[string]FieldRange, len(s.meta.FieldStats)),
	}
	for k, v := range s.meta.FieldStats {
		out.FieldStats[k] = v
	}
	return out
}

func encodeHeader(codecKind codec.Kind, format wire.Format) []byte {
	h := make([]byte, headerSize)
	copy(h[0:4], headerMagic)
	h[4] = headerVersion
	h[5] = byte(codecKind)
	h[6] = byte(format)
	h[headerReservedIdx] = 0
	return h
}

func decodeHeader(data []byte) (codec.Kind, wire.Format, []byte, error) {
	if len(data) < headerSize {
		return 0, 0, nil, fmt.Errorf("shard: payload too short for header (%d bytes)", len(data))
	}
	if string(data[0:4]) != headerMagic {
		return 0, 0, nil, fmt.Errorf("shard: bad magic %q", data[0:4])
	}
	if data[4] != headerVersion {
		return 0, 0, nil, fmt.Errorf("shard: unsupported version %d", data[4])
	}
	return codec.Kind(data[5]), wire.Format(data[6]), data[headerSize:], nil
}

// readPayload loads and decompresses the shard file, returning the
// framed record sequence. A missing file is treated as an empty body.
func (s *Shard) readPayload() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	codecKind, _, body, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByKind(codecKind)
	if err != nil {
		return nil, err
	}
	return c.Decompress(body)
}

// writePayload compresses body and atomically replaces the shard
// file, with the current codec/format tagged into the header.
func (s *Shard) writePayload(body []byte) error {
	c, err := codec.ByKind(s.codecKind)
	if err != nil {
		return err
	}
	compressed, err := c.Compress(body)
	if err != nil {
		return err
	}
	out := append(encodeHeader(s.codecKind, s.format), compressed...)
	if err := atomicReplace(s.path, out); err != nil {
		metrics.ShardPersistFailuresTotal.WithLabelValues(s.collection).Inc()
		return &PersistFailureError{ID: s.id, Err: err}
	}
	return nil
}

// frame/unframe implement the length-prefixed record sequence that
// makes up a decompressed shard body: each record is independently
// wire-encoded, so appending one does not require decoding the rest.
func appendFrame(body []byte, record []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(record)))
	body = append(body, lenBuf[:]...)
	return append(body, record...)
}

func framesOf(body []byte) ([][]byte, error) {
	var frames [][]byte
	pos := 0
	for pos < len(body) {
		if pos+4 > len(body) {
			return nil, fmt.Errorf("shard: truncated frame length at %d", pos)
		}
		n := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if pos+n > len(body) {
			return nil, fmt.Errorf("shard: truncated frame body at %d", pos)
		}
		frames = append(frames, body[pos:pos+n])
		pos += n
	}
	return frames, nil
}

// Append encodes doc, adds it to the shard's payload, and refreshes
// metadata (document count, updatedAt, per-indexed-field min/max).
func (s *Shard) Append(doc wire.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ShardAppendDuration, s.collection)

	recBytes, err := wire.Encode(doc, s.format)
	if err != nil {
		return err
	}

	body, err := s.readPayload()
	if err != nil {
		return err
	}
	body = appendFrame(body, recBytes)
	if err := s.writePayload(body); err != nil {
		return err
	}

	s.meta.DocumentCount++
	s.meta.UpdatedAt = time.Now().UTC()
	for _, field := range s.indexFields {
		if val, ok, err := wire.ExtractField(recBytes, field, s.format); err == nil && ok {
			s.meta.observe(field, val)
		}
	}
	if err := writeMetadata(s.path, s.meta); err != nil {
		log.WithShard(s.collection, s.id).Warn().Err(err).Msg("shard sidecar write failed, will recompute on next open")
	}
	metrics.ShardDocuments.WithLabelValues(s.collection, s.id).Set(float64(s.meta.DocumentCount))
	return nil
}

// LoadAll decompresses the shard and decodes every record.
func (s *Shard) LoadAll() ([]wire.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadAllLocked()
}

func (s *Shard) loadAllLocked() ([]wire.Document, error) {
	body, err := s.readPayload()
	if err != nil {
		return nil, err
	}
	frames, err := framesOf(body)
	if err != nil {
		return nil, err
	}
	docs := make([]wire.Document, 0, len(frames))
	for _, f := range frames {
		doc, err := wire.Decode(f, s.format)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveAll replaces the shard's entire document array and recomputes
// metadata from scratch (count, field min/max), preserving createdAt.
func (s *Shard) SaveAll(docs []wire.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body []byte
	recStats := newMetadata()
	recStats.CreatedAt = s.meta.CreatedAt
	if recStats.CreatedAt.IsZero() {
		recStats.CreatedAt = time.Now().UTC()
	}
	for _, doc := range docs {
		recBytes, err := wire.Encode(doc, s.format)
		if err != nil {
			return err
		}
		body = appendFrame(body, recBytes)
		for _, field := range s.indexFields {
			if val, ok, err := wire.ExtractField(recBytes, field, s.format); err == nil && ok {
				recStats.observe(field, val)
			}
		}
	}
	if err := s.writePayload(body); err != nil {
		return err
	}
	recStats.DocumentCount = len(docs)
	recStats.UpdatedAt = time.Now().UTC()
	s.meta = recStats
	if err := writeMetadata(s.path, s.meta); err != nil {
		log.WithShard(s.collection, s.id).Warn().Err(err).Msg("shard sidecar write failed, will recompute on next open")
	}
	metrics.ShardDocuments.WithLabelValues(s.collection, s.id).Set(float64(s.meta.DocumentCount))
	return nil
}

// RawBytes returns the decompressed, framed record sequence, used by
// compaction to merge shards without decode/re-encode round trips.
func (s *Shard) RawBytes() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readPayload()
}

// SetRawBytes replaces the shard's payload with an already-framed
// record sequence and folds extraCount/extraStats into metadata, used
// by compaction when absorbing another shard's records into this one.
func (s *Shard) SetRawBytes(body []byte, extraCount int, extraStats map[string]FieldRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writePayload(body); err != nil {
		return err
	}
	s.meta.DocumentCount += extraCount
	s.meta.UpdatedAt = time.Now().UTC()
	s.meta.merge(extraStats)
	if err := writeMetadata(s.path, s.meta); err != nil {
		log.WithShard(s.collection, s.id).Warn().Err(err).Msg("shard sidecar write failed, will recompute on next open")
	}
	metrics.ShardDocuments.WithLabelValues(s.collection, s.id).Set(float64(s.meta.DocumentCount))
	return nil
}

// recomputeMetadata rebuilds metadata by scanning the current payload,
// used when the sidecar is missing or corrupt.
func (s *Shard) recomputeMetadata() error {
	docs, err := s.loadAllLocked()
	if err != nil {
		if os.IsNotExist(err) {
			s.meta = newMetadata()
			return nil
		}
		return err
	}
	return s.rebuildFrom(docs)
}

func (s *Shard) rebuildFrom(docs []wire.Document) error {
	stats := newMetadata()
	stats.CreatedAt = s.meta.CreatedAt
	if stats.CreatedAt.IsZero() {
		stats.CreatedAt = time.Now().UTC()
	}
	for _, doc := range docs {
		recBytes, err := wire.Encode(doc, s.format)
		if err != nil {
			return err
		}
		for _, field := range s.indexFields {
			if val, ok, err := wire.ExtractField(recBytes, field, s.format); err == nil && ok {
				stats.observe(field, val)
			}
		}
	}
	stats.DocumentCount = len(docs)
	stats.UpdatedAt = time.Now().UTC()
	s.meta = stats
	return nil
}

// Remove deletes the shard's payload and sidecar files from disk.
func (s *Shard) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(metaPath(s.path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	metrics.ShardDocuments.DeleteLabelValues(s.collection, s.id)
	return nil
}

// exists reports whether the shard has a payload file on disk yet.
func (s *Shard) exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
