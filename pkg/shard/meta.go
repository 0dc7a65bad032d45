package shard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FieldRange is the observed [min, max] of a field's canonical string
// form across every live record in a shard.
type FieldRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// Metadata is a shard's sidecar, persisted as JSON alongside
// the payload file, readable by an external tool without this
// package.
type Metadata struct {
	DocumentCount int                   `json:"documentCount"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	FieldStats    map[string]FieldRange `json:"fieldStats"`
}

func newMetadata() Metadata {
	now := time.Now().UTC()
	return Metadata{CreatedAt: now, UpdatedAt: now, FieldStats: make(map[string]FieldRange)}
}

// observe folds one record's extracted field value into the shard's
// running min/max for that field.
func (m *Metadata) observe(field, value string) {
	if m.FieldStats == nil {
		m.FieldStats = make(map[string]FieldRange)
	}
	r, ok := m.FieldStats[field]
	if !ok {
		m.FieldStats[field] = FieldRange{Min: value, Max: value}
		return
	}
	if value < r.Min {
		r.Min = value
	}
	if value > r.Max {
		r.Max = value
	}
	m.FieldStats[field] = r
}

// merge folds another shard's field stats into m, used when absorbing
// a shard during compaction.
func (m *Metadata) merge(other map[string]FieldRange) {
	for field, r := range other {
		existing, ok := m.FieldStats[field]
		if !ok {
			m.FieldStats[field] = r
			continue
		}
		if r.Min < existing.Min {
			existing.Min = r.Min
		}
		if r.Max > existing.Max {
			existing.Max = r.Max
		}
		m.FieldStats[field] = existing
	}
}

func metaPath(payloadPath string) string {
	return payloadPath + ".meta.json"
}

func loadMetadata(payloadPath string) (Metadata, error) {
	data, err := os.ReadFile(metaPath(payloadPath))
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	if m.FieldStats == nil {
		m.FieldStats = make(map[string]FieldRange)
	}
	return m, nil
}

// writeMetadata atomically replaces the sidecar: write-to-temp in the
// same directory, then rename over the target, salted by a uuid to
// keep concurrent writers (foreground append vs. compaction) from
// colliding on the temp name.
func writeMetadata(payloadPath string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicReplace(metaPath(payloadPath), data); err != nil {
		// Drop the now-stale sidecar so the next Open recomputes
		// metadata from the payload instead of trusting it.
		os.Remove(metaPath(payloadPath))
		return err
	}
	return nil
}

// atomicReplace writes data to a temp file beside target and renames
// it into place, so readers never observe a partially written file.
func atomicReplace(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-"+uuid.NewString()+".tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
