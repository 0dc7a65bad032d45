package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

// fileConfig mirrors the documented configuration options table as
// YAML field names; it's decoded then lowered into Options.
type fileConfig struct {
	Path                  string `yaml:"path"`
	Codec                 string `yaml:"codec"`
	FileProtection        bool   `yaml:"fileProtection"`
	Format                string `yaml:"format"`
	CompactionThreshold   int    `yaml:"compactionThreshold"`
	CompactionIntervalSec int    `yaml:"compactionIntervalSec"`
	OperationTimeoutMs    int    `yaml:"operationTimeoutMs"`
}

// LoadOptions reads a YAML configuration file and lowers it into
// Options, applying the documented defaults for any field the file
// omits.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Options{}, err
	}

	opts := DefaultOptions(fc.Path)
	opts.FileProtection = fc.FileProtection

	if fc.Codec != "" {
		k, err := parseCodecKind(fc.Codec)
		if err != nil {
			return Options{}, err
		}
		opts.Codec = k
	}
	if fc.Format != "" {
		f, err := wire.ParseFormat(fc.Format)
		if err != nil {
			return Options{}, err
		}
		opts.Format = f
	}
	if fc.CompactionThreshold > 0 {
		opts.CompactionThreshold = fc.CompactionThreshold
	}
	if fc.CompactionIntervalSec > 0 {
		opts.CompactionIntervalSec = fc.CompactionIntervalSec
	}
	if fc.OperationTimeoutMs > 0 {
		opts.OperationTimeout = time.Duration(fc.OperationTimeoutMs) * time.Millisecond
	}
	return opts, nil
}

func parseCodecKind(s string) (codec.Kind, error) {
	switch s {
	case "none":
		return codec.None, nil
	case "general":
		return codec.General, nil
	default:
		return 0, &codec.Failure{Op: "parseCodecKind", Err: fmt.Errorf("unknown codec %q", s)}
	}
}
