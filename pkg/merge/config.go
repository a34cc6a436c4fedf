package merge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for one merge run.
type Config struct {
	Dir1         string     `yaml:"dir1"`      // First source directory
	Dir2         string     `yaml:"dir2"`      // Second source directory
	OutputDir    string     `yaml:"output"`    // Output directory, created on demand
	Extension    string     `yaml:"extension"` // Recording file extension, e.g. "ap.bin"
	Range1       *TimeRange `yaml:"range1,omitempty"`
	Range2       *TimeRange `yaml:"range2,omitempty"`
	ProbeIndices []int      `yaml:"probes,omitempty"` // Probe folder indices to scan; defaults to 0..3

	// Chunk size overrides, mainly for tests. Zero selects the defaults.
	ChunkSize      int64 `yaml:"-"`
	RangeChunkSize int64 `yaml:"-"`
}

// defaultProbeIndices mirrors the fixed imec0..imec3 scan of the acquisition
// software's folder layout.
var defaultProbeIndices = []int{0, 1, 2, 3}

// Validate checks required fields and time-range sanity, and fills in
// defaults for probe indices and chunk sizes.
func (c *Config) Validate() error {
	if c.Dir1 == "" || c.Dir2 == "" {
		return errors.New("both source directories are required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Extension == "" {
		return errors.New("file extension is required")
	}
	c.Extension = strings.TrimPrefix(c.Extension, ".")
	for i, r := range []*TimeRange{c.Range1, c.Range2} {
		if r == nil {
			continue
		}
		if r.Start < 0 || r.End <= r.Start {
			return fmt.Errorf("time range %d is invalid: start %g, end %g", i+1, r.Start, r.End)
		}
	}
	for _, n := range c.ProbeIndices {
		if n < 0 {
			return fmt.Errorf("probe index %d is invalid", n)
		}
	}
	if len(c.ProbeIndices) == 0 {
		c.ProbeIndices = defaultProbeIndices
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = FullCopyChunkSize
	}
	if c.RangeChunkSize <= 0 {
		c.RangeChunkSize = RangeCopyChunkSize
	}
	return nil
}

// LoadConfig reads a YAML job file into a Config. The result still goes
// through Validate when handed to New.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// metaExtensionFor returns the sidecar extension for a recording extension,
// e.g. "ap.bin" -> "ap.meta".
func metaExtensionFor(ext string) string {
	if strings.HasSuffix(ext, ".bin") {
		return strings.TrimSuffix(ext, ".bin") + ".meta"
	}
	if ext == "bin" {
		return "meta"
	}
	return ext + ".meta"
}

// sidecarPath returns the sidecar metadata path for a recording file path.
func sidecarPath(filePath, ext string) string {
	metaExt := metaExtensionFor(ext)
	return strings.TrimSuffix(filePath, ext) + metaExt
}
