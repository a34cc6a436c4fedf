// Package merge concatenates pairs of binary recording files from two
// acquisition sessions, matching files across the sessions by the probe
// number embedded in their folder names, and combines the sidecar metadata
// describing the merged recording.
package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"
)

// Merger pairs and concatenates recording files from two source directories.
// All entities are recomputed per call; a Merger holds no state between runs
// beyond its configuration.
type Merger struct {
	cfg      Config
	fsys     billy.Filesystem
	logger   *zap.Logger
	progress ProgressFunc
}

// New returns a Merger operating on the host filesystem. Source and output
// directories are resolved to absolute paths, and the output directory is
// created if missing.
func New(cfg Config, logger *zap.Logger) (*Merger, error) {
	for _, dir := range []*string{&cfg.Dir1, &cfg.Dir2, &cfg.OutputDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", *dir, err)
		}
		*dir = abs
	}
	return NewWithFS(cfg, osfs.New("/"), logger)
}

// NewWithFS is like New but operates on the given filesystem. Paths in cfg
// are used as-is. Tests use this with an in-memory filesystem.
func NewWithFS(cfg Config, fsys billy.Filesystem, logger *zap.Logger) (*Merger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := fsys.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	return &Merger{cfg: cfg, fsys: fsys, logger: logger}, nil
}

// SetProgress installs a callback invoked after every copied chunk.
func (m *Merger) SetProgress(fn ProgressFunc) {
	m.progress = fn
}

// MergeMatchingFiles discovers the probe folders under both source
// directories, pairs their recording files by probe number and position, and
// concatenates each pair into the output directory, mirroring the second
// source's folder structure and file names. When both inputs of a pair have
// sidecar metadata, the merged sidecar is written alongside the output using
// the exact byte count produced by the copy.
//
// Probes present in only one source are skipped. ErrNoMatchingProbes is
// returned when the two sources share none.
func (m *Merger) MergeMatchingFiles() ([]PairResult, error) {
	pairs, err := m.matchedPairs(m.cfg.Extension)
	if err != nil {
		return nil, err
	}

	var results []PairResult
	for _, pair := range pairs {
		for i := range pair.files1 {
			file1, file2 := pair.files1[i], pair.files2[i]

			outDir, err := m.outputFolderFor(file2)
			if err != nil {
				return results, err
			}
			outPath := m.fsys.Join(outDir, filepath.Base(file2))

			in1 := mergeInput{path: file1, timeRange: m.cfg.Range1}
			in2 := mergeInput{path: file2, timeRange: m.cfg.Range2}
			if in1.timeRange != nil {
				in1.metaPath = sidecarPath(file1, m.cfg.Extension)
			}
			if in2.timeRange != nil {
				in2.metaPath = sidecarPath(file2, m.cfg.Extension)
			}

			total, err := m.mergeFiles(in1, in2, outPath)
			if err != nil {
				return results, fmt.Errorf("failed to merge probe %s pair: %w", pair.probe, err)
			}

			if err := m.mergeSidecars(file1, file2, outPath, total); err != nil {
				return results, err
			}

			results = append(results, PairResult{
				Probe:        pair.probe,
				Input1:       file1,
				Input2:       file2,
				Output:       outPath,
				BytesWritten: total,
			})
		}
	}

	m.logger.Info("Merge run complete", zap.Int("mergedPairs", len(results)))
	return results, nil
}

// mergeSidecars combines the sidecars of a merged file pair, threading the
// exact byte total from the copy step into the metadata arithmetic. Pairs
// without sidecars on both sides are skipped with a warning; recordings are
// sometimes archived without their metadata.
func (m *Merger) mergeSidecars(file1, file2, outPath string, totalBytes int64) error {
	meta1Path := sidecarPath(file1, m.cfg.Extension)
	meta2Path := sidecarPath(file2, m.cfg.Extension)
	for _, p := range []string{meta1Path, meta2Path} {
		if _, err := m.fsys.Stat(p); err != nil {
			m.logger.Warn("Sidecar metadata missing, skipping metadata merge",
				zap.String("metaPath", p))
			return nil
		}
	}

	meta1, err := ReadMeta(m.fsys, meta1Path)
	if err != nil {
		return err
	}
	meta2, err := ReadMeta(m.fsys, meta2Path)
	if err != nil {
		return err
	}

	merged, err := MergeMeta(meta1Path, meta1, meta2Path, meta2, totalBytes)
	if err != nil {
		return err
	}

	outMetaPath := sidecarPath(outPath, m.cfg.Extension)
	if err := WriteMeta(m.fsys, outMetaPath, merged); err != nil {
		return err
	}
	m.logger.Debug("Merged sidecar metadata", zap.String("metaPath", outMetaPath))
	return nil
}

// FixMetaFiles pairs and merges only the sidecar metadata files, without
// copying any recording bytes. Sizes and durations are the sums of the
// inputs' self-reported values. BytesWritten in each result carries the
// merged fileSizeBytes value.
func (m *Merger) FixMetaFiles() ([]PairResult, error) {
	metaExt := metaExtensionFor(m.cfg.Extension)
	pairs, err := m.matchedPairs(metaExt)
	if err != nil {
		return nil, err
	}

	var results []PairResult
	for _, pair := range pairs {
		for i := range pair.files1 {
			meta1Path, meta2Path := pair.files1[i], pair.files2[i]

			meta1, err := ReadMeta(m.fsys, meta1Path)
			if err != nil {
				return results, err
			}
			meta2, err := ReadMeta(m.fsys, meta2Path)
			if err != nil {
				return results, err
			}

			merged, err := MergeMeta(meta1Path, meta1, meta2Path, meta2, -1)
			if err != nil {
				return results, err
			}

			outDir, err := m.outputFolderFor(meta2Path)
			if err != nil {
				return results, err
			}
			outPath := m.fsys.Join(outDir, filepath.Base(meta2Path))
			if err := WriteMeta(m.fsys, outPath, merged); err != nil {
				return results, err
			}

			mergedSize, err := merged.Int(outPath, keySizeBytes)
			if err != nil {
				return results, err
			}
			results = append(results, PairResult{
				Probe:        pair.probe,
				Input1:       meta1Path,
				Input2:       meta2Path,
				Output:       outPath,
				BytesWritten: mergedSize,
			})
		}
	}

	m.logger.Info("Metadata fix complete", zap.Int("mergedSidecars", len(results)))
	return results, nil
}

// matchedPairs runs discovery on both source roots for the given extension
// and intersects them by probe number.
func (m *Merger) matchedPairs(ext string) ([]probePair, error) {
	set1, err := discoverFileSets(m.fsys, m.cfg.Dir1, ext, m.cfg.ProbeIndices, m.logger)
	if err != nil {
		return nil, err
	}
	set2, err := discoverFileSets(m.fsys, m.cfg.Dir2, ext, m.cfg.ProbeIndices, m.logger)
	if err != nil {
		return nil, err
	}

	pairs, err := matchProbes(m.cfg.Dir1, set1, m.cfg.Dir2, set2)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, ErrNoMatchingProbes
	}
	return pairs, nil
}

// outputFolderFor mirrors the folder of a second-source file under the
// output directory and ensures it exists.
func (m *Merger) outputFolderFor(file2 string) (string, error) {
	rel, err := filepath.Rel(m.cfg.Dir2, filepath.Dir(file2))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output subpath for %s: %w", file2, err)
	}
	outDir := m.fsys.Join(m.cfg.OutputDir, rel)
	if err := m.fsys.MkdirAll(outDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create output folder %s: %w", outDir, err)
	}
	return outDir, nil
}
