package merge

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

var probePattern = regexp.MustCompile(`imec(\d+)`)

// ProbeNumber extracts the probe number following the literal "imec" token
// from a folder path. It reports false when the path carries no such token.
func ProbeNumber(folder string) (string, bool) {
	m := probePattern.FindStringSubmatch(filepath.Base(folder))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// discoverFileSets scans root for subdirectories whose name contains an
// "imec<N>" token for any of the configured probe indices, and returns each
// such folder mapped to its sorted list of files ending in "."+ext. Folders
// without matching files are omitted. A missing root yields an empty set
// rather than an error.
func discoverFileSets(fsys billy.Filesystem, root, ext string, probeIndices []int, logger *zap.Logger) (FileSet, error) {
	set := FileSet{}

	entries, err := fsys.ReadDir(root)
	if err != nil {
		logger.Debug("Source root not readable, treating as empty",
			zap.String("root", root),
			zap.Error(err))
		return set, nil
	}

	suffix := "." + ext
	// One pass per probe index, matching the acquisition software's folder
	// naming. A folder is collected at most once even if it matches several
	// tokens.
	for _, n := range probeIndices {
		token := fmt.Sprintf("imec%d", n)
		for _, entry := range entries {
			if !entry.IsDir() || !strings.Contains(entry.Name(), token) {
				continue
			}
			folder := fsys.Join(root, entry.Name())
			if _, ok := set[folder]; ok {
				continue
			}

			files, err := listFiles(fsys, folder, suffix)
			if err != nil {
				return nil, fmt.Errorf("failed to list files in %s: %w", folder, err)
			}
			if len(files) == 0 {
				continue
			}
			set[folder] = files
			logger.Debug("Discovered probe folder",
				zap.String("folder", folder),
				zap.Int("fileCount", len(files)))
		}
	}
	return set, nil
}

// listFiles returns the sorted paths of regular files in folder whose name
// ends with suffix.
func listFiles(fsys billy.Filesystem, folder, suffix string) ([]string, error) {
	entries, err := fsys.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		files = append(files, fsys.Join(folder, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// probePair holds the positional file pairing for one probe number common to
// both source roots.
type probePair struct {
	probe  string
	files1 []string
	files2 []string
}

// buildProbeMap maps each probe number found in the file set to its folder.
// A probe number claimed by more than one folder is rejected rather than
// silently resolved.
func buildProbeMap(root string, set FileSet) (map[string]string, error) {
	probes := map[string]string{}
	for folder := range set {
		num, ok := ProbeNumber(folder)
		if !ok {
			continue
		}
		if prev, exists := probes[num]; exists {
			folders := []string{prev, folder}
			sort.Strings(folders)
			return nil, &AmbiguousProbeError{Root: root, Probe: num, Folders: folders}
		}
		probes[num] = folder
	}
	return probes, nil
}

// matchProbes intersects the probe numbers of the two roots and pairs their
// file lists positionally. Probes present in only one root are skipped;
// mismatched list lengths fail with a PairCountError.
func matchProbes(root1 string, set1 FileSet, root2 string, set2 FileSet) ([]probePair, error) {
	probes1, err := buildProbeMap(root1, set1)
	if err != nil {
		return nil, err
	}
	probes2, err := buildProbeMap(root2, set2)
	if err != nil {
		return nil, err
	}

	var common []string
	for num := range probes1 {
		if _, ok := probes2[num]; ok {
			common = append(common, num)
		}
	}
	sort.Strings(common)

	pairs := make([]probePair, 0, len(common))
	for _, num := range common {
		files1 := set1[probes1[num]]
		files2 := set2[probes2[num]]
		if len(files1) != len(files2) {
			return nil, &PairCountError{Probe: num, Count1: len(files1), Count2: len(files2)}
		}
		pairs = append(pairs, probePair{probe: num, files1: files1, files2: files2})
	}
	return pairs, nil
}
