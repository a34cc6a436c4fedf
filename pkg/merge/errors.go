package merge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatchingProbes is returned when the two source directories share no
// probe number. Callers can check for it with errors.Is.
var ErrNoMatchingProbes = errors.New("no matching probe numbers between source directories")

// MetaError reports a malformed sidecar metadata file: a line without a
// key=value pair, a missing required key, or an unparsable value.
type MetaError struct {
	Path    string // Path to the sidecar file
	Line    int    // Line number (0 if not line-specific)
	Key     string // Offending key, if applicable
	Message string // Primary error message
}

// Error implements the error interface.
func (e *MetaError) Error() string {
	var b strings.Builder
	b.WriteString("metadata error in ")
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " [key: %s]", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// AmbiguousProbeError reports a probe number that matches more than one
// folder under a single source root. The merge refuses to guess which folder
// is meant.
type AmbiguousProbeError struct {
	Root    string   // Source root being scanned
	Probe   string   // Colliding probe number
	Folders []string // All folders claiming the probe number
}

// Error implements the error interface.
func (e *AmbiguousProbeError) Error() string {
	return fmt.Sprintf("probe %s matches multiple folders under %s: %s",
		e.Probe, e.Root, strings.Join(e.Folders, ", "))
}

// PairCountError reports matched probe folders whose file lists differ in
// length. Pairing is positional, so a length mismatch would silently drop
// recordings; the merge fails instead.
type PairCountError struct {
	Probe  string // Probe number with mismatched file counts
	Count1 int    // File count under the first root
	Count2 int    // File count under the second root
}

// Error implements the error interface.
func (e *PairCountError) Error() string {
	return fmt.Sprintf("probe %s has %d files in the first directory but %d in the second",
		e.Probe, e.Count1, e.Count2)
}
