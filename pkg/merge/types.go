package merge

// Constants
const (
	// FullCopyChunkSize is the read size used when copying an entire file.
	FullCopyChunkSize = 128 * 1024 * 1024
	// RangeCopyChunkSize is the read size used when copying a time-windowed
	// sub-range of a file.
	RangeCopyChunkSize = 1024 * 1024

	// bytesPerSample is fixed for this hardware family: 16-bit samples,
	// interleaved channels.
	bytesPerSample = 2
)

// TimeRange is a half-open window [Start, End) in seconds, applied uniformly
// to every file of one source directory.
type TimeRange struct {
	Start float64 `yaml:"start"` // Window start in seconds from file begin
	End   float64 `yaml:"end"`   // Window end in seconds from file begin
}

// ByteRange is a half-open interval [Start, End) of byte offsets within a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}

// FileSet maps a probe folder path to the sorted list of recording files it
// contains. Lexicographic file order equals acquisition order.
type FileSet map[string][]string

// PairResult describes one merged file pair.
type PairResult struct {
	Probe        string // Probe number extracted from the folder names
	Input1       string // Path of the first input file
	Input2       string // Path of the second input file
	Output       string // Path of the merged output file
	BytesWritten int64  // Total bytes written to the output
}

// ProgressFunc receives copy progress after every chunk: bytes written so far
// and the total planned byte count for the current file pair.
type ProgressFunc func(written, planned int64)
