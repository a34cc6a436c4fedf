package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Required sidecar keys.
const (
	keySampRate   = "imSampRate"    // Sampling rate in Hz (float)
	keySavedChans = "nSavedChans"   // Number of saved channels (int)
	keySizeBytes  = "fileSizeBytes" // Recording size in bytes (int)
	keyTimeSecs   = "fileTimeSecs"  // Recording duration in seconds (float)
	keyFirstSamp  = "firstSample"   // Index of the first saved sample (int)
)

// MetaRecord is an ordered key=value mapping parsed from a sidecar metadata
// file. Order is preserved so the merged sidecar reads like its inputs.
type MetaRecord struct {
	keys   []string
	values map[string]string
}

// NewMetaRecord returns an empty record.
func NewMetaRecord() *MetaRecord {
	return &MetaRecord{values: map[string]string{}}
}

// Get returns the value for key and whether it is present.
func (r *MetaRecord) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set stores a value, appending the key to the order if it is new.
func (r *MetaRecord) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys returns the keys in insertion order.
func (r *MetaRecord) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Clone returns a deep copy of the record.
func (r *MetaRecord) Clone() *MetaRecord {
	c := NewMetaRecord()
	for _, k := range r.keys {
		c.Set(k, r.values[k])
	}
	return c
}

// Int returns the value of key parsed as an integer.
func (r *MetaRecord) Int(path, key string) (int64, error) {
	raw, ok := r.values[key]
	if !ok {
		return 0, &MetaError{Path: path, Key: key, Message: "required key is missing"}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &MetaError{Path: path, Key: key, Message: fmt.Sprintf("value %q is not an integer", raw)}
	}
	return v, nil
}

// Float returns the value of key parsed as a float.
func (r *MetaRecord) Float(path, key string) (float64, error) {
	raw, ok := r.values[key]
	if !ok {
		return 0, &MetaError{Path: path, Key: key, Message: "required key is missing"}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &MetaError{Path: path, Key: key, Message: fmt.Sprintf("value %q is not a number", raw)}
	}
	return v, nil
}

// ReadMeta parses a sidecar file of newline-separated key=value pairs.
// Lines without a '=' separator are malformed and fail the parse.
func ReadMeta(fsys billy.Filesystem, path string) (*MetaRecord, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file %s: %w", path, err)
	}

	rec := NewMetaRecord()
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			return nil, &MetaError{Path: path, Line: i + 1, Message: fmt.Sprintf("malformed line %q", line)}
		}
		rec.Set(key, value)
	}
	return rec, nil
}

// WriteMeta writes the record as key=value lines in record order.
func WriteMeta(fsys billy.Filesystem, path string, rec *MetaRecord) error {
	var b strings.Builder
	for _, key := range rec.keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(rec.values[key])
		b.WriteByte('\n')
	}
	if err := util.WriteFile(fsys, path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file %s: %w", path, err)
	}
	return nil
}

// MergeMeta combines two sidecar records into the record describing the
// merged recording. The result keeps every key of the first record in its
// original order, with the size, duration, and first-sample fields replaced.
//
// When totalBytes is non-negative it is taken as the exact byte count the
// copy step produced, and the duration is recomputed from it using the first
// record's sampling rate and channel count, so a time-windowed copy yields a
// consistent sidecar. A negative totalBytes selects the metadata-only
// fallback: size and duration are the sums of the inputs' self-reported
// values.
func MergeMeta(path1 string, meta1 *MetaRecord, path2 string, meta2 *MetaRecord, totalBytes int64) (*MetaRecord, error) {
	first1, err := meta1.Int(path1, keyFirstSamp)
	if err != nil {
		return nil, err
	}
	first2, err := meta2.Int(path2, keyFirstSamp)
	if err != nil {
		return nil, err
	}

	var sizeBytes int64
	var timeSecs float64
	if totalBytes >= 0 {
		sampRate, err := meta1.Float(path1, keySampRate)
		if err != nil {
			return nil, err
		}
		nChans, err := meta1.Int(path1, keySavedChans)
		if err != nil {
			return nil, err
		}
		if sampRate <= 0 || nChans <= 0 {
			return nil, &MetaError{Path: path1, Key: keySampRate,
				Message: fmt.Sprintf("cannot derive duration from rate %g and %d channels", sampRate, nChans)}
		}
		sizeBytes = totalBytes
		timeSecs = float64(totalBytes) / (float64(bytesPerSample) * float64(nChans) * sampRate)
	} else {
		size1, err := meta1.Int(path1, keySizeBytes)
		if err != nil {
			return nil, err
		}
		size2, err := meta2.Int(path2, keySizeBytes)
		if err != nil {
			return nil, err
		}
		secs1, err := meta1.Float(path1, keyTimeSecs)
		if err != nil {
			return nil, err
		}
		secs2, err := meta2.Float(path2, keyTimeSecs)
		if err != nil {
			return nil, err
		}
		sizeBytes = size1 + size2
		timeSecs = secs1 + secs2
	}

	merged := meta1.Clone()
	merged.Set(keySizeBytes, strconv.FormatInt(sizeBytes, 10))
	merged.Set(keyTimeSecs, formatSeconds(timeSecs))
	merged.Set(keyFirstSamp, strconv.FormatInt(min64(first1, first2), 10))
	return merged, nil
}

// formatSeconds renders a duration value, keeping one decimal for integral
// values so "3" round-trips as "3.0" like the sidecars the hardware writes.
func formatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
