package merge

import (
	"fmt"
	"io"
	"math"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

// mergeInput describes one side of a copy-merge: the recording file, an
// optional time window, and the sidecar needed to translate the window into
// byte offsets.
type mergeInput struct {
	path      string
	timeRange *TimeRange
	metaPath  string
}

// byteRangeFor resolves the byte extent of an input. Without a time window
// the full file [0, size) is used. With one, the window is translated via the
// sidecar's sampling rate and channel count and clamped to the file size.
func byteRangeFor(fsys billy.Filesystem, in mergeInput) (ByteRange, error) {
	info, err := fsys.Stat(in.path)
	if err != nil {
		return ByteRange{}, fmt.Errorf("failed to stat %s: %w", in.path, err)
	}
	size := info.Size()

	if in.timeRange == nil || in.metaPath == "" {
		return ByteRange{Start: 0, End: size}, nil
	}

	meta, err := ReadMeta(fsys, in.metaPath)
	if err != nil {
		return ByteRange{}, err
	}
	sampRate, err := meta.Float(in.metaPath, keySampRate)
	if err != nil {
		return ByteRange{}, err
	}
	nChans, err := meta.Int(in.metaPath, keySavedChans)
	if err != nil {
		return ByteRange{}, err
	}
	if sampRate <= 0 || nChans <= 0 {
		return ByteRange{}, &MetaError{Path: in.metaPath, Key: keySampRate,
			Message: fmt.Sprintf("cannot compute byte range from rate %g and %d channels", sampRate, nChans)}
	}

	frame := nChans * bytesPerSample
	r := ByteRange{
		Start: int64(math.Floor(in.timeRange.Start*sampRate)) * frame,
		End:   int64(math.Floor(in.timeRange.End*sampRate)) * frame,
	}
	if r.Start > size {
		r.Start = size
	}
	if r.End > size {
		r.End = size
	}
	return r, nil
}

// mergeFiles copies the byte extents of the two inputs back to back into
// outPath and returns the total number of bytes written. The output is
// written to a temporary sibling and renamed into place on success, so no
// partially written file is ever visible at the final path; on any error the
// temporary file is removed and the error propagated.
func (m *Merger) mergeFiles(in1, in2 mergeInput, outPath string) (int64, error) {
	range1, err := byteRangeFor(m.fsys, in1)
	if err != nil {
		return 0, err
	}
	range2, err := byteRangeFor(m.fsys, in2)
	if err != nil {
		return 0, err
	}
	planned := range1.Len() + range2.Len()

	m.logger.Info("Merging file pair",
		zap.String("file1", in1.path),
		zap.Int64("bytes1", range1.Len()),
		zap.String("file2", in2.path),
		zap.Int64("bytes2", range2.Len()),
		zap.String("output", outPath))

	tmpPath := outPath + ".partial"
	out, err := m.fsys.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file %s: %w", tmpPath, err)
	}

	var written int64
	report := func(n int64) {
		written += n
		if m.progress != nil {
			m.progress(written, planned)
		}
	}

	cleanup := func(cause error) (int64, error) {
		out.Close()
		if rmErr := m.fsys.Remove(tmpPath); rmErr != nil {
			m.logger.Warn("Failed to remove partial output",
				zap.String("path", tmpPath),
				zap.Error(rmErr))
		}
		return 0, cause
	}

	if err := m.copyFileRange(out, in1, range1, report); err != nil {
		return cleanup(err)
	}
	if err := m.copyFileRange(out, in2, range2, report); err != nil {
		return cleanup(err)
	}

	if err := out.Close(); err != nil {
		if rmErr := m.fsys.Remove(tmpPath); rmErr != nil {
			m.logger.Warn("Failed to remove partial output",
				zap.String("path", tmpPath),
				zap.Error(rmErr))
		}
		return 0, fmt.Errorf("failed to close output file %s: %w", tmpPath, err)
	}
	if err := m.fsys.Rename(tmpPath, outPath); err != nil {
		if rmErr := m.fsys.Remove(tmpPath); rmErr != nil {
			m.logger.Warn("Failed to remove partial output",
				zap.String("path", tmpPath),
				zap.Error(rmErr))
		}
		return 0, fmt.Errorf("failed to finalize output file %s: %w", outPath, err)
	}
	return written, nil
}

// copyFileRange copies the byte extent of one input into dst using a bounded
// chunk buffer. A whole-file copy uses the large chunk size, a windowed copy
// the small one; memory use stays constant regardless of input size.
func (m *Merger) copyFileRange(dst io.Writer, in mergeInput, r ByteRange, report func(int64)) error {
	if r.Len() <= 0 {
		return nil
	}

	src, err := m.fsys.Open(in.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", in.path, err)
	}
	defer src.Close()

	if r.Start > 0 {
		if _, err := src.Seek(r.Start, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek in %s: %w", in.path, err)
		}
	}

	chunkSize := m.cfg.ChunkSize
	if in.timeRange != nil && in.metaPath != "" {
		chunkSize = m.cfg.RangeChunkSize
	}
	if n := r.Len(); n < chunkSize {
		chunkSize = n
	}

	if err := copyChunks(dst, src, r.Len(), make([]byte, chunkSize), report); err != nil {
		return fmt.Errorf("failed to copy %s: %w", in.path, err)
	}
	return nil
}

// copyChunks copies exactly n bytes from src to dst through buf, invoking
// report after every chunk. Reads never exceed len(buf).
func copyChunks(dst io.Writer, src io.Reader, n int64, buf []byte, report func(int64)) error {
	var copied int64
	for copied < n {
		want := int64(len(buf))
		if rem := n - copied; rem < want {
			want = rem
		}

		rn, err := io.ReadFull(src, buf[:want])
		if rn > 0 {
			wn, werr := dst.Write(buf[:rn])
			copied += int64(wn)
			if report != nil && wn > 0 {
				report(int64(wn))
			}
			if werr != nil {
				return werr
			}
			if wn < rn {
				return io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				// The source ended before the requested extent did.
				err = io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
