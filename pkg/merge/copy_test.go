package merge

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingReader tracks the largest single read it serves.
type recordingReader struct {
	r       io.Reader
	maxRead int
}

func (r *recordingReader) Read(p []byte) (int, error) {
	if len(p) > r.maxRead {
		r.maxRead = len(p)
	}
	return r.r.Read(p)
}

func TestCopyChunks_BoundedReads(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	src := &recordingReader{r: bytes.NewReader(data)}
	var dst bytes.Buffer

	var chunks int
	err := copyChunks(&dst, src, int64(len(data)), make([]byte, 64), func(int64) { chunks++ })
	require.NoError(t, err)

	assert.Equal(t, data, dst.Bytes())
	assert.LessOrEqual(t, src.maxRead, 64)
	assert.Equal(t, 16, chunks) // 15 full chunks plus the 40-byte tail
}

func TestCopyChunks_ShortSource(t *testing.T) {
	src := bytes.NewReader(make([]byte, 10))
	var dst bytes.Buffer

	err := copyChunks(&dst, src, 20, make([]byte, 8), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestByteRangeFor_FullFile(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/s_imec0/run.ap.bin", make([]byte, 400))

	r, err := byteRangeFor(fsys, mergeInput{path: "/s_imec0/run.ap.bin"})
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 0, End: 400}, r)
}

func TestByteRangeFor_TimeWindow(t *testing.T) {
	fsys := memfs.New()
	// 100 samples, 2 channels, 2 bytes per sample at 1000 Hz.
	writeTestFile(t, fsys, "/s_imec0/run.ap.bin", make([]byte, 400))
	writeTestFile(t, fsys, "/s_imec0/run.ap.meta", []byte("imSampRate=1000.0\nnSavedChans=2\n"))

	in := mergeInput{
		path:      "/s_imec0/run.ap.bin",
		timeRange: &TimeRange{Start: 0.0105, End: 0.0205},
		metaPath:  "/s_imec0/run.ap.meta",
	}
	r, err := byteRangeFor(fsys, in)
	require.NoError(t, err)

	// floor(0.0105*1000)=10 samples and floor(0.0205*1000)=20 samples,
	// times 2 channels times 2 bytes.
	assert.Equal(t, ByteRange{Start: 40, End: 80}, r)
	assert.Equal(t, int64(40), r.Len())
}

func TestByteRangeFor_ClampedToFileSize(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/s_imec0/run.ap.bin", make([]byte, 100))
	writeTestFile(t, fsys, "/s_imec0/run.ap.meta", []byte("imSampRate=1000.0\nnSavedChans=2\n"))

	in := mergeInput{
		path:      "/s_imec0/run.ap.bin",
		timeRange: &TimeRange{Start: 0, End: 60},
		metaPath:  "/s_imec0/run.ap.meta",
	}
	r, err := byteRangeFor(fsys, in)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 0, End: 100}, r)
}

func TestByteRangeFor_MissingMetaKey(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/s_imec0/run.ap.bin", make([]byte, 100))
	writeTestFile(t, fsys, "/s_imec0/run.ap.meta", []byte("imSampRate=1000.0\n"))

	in := mergeInput{
		path:      "/s_imec0/run.ap.bin",
		timeRange: &TimeRange{Start: 0, End: 1},
		metaPath:  "/s_imec0/run.ap.meta",
	}
	_, err := byteRangeFor(fsys, in)
	var metaErr *MetaError
	require.ErrorAs(t, err, &metaErr)
	assert.Equal(t, "nSavedChans", metaErr.Key)
}
