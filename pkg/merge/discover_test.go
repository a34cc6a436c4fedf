package merge

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTestFile(t *testing.T, fsys billy.Filesystem, path string, data []byte) {
	t.Helper()
	require.NoError(t, util.WriteFile(fsys, path, data, 0o644))
}

func TestProbeNumber(t *testing.T) {
	tests := []struct {
		folder string
		want   string
		ok     bool
	}{
		{"/data/Probe1_imec0", "0", true},
		{"/data/session_g0_imec12", "12", true},
		{"imec3", "3", true},
		{"/data/no_probe_here", "", false},
		{"/data/imec", "", false},
	}
	for _, tt := range tests {
		got, ok := ProbeNumber(tt.folder)
		assert.Equal(t, tt.ok, ok, tt.folder)
		assert.Equal(t, tt.want, got, tt.folder)
	}
}

func TestDiscoverFileSets(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/a/Probe1_imec0/run_b.ap.bin", []byte("b"))
	writeTestFile(t, fsys, "/a/Probe1_imec0/run_a.ap.bin", []byte("a"))
	writeTestFile(t, fsys, "/a/Probe1_imec0/run_a.lf.bin", []byte("x"))
	writeTestFile(t, fsys, "/a/Probe1_imec1/run.ap.bin", []byte("c"))
	writeTestFile(t, fsys, "/a/not_a_probe/run.ap.bin", []byte("d"))
	writeTestFile(t, fsys, "/a/empty_imec2/run.lf.bin", []byte("e"))

	set, err := discoverFileSets(fsys, "/a", "ap.bin", defaultProbeIndices, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, set, 2)
	assert.Equal(t, []string{
		"/a/Probe1_imec0/run_a.ap.bin",
		"/a/Probe1_imec0/run_b.ap.bin",
	}, set["/a/Probe1_imec0"])
	assert.Equal(t, []string{"/a/Probe1_imec1/run.ap.bin"}, set["/a/Probe1_imec1"])
	// Folders with no matching files are omitted entirely.
	assert.NotContains(t, set, "/a/empty_imec2")
}

func TestDiscoverFileSets_MissingRoot(t *testing.T) {
	set, err := discoverFileSets(memfs.New(), "/nowhere", "ap.bin", defaultProbeIndices, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestDiscoverFileSets_ProbeIndexFilter(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/a/run_imec0/x.ap.bin", []byte("0"))
	writeTestFile(t, fsys, "/a/run_imec1/x.ap.bin", []byte("1"))

	set, err := discoverFileSets(fsys, "/a", "ap.bin", []int{1}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Contains(t, set, "/a/run_imec1")
}

func TestDiscoverFileSets_Idempotent(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "/a/s_imec0/t2.ap.bin", []byte("2"))
	writeTestFile(t, fsys, "/a/s_imec0/t1.ap.bin", []byte("1"))
	writeTestFile(t, fsys, "/a/s_imec3/t3.ap.bin", []byte("3"))

	first, err := discoverFileSets(fsys, "/a", "ap.bin", defaultProbeIndices, zap.NewNop())
	require.NoError(t, err)
	second, err := discoverFileSets(fsys, "/a", "ap.bin", defaultProbeIndices, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"/a/s_imec0/t1.ap.bin", "/a/s_imec0/t2.ap.bin"}, first["/a/s_imec0"])
}

func TestBuildProbeMap_AmbiguousProbe(t *testing.T) {
	set := FileSet{
		"/a/run1_imec1": {"/a/run1_imec1/x.ap.bin"},
		"/a/run2_imec1": {"/a/run2_imec1/x.ap.bin"},
	}

	_, err := buildProbeMap("/a", set)
	var ambErr *AmbiguousProbeError
	require.ErrorAs(t, err, &ambErr)
	assert.Equal(t, "1", ambErr.Probe)
	assert.Equal(t, "/a", ambErr.Root)
	assert.Len(t, ambErr.Folders, 2)
}

func TestMatchProbes_IntersectionOnly(t *testing.T) {
	set1 := FileSet{
		"/a/Probe1_imec0": {"/a/Probe1_imec0/x.ap.bin"},
		"/a/Probe1_imec1": {"/a/Probe1_imec1/x.ap.bin"},
	}
	set2 := FileSet{
		"/b/RunB_imec1": {"/b/RunB_imec1/y.ap.bin"},
		"/b/RunB_imec2": {"/b/RunB_imec2/y.ap.bin"},
	}

	pairs, err := matchProbes("/a", set1, "/b", set2)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "1", pairs[0].probe)
	assert.Equal(t, []string{"/a/Probe1_imec1/x.ap.bin"}, pairs[0].files1)
	assert.Equal(t, []string{"/b/RunB_imec1/y.ap.bin"}, pairs[0].files2)
}

func TestMatchProbes_PairCountMismatch(t *testing.T) {
	set1 := FileSet{"/a/s_imec0": {"/a/s_imec0/t1.ap.bin", "/a/s_imec0/t2.ap.bin"}}
	set2 := FileSet{"/b/s_imec0": {"/b/s_imec0/t1.ap.bin"}}

	_, err := matchProbes("/a", set1, "/b", set2)
	var countErr *PairCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, "0", countErr.Probe)
	assert.Equal(t, 2, countErr.Count1)
	assert.Equal(t, 1, countErr.Count2)
}

func TestMatchProbes_NoCommonProbes(t *testing.T) {
	set1 := FileSet{"/a/s_imec0": {"/a/s_imec0/x.ap.bin"}}
	set2 := FileSet{"/b/s_imec2": {"/b/s_imec2/y.ap.bin"}}

	pairs, err := matchProbes("/a", set1, "/b", set2)
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.False(t, errors.Is(err, ErrNoMatchingProbes))
}
