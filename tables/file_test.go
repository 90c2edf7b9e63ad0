package tables

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/robert-malhotra/go-tables/hdf5"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.h5")
}

func newFile(t *testing.T, opts ...Option) (*File, string) {
	t.Helper()
	path := tempPath(t)
	f, err := Open(path, ModeWrite, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, path
}

func reopen(t *testing.T, f *File, mode Mode, opts ...Option) *File {
	t.Helper()
	require.NoError(t, f.Close())
	g, err := Open(f.Path(), mode, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return zap.New(core), logs
}

func TestOpenModes(t *testing.T) {
	missing := tempPath(t)

	_, err := Open(missing, ModeRead)
	assert.True(t, errors.Is(err, os.ErrNotExist), "r: %v", err)
	_, err = Open(missing, ModeReadWrite)
	assert.True(t, errors.Is(err, os.ErrNotExist), "r+: %v", err)
	_, err = Open(missing, Mode("x"))
	assert.Error(t, err)

	f, err := Open(missing, ModeAppend, WithTitle("appended"))
	require.NoError(t, err)
	_, err = os.Stat(missing)
	require.NoError(t, err, "append mode creates the file on open")
	_, err = f.CreateGroup("/", "g")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = Open(missing, ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, "appended", f.Title())
	assert.True(t, f.Root().Contains("g"))
	require.NoError(t, f.Close())

	f, err = Open(missing, ModeWrite)
	require.NoError(t, err)
	assert.Empty(t, f.Root().ChildNames(), "write mode truncates")
	require.NoError(t, f.Close())
}

func TestRoundTrip(t *testing.T) {
	f, _ := newFile(t, WithTitle("round trip"))

	g, err := f.CreateGroup("/", "detector", NodeTitle("Detector data"))
	require.NoError(t, err)
	_, err = g.CreateArray("counts", [][]int32{{1, 2, 3}, {4, 5, 6}}, NodeTitle("counts"))
	require.NoError(t, err)
	v, err := g.CreateVLArray("ragged", Float64Atom())
	require.NoError(t, err)
	require.NoError(t, v.Append([]float64{1.5}))
	require.NoError(t, v.Append([]float64{2.5, 3.5}))
	s, err := f.CreateVLArray("/", "names", VLStringAtom())
	require.NoError(t, err)
	require.NoError(t, s.Append("alpha"))
	require.NoError(t, s.Append(""))
	require.NoError(t, g.SetAttr("gain", 2.5))

	r := reopen(t, f, ModeRead)
	assert.Equal(t, "round trip", r.Title())

	dg, err := r.GetGroup("/detector")
	require.NoError(t, err)
	assert.Equal(t, "Detector data", dg.Title())
	gain, err := dg.GetAttr("gain")
	require.NoError(t, err)
	assert.Equal(t, 2.5, gain)
	assert.Equal(t, []string{"counts", "ragged"}, dg.ChildNames())

	leaf, err := r.GetLeaf("/detector/counts")
	require.NoError(t, err)
	arr := leaf.(*Array)
	assert.Equal(t, []int{2, 3}, arr.Shape())
	assert.Equal(t, KindInt32, arr.Atom().Kind)
	assert.Equal(t, "counts", arr.Title())
	var counts []int32
	require.NoError(t, arr.Read(&counts))
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, counts)

	n, err := r.GetNode("/detector/ragged")
	require.NoError(t, err)
	rv := n.(*VLArray)
	assert.Equal(t, 2, rv.NRows())
	rows, err := rv.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []any{[]float64{1.5}, []float64{2.5, 3.5}}, rows)

	n, err = r.GetNode("/names")
	require.NoError(t, err)
	names := n.(*VLArray)
	assert.Equal(t, KindVLString, names.Atom().Kind)
	assert.Equal(t, FlavorVLString, names.Flavor())
	rows, err = names.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"alpha", ""}, rows)
}

func TestReadOnly(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "v", Int32Atom())
	require.NoError(t, err)
	require.NoError(t, v.Append([]int32{1}))

	r := reopen(t, f, ModeRead)
	_, err = r.CreateGroup("/", "g")
	assert.ErrorIs(t, err, ErrReadOnly)

	n, err := r.GetNode("/v")
	require.NoError(t, err)
	assert.ErrorIs(t, n.SetAttr("x", 1), ErrReadOnly)
	assert.ErrorIs(t, n.(*VLArray).Append([]int32{2}), ErrReadOnly)
	assert.ErrorIs(t, n.Rename("w"), ErrReadOnly)
	assert.ErrorIs(t, n.Remove(false), ErrReadOnly)
	assert.ErrorIs(t, r.RemoveNode("/v", false), ErrReadOnly)
	require.NoError(t, r.Flush())
}

func TestFlushReplacesFile(t *testing.T) {
	f, path := newFile(t)
	_, err := f.CreateGroup("/", "a")
	require.NoError(t, err)
	require.NoError(t, f.Flush())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are renamed away")

	h, err := hdf5.Open(path)
	require.NoError(t, err)
	members, err := h.Root().Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
	class, err := h.ReadAttr("/a@CLASS")
	require.NoError(t, err)
	assert.Equal(t, "GROUP", class)
	require.NoError(t, h.Close())

	// Nodes stay usable after a flush.
	g, err := f.GetGroup("/a")
	require.NoError(t, err)
	_, err = g.CreateGroup("b")
	require.NoError(t, err)
	require.NoError(t, f.Flush())
}

func TestClose(t *testing.T) {
	f, _ := newFile(t)
	g, err := f.CreateGroup("/", "g")
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.False(t, f.IsOpen())
	assert.False(t, g.IsOpen())

	_, err = f.GetNode("/g")
	assert.ErrorIs(t, err, ErrClosedFile)
	assert.ErrorIs(t, g.SetAttr("x", 1), ErrClosedFile)
	assert.ErrorIs(t, f.Flush(), ErrClosedFile)
}

func TestTranslationMap(t *testing.T) {
	tr := WithTranslationMap(map[string]string{"a_b": "a-b"})
	f, path := newFile(t, tr)
	g, err := f.CreateGroup("/", "a_b")
	require.NoError(t, err)
	assert.Equal(t, "a_b", g.Name())
	assert.Equal(t, "a-b", g.HDF5Name())
	assert.Equal(t, "/a_b", g.Path())
	require.NoError(t, f.Close())

	h, err := hdf5.Open(path)
	require.NoError(t, err)
	members, err := h.Root().Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b"}, members)
	require.NoError(t, h.Close())

	r, err := Open(path, ModeRead, tr)
	require.NoError(t, err)
	defer r.Close()
	n, err := r.GetNode("/a_b")
	require.NoError(t, err)
	assert.Equal(t, "a-b", n.HDF5Name())
}

func TestCacheStats(t *testing.T) {
	p := DefaultParameters()
	p.NodeCacheSlots = 2
	f, _ := newFile(t, WithParameters(p))
	for _, name := range []string{"a", "b", "c"} {
		_, err := f.CreateGroup("/", name)
		require.NoError(t, err)
	}
	v, err := f.CreateVLArray("/", "v", Int32Atom())
	require.NoError(t, err)
	require.NoError(t, v.Append([]int32{1, 2}))

	s := f.CacheStats()
	assert.Equal(t, 2, s.Nodes)
	assert.Equal(t, 2, s.NodeSlots)

	r := reopen(t, f, ModeRead, WithParameters(p))
	n, err := r.GetNode("/v")
	require.NoError(t, err)
	for range 2 {
		_, err := n.(*VLArray).ReadAll()
		require.NoError(t, err)
	}
	s = r.CacheStats()
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, 1, s.Data)
}

func TestBadParameters(t *testing.T) {
	p := DefaultParameters()
	p.ChunkTimes = 0
	_, err := Open(tempPath(t), ModeWrite, WithParameters(p))
	assert.Error(t, err)
}

func TestWalkNodes(t *testing.T) {
	f, _ := newFile(t)
	_, err := f.CreateGroup("/", "b")
	require.NoError(t, err)
	_, err = f.CreateGroup("/b", "c")
	require.NoError(t, err)
	_, err = f.CreateArray("/", "a", []int8{1})
	require.NoError(t, err)
	_, err = f.CreateArray("/b/c", "d", []int8{1})
	require.NoError(t, err)

	var paths []string
	require.NoError(t, f.WalkNodes("/", func(n Node) error {
		paths = append(paths, n.Path())
		return nil
	}))
	assert.Equal(t, []string{"/", "/a", "/b", "/b/c", "/b/c/d"}, paths)

	paths = nil
	require.NoError(t, f.WalkGroups("/", func(g *Group) error {
		paths = append(paths, g.Path())
		return nil
	}))
	assert.Equal(t, []string{"/", "/b", "/b/c"}, paths)

	paths = nil
	require.NoError(t, f.WalkNodes("/", func(n Node) error {
		paths = append(paths, n.Path())
		if len(paths) == 2 {
			return ErrStopWalk
		}
		return nil
	}))
	assert.Len(t, paths, 2)

	boom := errors.New("boom")
	assert.ErrorIs(t, f.WalkNodes("/", func(Node) error { return boom }), boom)
}

func TestIsVisiblePath(t *testing.T) {
	assert.True(t, IsVisiblePath("/a/b"))
	assert.True(t, IsVisiblePath("/"))
	assert.False(t, IsVisiblePath("/a/_p_hidden/b"))
	assert.False(t, IsVisiblePath("/_i_index"))
	assert.True(t, IsVisiblePath("/_x_"))

	f, _ := newFile(t)
	assert.True(t, f.IsVisiblePath("/a"))
	g, err := f.CreateGroup("/", "_p_private")
	require.NoError(t, err)
	assert.False(t, g.IsVisible())
}

func TestConcurrentAccess(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "v", Int64Atom())
	require.NoError(t, err)
	require.NoError(t, v.Append([]int64{0}))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 50 {
			if err := v.Append([]int64{int64(i)}); err != nil {
				errs <- err
				return
			}
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				n, err := f.GetNode("/v")
				if err != nil {
					errs <- err
					return
				}
				if _, err := n.(*VLArray).Row(0); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 51, v.NRows())
}
