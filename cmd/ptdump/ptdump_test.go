package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-tables/tables"
)

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.h5")
	f, err := tables.Open(path, tables.ModeWrite, tables.WithTitle("sample"))
	require.NoError(t, err)
	g, err := f.CreateGroup("/", "run1", tables.NodeTitle("first run"))
	require.NoError(t, err)
	require.NoError(t, g.SetAttr("operator", "kim"))
	_, err = g.CreateArray("grid", [][]int32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	v, err := g.CreateVLArray("hits", tables.Float64Atom(),
		tables.NodeFilters(tables.Filters{Complevel: 1, Shuffle: true}))
	require.NoError(t, err)
	require.NoError(t, v.Append([]float64{0.5}))
	require.NoError(t, v.Append([]float64{1.5, 2.5}))
	_, err = f.CreateGroup("/", "_p_hidden")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTree(t *testing.T) {
	path := writeSample(t)
	out, err := run(t, "tree", path)
	require.NoError(t, err)
	assert.Contains(t, out, "/run1/grid")
	assert.Contains(t, out, "/run1/hits")
	assert.Contains(t, out, "zlib(1)+shuffle")
	assert.Contains(t, out, "first run")
	assert.NotContains(t, out, "_p_hidden")

	out, err = run(t, "tree", "--hidden", path)
	require.NoError(t, err)
	assert.Contains(t, out, "_p_hidden")

	_, err = run(t, "tree", path, "/missing")
	assert.ErrorIs(t, err, tables.ErrNoSuchNode)
}

func TestShow(t *testing.T) {
	path := writeSample(t)
	out, err := run(t, "show", path, "/run1/hits")
	require.NoError(t, err)
	assert.Contains(t, out, "[0] [0.5]")
	assert.Contains(t, out, "[1] [1.5 2.5]")

	out, err = run(t, "show", "--start", "1", path, "/run1/grid")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] [3 4]")
	assert.Contains(t, out, "[2] [5 6]")
	assert.NotContains(t, out, "[0] [1 2]")

	_, err = run(t, "show", path, "/run1")
	assert.ErrorIs(t, err, tables.ErrNotLeaf)
}

func TestAttrs(t *testing.T) {
	path := writeSample(t)
	out, err := run(t, "attrs", path, "/run1")
	require.NoError(t, err)
	assert.Contains(t, out, "operator")
	assert.Contains(t, out, "kim")
	assert.NotContains(t, out, "CLASS")

	out, err = run(t, "attrs", "--system", path, "/run1")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "GROUP")
}

func TestCopy(t *testing.T) {
	path := writeSample(t)
	dst := filepath.Join(t.TempDir(), "copy.h5")
	out, err := run(t, "cp", "-r", "--complevel", "1", "--complib", "lz4", path, "/run1", dst, "/")
	require.NoError(t, err)
	assert.Contains(t, out, "copied /run1 to /run1: 1 groups, 2 leaves")

	f, err := tables.Open(dst, tables.ModeRead)
	require.NoError(t, err)
	defer f.Close()
	l, err := f.GetLeaf("/run1/hits")
	require.NoError(t, err)
	assert.Equal(t, tables.ComplibLZ4, l.Filters().Complib)
	g, err := f.GetGroup("/run1")
	require.NoError(t, err)
	op, err := g.GetAttr("operator")
	require.NoError(t, err)
	assert.Equal(t, "kim", op)

	_, err = run(t, "cp", path, "/run1", dst, "/")
	assert.ErrorIs(t, err, tables.ErrNode)
}

func TestRaw(t *testing.T) {
	path := writeSample(t)
	out, err := run(t, "raw", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Superblock version: 3")
	assert.Contains(t, out, `Dataset "/run1/hits"`)
	assert.Contains(t, out, "Filters: [2 1]")
}

func TestConfigFlag(t *testing.T) {
	path := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "ptdump.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("tables:\n  chunk_times: 0\n"), 0o644))
	_, err := run(t, "--config", cfg, "tree", path)
	assert.ErrorContains(t, err, "chunk_times")

	_, err = run(t, "--log-level", "loud", "tree", path)
	assert.Error(t, err)

	_, err = run(t, "-v", "tree", path)
	require.NoError(t, err)
}
