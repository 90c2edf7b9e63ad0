package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayCreate(t *testing.T) {
	f, _ := newFile(t)
	a, err := f.CreateArray("/", "grid", [][]int16{{1, 2, 3}, {4, 5, 6}}, NodeTitle("grid"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, a.Shape())
	assert.Equal(t, 2, a.NRows())
	assert.Equal(t, Int16Atom(), a.Atom())
	assert.Equal(t, int64(12), a.Size())
	assert.Nil(t, a.ChunkShape())
	assert.Equal(t, "little", a.ByteOrder())
	assert.Equal(t, FlavorNumPy, a.Flavor())

	var got []int64
	require.NoError(t, a.Read(&got))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got)

	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, 4, 5, 6}, v)

	_, err = f.CreateArray("/", "ragged", [][]int16{{1}, {2, 3}})
	assert.ErrorIs(t, err, ErrShape)
	_, err = f.CreateArray("/", "iface", []any{1})
	assert.ErrorIs(t, err, ErrType)
	_, err = f.CreateArray("/", "struct", []struct{}{{}})
	assert.ErrorIs(t, err, ErrType)
	assert.Equal(t, []string{"grid"}, f.Root().ChildNames())
}

func TestArrayReadRange(t *testing.T) {
	f, _ := newFile(t)
	a, err := f.CreateArray("/", "grid", [][]float64{{0, 1}, {2, 3}, {4, 5}, {6, 7}})
	require.NoError(t, err)

	v, err := a.ReadRange(1, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 6, 7}, v)
	v, err = a.ReadRange(-1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7}, v)
	v, err = a.ReadRange(3, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{}, v)
	_, err = a.ReadRange(0, 1, 0)
	assert.ErrorIs(t, err, ErrIndex)

	s, err := f.CreateArray("/", "scalar", 3.5)
	require.NoError(t, err)
	_, err = s.ReadRange(0, 1, 1)
	assert.ErrorIs(t, err, ErrShape)
}

func TestArrayScalar(t *testing.T) {
	f, _ := newFile(t)
	_, err := f.CreateArray("/", "pi", 3.25)
	require.NoError(t, err)
	_, err = f.CreateArray("/", "filtered", int32(1), NodeFilters(Filters{Complevel: 1}))
	assert.ErrorIs(t, err, ErrShape)

	r := reopen(t, f, ModeRead)
	l, err := r.GetLeaf("/pi")
	require.NoError(t, err)
	a := l.(*Array)
	assert.Empty(t, a.Shape())
	assert.Equal(t, 1, a.NRows())
	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, 3.25, v)
}

func TestArrayStrings(t *testing.T) {
	f, _ := newFile(t)
	a, err := f.CreateArray("/", "names", []string{"a", "abcd", ""})
	require.NoError(t, err)
	assert.Equal(t, StringAtom(4), a.Atom())
	assert.Equal(t, "irrelevant", a.ByteOrder())

	r := reopen(t, f, ModeRead)
	l, err := r.GetLeaf("/names")
	require.NoError(t, err)
	v, err := l.(*Array).Value()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "abcd", ""}, v)
}

func TestArrayBools(t *testing.T) {
	f, _ := newFile(t)
	_, err := f.CreateArray("/", "mask", []bool{true, false, true})
	require.NoError(t, err)

	r := reopen(t, f, ModeRead)
	l, err := r.GetLeaf("/mask")
	require.NoError(t, err)
	assert.Equal(t, BoolAtom(), l.Atom())
	v, err := l.(*Array).Value()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, v)
}

func TestArrayFilters(t *testing.T) {
	data := make([][]uint32, 100)
	for i := range data {
		data[i] = []uint32{uint32(i), uint32(i * i)}
	}
	filters := Filters{Complevel: 6, Shuffle: true, Fletcher32: true}

	f, _ := newFile(t)
	a, err := f.CreateArray("/", "squares", data, NodeFilters(filters))
	require.NoError(t, err)
	assert.Equal(t, []int{100, 2}, a.ChunkShape())
	_, err = f.CreateArray("/", "empty", []uint32{}, NodeFilters(filters))
	require.NoError(t, err)

	r := reopen(t, f, ModeRead)
	l, err := r.GetLeaf("/squares")
	require.NoError(t, err)
	assert.Equal(t, filters.normalize(), l.Filters())
	assert.Equal(t, []int{100, 2}, l.ChunkShape())
	v, err := l.(*Array).ReadRange(99, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{99, 99 * 99}, v)

	l, err = r.GetLeaf("/empty")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, l.Shape())
	assert.Equal(t, []int{1}, l.ChunkShape())
}
