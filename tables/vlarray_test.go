package tables

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-tables/hdf5"
	"github.com/robert-malhotra/go-tables/internal/message"
)

func fillVLArray(t *testing.T, f *File, rows int) *VLArray {
	t.Helper()
	v, err := f.CreateVLArray("/", "v", Int32Atom())
	require.NoError(t, err)
	for i := range rows {
		row := make([]int32, i%3)
		for j := range row {
			row[j] = int32(i*10 + j)
		}
		require.NoError(t, v.Append(row))
	}
	return v
}

func TestVLArrayAppend(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "v", Float32Atom())
	require.NoError(t, err)
	assert.Equal(t, 0, v.NRows())
	assert.Equal(t, []int{0}, v.Shape())

	require.NoError(t, v.Append([]float32{1, 2, 3}))
	require.NoError(t, v.Append([]float32{}))
	require.NoError(t, v.Append(float32(4)))
	require.NoError(t, v.Append([]int{5, 6}), "integers convert to float atoms")
	assert.Equal(t, 4, v.NRows())
	assert.Equal(t, []int{4}, v.Shape())

	rows, err := v.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []any{
		[]float32{1, 2, 3},
		[]float32{},
		[]float32{4},
		[]float32{5, 6},
	}, rows)
	assert.Equal(t, int64(6*4), v.Size())

	assert.ErrorIs(t, v.Append([]string{"x"}), ErrType)
	assert.ErrorIs(t, v.Append([]any{1}), ErrType)
	assert.ErrorIs(t, v.Append(nil), ErrType)
	assert.ErrorIs(t, v.Append([][]float32{{1}, {2, 3}}), ErrShape)
	assert.Equal(t, 4, v.NRows(), "failed appends add nothing")

	i, err := f.CreateVLArray("/", "i", Int8Atom())
	require.NoError(t, err)
	assert.ErrorIs(t, i.Append([]float64{1.5}), ErrType)
}

func TestVLArrayShapedAtom(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "pairs", Int32Atom().WithShape(2))
	require.NoError(t, err)

	require.NoError(t, v.Append([][]int32{{1, 2}, {3, 4}}))
	require.NoError(t, v.Append([]int32{5, 6}))
	require.NoError(t, v.Append([]int32{7, 8, 9, 10}))
	assert.ErrorIs(t, v.Append([]int32{1, 2, 3}), ErrShape)
	assert.ErrorIs(t, v.Append(int32(1)), ErrShape)
	assert.ErrorIs(t, v.Append([][]int32{{1, 2, 3}}), ErrShape)

	r := reopen(t, f, ModeRead)
	n, err := r.GetNode("/pairs")
	require.NoError(t, err)
	rv := n.(*VLArray)
	assert.Equal(t, []int{2}, rv.Atom().Shape)
	rows, err := ReadRows[int32](rv, 0, math.MaxInt, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{1, 2, 3, 4}, {5, 6}, {7, 8, 9, 10}}, rows)
}

func TestVLArrayStrings(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "s", VLStringAtom())
	require.NoError(t, err)
	require.NoError(t, v.Append("héllo"))
	require.NoError(t, v.Append("world"))
	assert.ErrorIs(t, v.Append([]byte("x")), ErrType)

	require.NoError(t, v.SetRow(0, nil, "hÉllo"))
	assert.ErrorIs(t, v.SetRow(1, nil, "wor"), ErrShape)
	assert.ErrorIs(t, v.SetRow(1, nil, "worlds"), ErrShape)
	require.NoError(t, v.SetRow(1, &Range{Start: 0, Stop: 1}, "W"))

	rows, err := v.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"hÉllo", "World"}, rows)
	assert.Equal(t, "irrelevant", v.ByteOrder())
}

func TestVLArrayObjects(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "o", ObjectAtom())
	require.NoError(t, err)
	require.NoError(t, v.Append(map[string]any{"k": "v"}))
	require.NoError(t, v.Append([]any{"a", 2}))
	assert.ErrorIs(t, v.Append(func() {}), ErrType)

	r := reopen(t, f, ModeRead)
	n, err := r.GetNode("/o")
	require.NoError(t, err)
	rows, err := n.(*VLArray).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[any]any{"k": "v"}, rows[0])
	assert.Equal(t, []any{"a", uint64(2)}, rows[1])
}

func TestVLArrayRow(t *testing.T) {
	f, _ := newFile(t)
	v := fillVLArray(t, f, 10)

	row, err := v.Row(2)
	require.NoError(t, err)
	assert.Equal(t, []int32{20, 21}, row)
	row, err = v.Row(-1)
	require.NoError(t, err)
	assert.Equal(t, []int32{}, row)
	row, err = v.Row(-2)
	require.NoError(t, err)
	assert.Equal(t, []int32{80, 81}, row)

	_, err = v.Row(10)
	assert.ErrorIs(t, err, ErrIndex)
	_, err = v.Row(-11)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestVLArrayRead(t *testing.T) {
	f, _ := newFile(t)
	v := fillVLArray(t, f, 10)

	rows, err := v.Read(1, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int32{10}, []int32{40}, []int32{70}}, rows)

	rows, err = v.Read(-3, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int32{70}, []int32{80, 81}, []int32{}}, rows)

	rows, err = v.Read(5, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = v.Read(0, 10, 0)
	assert.ErrorIs(t, err, ErrIndex)

	_, err = ReadRows[int64](v, 0, 1, 1)
	assert.ErrorIs(t, err, ErrType)
}

func TestVLArrayIter(t *testing.T) {
	p := DefaultParameters()
	p.IterBufferRows = 3
	f, _ := newFile(t, WithParameters(p))
	v := fillVLArray(t, f, 10)

	var got []int
	it := v.Iter(0, math.MaxInt, 1)
	assert.Equal(t, -1, it.NRow())
	for it.Next() {
		got = append(got, it.NRow())
		row, err := v.Row(it.NRow())
		require.NoError(t, err)
		assert.Equal(t, row, it.Row())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)

	got = nil
	it = v.Iter(1, -1, 4)
	for it.Next() {
		got = append(got, it.NRow())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int{1, 5}, got)

	it = v.Iter(0, 10, 0)
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrIndex)

	// Rows appended after Iter are not visited.
	it = v.Iter(8, math.MaxInt, 1)
	require.NoError(t, v.Append([]int32{1}))
	n := 0
	for it.Next() {
		n++
	}
	assert.Equal(t, 2, n)

	require.NoError(t, v.Close())
	it = v.Iter(0, 1, 1)
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrClosedNode)
}

func TestVLArraySetRow(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "v", Int64Atom())
	require.NoError(t, err)
	require.NoError(t, v.Append([]int64{1, 2, 3, 4, 5}))
	require.NoError(t, v.Append([]int64{6}))

	require.NoError(t, v.SetRow(0, &Range{Start: 1, Stop: 4, Step: 2}, []int64{20, 40}))
	row, err := v.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 20, 3, 40, 5}, row)

	require.NoError(t, v.SetRow(0, &Range{Start: -2, Stop: 100}, int64(9)))
	row, err = v.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 20, 3, 9, 9}, row)

	require.NoError(t, v.SetRow(-1, nil, []int64{7}))
	row, err = v.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, row)

	require.NoError(t, v.SetRow(0, nil, int64(0)), "a single value fills the row")
	row, err = v.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, row)

	assert.ErrorIs(t, v.SetRow(2, nil, []int64{1}), ErrIndex)
	assert.ErrorIs(t, v.SetRow(1, nil, []int64{1, 2}), ErrShape)
	assert.ErrorIs(t, v.SetRow(0, nil, []int64{1, 2}), ErrShape)
	assert.ErrorIs(t, v.SetRow(0, &Range{Step: -1}, int64(1)), ErrIndex)
	assert.ErrorIs(t, v.SetRow(0, nil, "x"), ErrType)

	r := reopen(t, f, ModeRead)
	n, err := r.GetNode("/v")
	require.NoError(t, err)
	rows, err := n.(*VLArray).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []any{[]int64{0, 0, 0, 0, 0}, []int64{7}}, rows)
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		kb   float64
		want int
	}{
		{1, 5000},
		{100, 5000},
		{101, 10000},
		{1024, 20000},
		{20001, 40000},
		{200001, 50000},
		{2000001, 60000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bufferSize(tt.kb), "%g KB", tt.kb)
	}
}

func TestVLArrayChunkShape(t *testing.T) {
	f, _ := newFile(t)
	v, err := f.CreateVLArray("/", "ints", Int32Atom())
	require.NoError(t, err)
	assert.Equal(t, []int{1250}, v.ChunkShape())

	v, err = f.CreateVLArray("/", "small", Float64Atom(), ExpectedSizeMB(0.01))
	require.NoError(t, err)
	assert.Equal(t, []int{156}, v.ChunkShape())

	v, err = f.CreateVLArray("/", "wide", StringAtom(100000), ExpectedSizeMB(1e6))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, v.ChunkShape())
}

func TestVLArrayFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    Filters
	}{
		{"zlib", Filters{Complevel: 5, Shuffle: true, Fletcher32: true},
			Filters{Complevel: 5, Complib: ComplibZlib, Shuffle: true, Fletcher32: true}},
		{"lz4", Filters{Complevel: 4, Complib: ComplibLZ4},
			Filters{Complevel: 1, Complib: ComplibLZ4}},
		{"fletcher", Filters{Fletcher32: true}, Filters{Fletcher32: true}},
		{"none", Filters{}, Filters{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newFile(t)
			v, err := f.CreateVLArray("/", "v", Uint16Atom(), NodeFilters(tt.filters))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Filters())
			for i := range 50 {
				require.NoError(t, v.Append(make([]uint16, i)))
			}
			_, err = f.CreateVLArray("/", "empty", Uint16Atom(), NodeFilters(tt.filters))
			require.NoError(t, err)

			r := reopen(t, f, ModeRead)
			n, err := r.GetNode("/v")
			require.NoError(t, err)
			rv := n.(*VLArray)
			assert.Equal(t, tt.want, rv.Filters())
			assert.Equal(t, 50, rv.NRows())
			row, err := rv.Row(49)
			require.NoError(t, err)
			assert.Len(t, row, 49)

			n, err = r.GetNode("/empty")
			require.NoError(t, err)
			assert.Equal(t, 0, n.(*VLArray).NRows())
			rows, err := n.(*VLArray).ReadAll()
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestVLArrayMaxShapeFollowsStorage(t *testing.T) {
	f, path := newFile(t)
	plain, err := f.CreateVLArray("/", "plain", Int32Atom())
	require.NoError(t, err)
	packed, err := f.CreateVLArray("/", "packed", Int32Atom(), NodeFilters(Filters{Complevel: 1}))
	require.NoError(t, err)
	for _, v := range []*VLArray{plain, packed} {
		require.NoError(t, v.Append([]int32{1, 2}))
		require.NoError(t, v.Append([]int32{3}))
	}
	require.NoError(t, f.Close())

	h, err := hdf5.Open(path)
	require.NoError(t, err)
	defer h.Close()

	ds, err := h.OpenDataset("/plain")
	require.NoError(t, err)
	assert.Equal(t, message.LayoutContiguous, ds.Layout().Class)
	assert.Equal(t, []uint64{2}, ds.MaxShape(), "contiguous storage cannot grow")

	ds, err = h.OpenDataset("/packed")
	require.NoError(t, err)
	assert.Equal(t, message.LayoutChunked, ds.Layout().Class)
	assert.Equal(t, []uint64{message.Unlimited}, ds.MaxShape())
}
