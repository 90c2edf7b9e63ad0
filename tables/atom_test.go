package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomSizes(t *testing.T) {
	tests := []struct {
		atom     Atom
		itemsize int
		atomsize int
		str      string
	}{
		{BoolAtom(), 1, 1, "bool"},
		{Int16Atom(), 2, 2, "int16"},
		{Uint32Atom().WithShape(2, 3), 4, 24, "uint32[2 3]"},
		{Float64Atom(), 8, 8, "float64"},
		{StringAtom(5), 5, 5, "string[5]"},
		{StringAtom(0), 1, 1, "string[1]"},
		{VLStringAtom(), 1, 1, "vlstring"},
		{ObjectAtom(), 1, 1, "object"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.itemsize, tt.atom.ItemSize)
			assert.Equal(t, tt.atomsize, tt.atom.AtomSize())
			assert.Equal(t, tt.str, tt.atom.String())
		})
	}
	assert.True(t, VLStringAtom().IsSpecial())
	assert.True(t, ObjectAtom().IsSpecial())
	assert.False(t, Int8Atom().IsSpecial())
}

func TestAtomValidate(t *testing.T) {
	f, _ := newFile(t)
	_, err := f.CreateVLArray("/", "zero", Int32Atom().WithShape(2, 0))
	assert.ErrorIs(t, err, ErrShape)
	_, err = f.CreateVLArray("/", "kind", Atom{Kind: Kind(99), ItemSize: 1})
	assert.ErrorIs(t, err, ErrType)
	_, err = f.CreateVLArray("/", "size", Atom{Kind: KindInt32})
	assert.ErrorIs(t, err, ErrType)
	assert.False(t, f.Root().Contains("zero"))
}

func TestAtomFromDatatype(t *testing.T) {
	atoms := []Atom{
		BoolAtom(), Int8Atom(), Int16Atom(), Int32Atom(), Int64Atom(),
		Uint8Atom(), Uint16Atom(), Uint32Atom(), Uint64Atom(),
		Float32Atom(), Float64Atom(), StringAtom(7),
		Int16Atom().WithShape(3), Float32Atom().WithShape(2, 2),
	}
	for _, a := range atoms {
		t.Run(a.String(), func(t *testing.T) {
			got, err := atomFromDatatype(a.datatype(), "")
			require.NoError(t, err)
			assert.Equal(t, a, got)
		})
	}

	got, err := atomFromDatatype(Uint8Atom().datatype(), FlavorVLString)
	require.NoError(t, err)
	assert.Equal(t, VLStringAtom(), got)
	got, err = atomFromDatatype(Uint8Atom().datatype(), FlavorObject)
	require.NoError(t, err)
	assert.Equal(t, ObjectAtom(), got)
}

func TestObjectCodec(t *testing.T) {
	b, err := marshalObject("text")
	require.NoError(t, err)
	v, err := unmarshalObject(b)
	require.NoError(t, err)
	assert.Equal(t, "text", v)

	b, err = marshalObject([]any{1, "x"})
	require.NoError(t, err)
	v, err = unmarshalObject(b)
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), "x"}, v)

	v, err = unmarshalObject(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = marshalObject(make(chan int))
	assert.ErrorIs(t, err, ErrType)
}

func TestFiltersNormalize(t *testing.T) {
	assert.Equal(t, Filters{Fletcher32: true}, Filters{Complib: ComplibLZ4, Shuffle: true, Fletcher32: true}.normalize())
	assert.Equal(t, Filters{Complevel: 5, Complib: ComplibZlib}, Filters{Complevel: 5}.normalize())
	assert.Equal(t, Filters{Complevel: 1, Complib: ComplibLZ4}, Filters{Complevel: 9, Complib: ComplibLZ4}.normalize())
	assert.Nil(t, Filters{}.pipeline(4))

	fp := Filters{Complevel: 3, Shuffle: true, Fletcher32: true}.pipeline(8)
	require.NotNil(t, fp)
	assert.Equal(t, Filters{Complevel: 3, Complib: ComplibZlib, Shuffle: true, Fletcher32: true}, filtersFromPipeline(fp))

	assert.Error(t, Filters{Complevel: -1}.validate())
	assert.Error(t, Filters{Complevel: 1, Complib: "bzip2"}.validate())
	assert.Equal(t, `Filters(complevel=0, complib="", shuffle=false, fletcher32=false)`, Filters{}.String())
}
