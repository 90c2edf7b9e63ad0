package hdf5

import (
	"errors"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// writeLegacy builds a file in the oldest format:
//
//	/            @TITLE="legacy"
//	/data        int32[2,3] @units="m"
//	/grp/back    -> /data
//	/grp/values  float64[2]
//	/link        -> /grp/values
func writeLegacy(t *testing.T) *File {
	t.Helper()
	f := newFixture()

	i32 := message.Integer(4, true)
	ints := mustEncode(t, i32, []int32{0, 1, 2, 3, 4, 5})
	data := f.headerV1(t,
		message.Simple([]uint64{2, 3}, nil),
		i32,
		message.Contiguous(f.put(ints), uint64(len(ints))),
		mustAttr(t, "units", "m"),
	)

	f64 := message.Float(8)
	floats := mustEncode(t, f64, []float64{1.5, 2.5})
	values := f.headerV1(t,
		message.Simple([]uint64{2}, nil),
		f64,
		message.Contiguous(f.put(floats), uint64(len(floats))),
	)

	grp := f.symbolGroup(t, []symbol{
		{name: "back", soft: "/data"},
		{name: "values", addr: values},
	})
	root := f.symbolGroup(t, []symbol{
		{name: "data", addr: data},
		{name: "grp", addr: grp},
		{name: "link", soft: "/grp/values"},
	}, mustAttr(t, "TITLE", "legacy"))
	f.superblockV0(root)
	return f.open(t)
}

func TestReadVersion0File(t *testing.T) {
	f := writeLegacy(t)
	if f.Version() != 0 {
		t.Errorf("superblock version = %d", f.Version())
	}

	members, err := f.Root().Members()
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"data", "grp", "link"}) {
		t.Errorf("members = %v", members)
	}
	for name, kind := range map[string]ObjectKind{"data": KindDataset, "grp": KindGroup, "link": KindDataset} {
		got, err := f.Root().Kind(name)
		if err != nil || got != kind {
			t.Errorf("Kind(%s) = %v, %v", name, got, err)
		}
	}
	if _, err := f.Root().Kind("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Kind(nope) err = %v", err)
	}

	ds, err := f.OpenDataset("/data")
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	var ints []int32
	if err := ds.Read(&ints); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(ints, []int32{0, 1, 2, 3, 4, 5}) || !reflect.DeepEqual(ds.Shape(), []uint64{2, 3}) {
		t.Errorf("data = %v shape %v", ints, ds.Shape())
	}

	for _, path := range []string{"/grp/values", "/link"} {
		vals, err := f.OpenDataset(path)
		if err != nil {
			t.Fatalf("OpenDataset(%s): %v", path, err)
		}
		var got []float64
		if err := vals.Read(&got); err != nil || !reflect.DeepEqual(got, []float64{1.5, 2.5}) {
			t.Errorf("%s = %v, %v", path, got, err)
		}
	}
	back, err := f.OpenDataset("/grp/back")
	if err != nil || back.NumElements() != 6 {
		t.Errorf("/grp/back: %v", err)
	}
}

func TestReadVersion0Attributes(t *testing.T) {
	f := writeLegacy(t)
	for path, want := range map[string]any{"/@TITLE": "legacy", "/data@units": "m"} {
		got, err := f.ReadAttr(path)
		if err != nil || !reflect.DeepEqual(got, want) {
			t.Errorf("ReadAttr(%s) = %#v, %v; want %#v", path, got, err, want)
		}
	}
}

func TestWalkVersion0File(t *testing.T) {
	f := writeLegacy(t)
	var visited []string
	err := Walk(f.Root(), func(path string, obj any, err error) error {
		if err != nil {
			return err
		}
		visited = append(visited, path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"/", "/data", "/grp", "/grp/back", "/grp/values", "/link"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v", visited)
	}
}

func TestExternalLinksAreNotFollowed(t *testing.T) {
	f := newFixture()
	i32 := message.Integer(4, true)
	vals := mustEncode(t, i32, []int32{7})
	ds := f.headerV2(t, message.Simple([]uint64{1}, nil), i32, message.Contiguous(f.put(vals), 4))

	// version 1, link type present, external link "ext" to other.h5:/x
	target := "\x00other.h5\x00/x\x00"
	ext := append([]byte{1, 0x08, byte(message.LinkExternal), 3}, "ext"...)
	ext = append(ext, byte(len(target)), 0)
	ext = append(ext, target...)

	root := f.headerV2(t,
		&message.LinkInfo{},
		&message.GroupInfo{},
		message.HardLink("local", ds),
		rawMessage{typ: message.TypeLink, data: ext},
	)
	f.superblockV3(t, root)
	file := f.open(t)

	members, err := file.Root().Members()
	if err != nil || !reflect.DeepEqual(members, []string{"local", "ext"}) {
		t.Errorf("members = %v, %v", members, err)
	}
	if _, err := file.Root().Kind("ext"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Kind(ext) err = %v, want ErrUnsupported", err)
	}
	if _, err := file.OpenDataset("/ext"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("OpenDataset(/ext) err = %v, want ErrUnsupported", err)
	}
	if _, err := file.OpenDataset("/local"); err != nil {
		t.Errorf("OpenDataset(/local): %v", err)
	}
}
