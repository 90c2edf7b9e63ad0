package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// Signature is the 8-byte HDF5 format signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the file-level metadata of an HDF5 file.
type Superblock struct {
	Version              uint8
	OffsetSize           uint8
	LengthSize           uint8
	FileConsistencyFlags uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Symbol-table B-tree fan-out, versions 0 and 1 only.
	GroupLeafK     uint16
	GroupInternalK uint16

	// FileOffset is where the signature was found.
	FileOffset int64
}

// New returns a version 3 superblock with 8-byte offsets and lengths.
func New(rootAddr, eof uint64) *Superblock {
	return &Superblock{
		Version:          3,
		OffsetSize:       8,
		LengthSize:       8,
		ExtensionAddress: binpkg.Undefined(8),
		EOFAddress:       eof,
		RootGroupAddress: rootAddr,
	}
}

// Read locates and parses the superblock.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, 9)
	for _, off := range searchOffsets {
		if _, err := r.ReadAt(sig, off); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if !bytes.Equal(sig[:8], Signature) {
			continue
		}
		var (
			sb  *Superblock
			err error
		)
		switch sig[8] {
		case 0, 1:
			sb, err = readV0(r, off)
		case 2, 3:
			sb, err = readV2(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sig[8])
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// readV0 parses a version 0 or 1 superblock. The root group is named by a
// symbol table entry at the end of the block.
func readV0(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 24)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	osize, lsize := int(head[13]), int(head[14])
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: osize, LengthSize: lsize}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, osize, lsize)
	}

	start := int64(24)
	if head[8] == 1 {
		start += 4 // indexed storage K and reserved
	}
	// base, free space, EOF and driver info addresses, then the root
	// entry's link name offset and object header address.
	buf := make([]byte, 6*osize)
	if _, err := r.ReadAt(buf, off+start); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	addr := func(i int) uint64 {
		return binpkg.DecodeUint(buf[i*osize:], osize, binary.LittleEndian)
	}
	return &Superblock{
		Version:              head[8],
		OffsetSize:           head[13],
		LengthSize:           head[14],
		FileConsistencyFlags: head[20],
		BaseAddress:          addr(0),
		ExtensionAddress:     binpkg.Undefined(osize),
		EOFAddress:           addr(2),
		RootGroupAddress:     addr(5),
		GroupLeafK:           binary.LittleEndian.Uint16(head[16:]),
		GroupInternalK:       binary.LittleEndian.Uint16(head[18:]),
	}, nil
}

func readV2(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	osize := int(head[9])
	if osize != 2 && osize != 4 && osize != 8 {
		return nil, fmt.Errorf("%w: offset size %d", ErrInvalidSuperblock, osize)
	}

	buf := make([]byte, 12+4*osize+4)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	body := buf[:len(buf)-4]
	stored := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if stored != binpkg.Lookup3Checksum(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}

	addr := func(i int) uint64 {
		return binpkg.DecodeUint(buf[12+i*osize:], osize, binary.LittleEndian)
	}
	return &Superblock{
		Version:              head[8],
		OffsetSize:           head[9],
		LengthSize:           head[10],
		FileConsistencyFlags: head[11],
		BaseAddress:          addr(0),
		ExtensionAddress:     addr(1),
		EOFAddress:           addr(2),
		RootGroupAddress:     addr(3),
	}, nil
}

// Config returns the binary configuration implied by the superblock.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Size is the encoded size of the superblock in bytes.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}

// Write encodes the superblock at the writer's position. Only versions 2
// and 3 are written.
func (sb *Superblock) Write(w *binpkg.Writer) error {
	if sb.Version < 2 {
		return fmt.Errorf("%w: cannot write version %d", ErrUnsupportedVersion, sb.Version)
	}
	var buf binpkg.Buffer
	bw := binpkg.NewWriter(&buf, sb.Config())

	bw.WriteBytes(Signature)
	bw.WriteUint8(sb.Version)
	bw.WriteUint8(sb.OffsetSize)
	bw.WriteUint8(sb.LengthSize)
	bw.WriteUint8(sb.FileConsistencyFlags)
	for _, a := range []uint64{sb.BaseAddress, sb.ExtensionAddress, sb.EOFAddress, sb.RootGroupAddress} {
		bw.WriteOffset(a)
	}
	if err := bw.Err(); err != nil {
		return fmt.Errorf("encoding superblock: %w", err)
	}
	bw.WriteUint32(binpkg.Lookup3Checksum(buf.Bytes()))
	if err := bw.Err(); err != nil {
		return fmt.Errorf("encoding superblock: %w", err)
	}

	return w.WriteBytes(buf.Bytes())
}
