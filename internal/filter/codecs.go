package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// Deflate is the zlib compression filter. Client data: [level].
type Deflate struct {
	level int
}

func NewDeflate(cd []uint32) *Deflate {
	level := zlib.DefaultCompression
	if len(cd) > 0 && cd[0] <= 9 {
		level = int(cd[0])
	}
	return &Deflate{level: level}
}

func (f *Deflate) ID() uint16 { return message.FilterDeflate }

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// Shuffle groups byte i of every element together. Client data: [element size].
type Shuffle struct {
	size int
}

func NewShuffle(cd []uint32) *Shuffle {
	size := 1
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return &Shuffle{size: size}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	n := len(input) / f.size
	if f.size <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.size; j++ {
			out[j*n+i] = input[i*f.size+j]
		}
	}
	// Trailing bytes that do not fill an element are copied as-is.
	copy(out[n*f.size:], input[n*f.size:])
	return out, nil
}

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	n := len(input) / f.size
	if f.size <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.size; j++ {
			out[i*f.size+j] = input[j*n+i]
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out, nil
}

// Fletcher32 appends a 4-byte checksum on encode and verifies it on decode.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (Fletcher32) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], binpkg.Fletcher32(input))
	return out, nil
}

func (Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: chunk too short")
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(data):])
	if sum := binpkg.Fletcher32(data); sum != stored {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored %#08x, computed %#08x)", stored, sum)
	}
	return data, nil
}

// LZ4 implements filter 32004. The encoded chunk is a big-endian header of
// original size (8 bytes) and block size (4 bytes), followed by blocks each
// prefixed with their compressed size. A block whose compressed size equals
// its raw size is stored uncompressed.
type LZ4 struct {
	blockSize int
}

const defaultLZ4Block = 1 << 30

func NewLZ4(cd []uint32) *LZ4 {
	bs := defaultLZ4Block
	if len(cd) > 0 && cd[0] > 0 {
		bs = int(cd[0])
	}
	return &LZ4{blockSize: bs}
}

func (f *LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	bs := f.blockSize
	if bs > len(input) {
		bs = len(input)
	}
	out := make([]byte, 12, 12+lz4.CompressBlockBound(len(input))+4)
	binary.BigEndian.PutUint64(out[0:], uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:], uint32(bs))

	dst := make([]byte, lz4.CompressBlockBound(bs))
	for off := 0; off < len(input); off += bs {
		end := min(off+bs, len(input))
		block := input[off:end]
		n, err := lz4.CompressBlock(block, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		var size [4]byte
		if n == 0 || n >= len(block) {
			binary.BigEndian.PutUint32(size[:], uint32(len(block)))
			out = append(out, size[:]...)
			out = append(out, block...)
			continue
		}
		binary.BigEndian.PutUint32(size[:], uint32(n))
		out = append(out, size[:]...)
		out = append(out, dst[:n]...)
	}
	return out, nil
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: header truncated")
	}
	total := binary.BigEndian.Uint64(input[0:])
	bs := int(binary.BigEndian.Uint32(input[8:]))
	if bs == 0 && total > 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}

	out := make([]byte, total)
	pos := 12
	for off := 0; off < int(total); off += bs {
		if pos+4 > len(input) {
			return nil, fmt.Errorf("lz4: block header truncated")
		}
		csize := int(binary.BigEndian.Uint32(input[pos:]))
		pos += 4
		if pos+csize > len(input) {
			return nil, fmt.Errorf("lz4: block truncated")
		}
		want := min(bs, int(total)-off)
		src := input[pos : pos+csize]
		pos += csize
		if csize == want {
			copy(out[off:], src)
			continue
		}
		n, err := lz4.UncompressBlock(src, out[off:off+want])
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != want {
			return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", n, want)
		}
	}
	return out, nil
}
