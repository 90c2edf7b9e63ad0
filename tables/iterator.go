package tables

// RowIterator reads the rows of a VLArray in buffered batches.
//
//	it := v.Iter(0, math.MaxInt, 1)
//	for it.Next() {
//	    fmt.Println(it.NRow(), it.Row())
//	}
//	if err := it.Err(); err != nil {
//	    return err
//	}
type RowIterator struct {
	v                 *VLArray
	start, stop, step int
	next              int

	buf  []any
	pos  int
	row  any
	nrow int
	err  error
}

// Iter returns an iterator over the rows from start to stop by step,
// with the bounds of Read. The bounds are fixed when Iter is called.
func (v *VLArray) Iter(start, stop, step int) *RowIterator {
	it := &RowIterator{v: v, nrow: -1}
	if err := v.rlock(); err != nil {
		it.err = err
		return it
	}
	defer v.file.mu.RUnlock()
	it.start, it.stop, it.step, it.err = rowRange(start, stop, step, v.obj.nrows())
	it.next = it.start
	return it
}

// Next advances to the next row. It returns false at the end or on error.
func (it *RowIterator) Next() bool {
	if it.err != nil || it.next >= it.stop {
		return false
	}
	if it.pos >= len(it.buf) {
		if !it.fill() {
			return false
		}
	}
	it.row = it.buf[it.pos]
	it.buf[it.pos] = nil
	it.pos++
	it.nrow = it.next
	it.next += it.step
	return true
}

func (it *RowIterator) fill() bool {
	v := it.v
	if it.err = v.rlock(); it.err != nil {
		return false
	}
	defer v.file.mu.RUnlock()
	n := v.file.params.IterBufferRows
	stop := min(it.next+it.step*n, it.stop)
	it.buf, it.err = v.readLocked(it.next, stop, it.step)
	it.pos = 0
	return it.err == nil && len(it.buf) > 0
}

// Row returns the current row.
func (it *RowIterator) Row() any {
	return it.row
}

// NRow returns the index of the current row, -1 before the first call to
// Next.
func (it *RowIterator) NRow() int {
	return it.nrow
}

// Err returns the error that stopped the iteration, if any.
func (it *RowIterator) Err() error {
	return it.err
}
