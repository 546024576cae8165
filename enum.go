package serac

import "fmt"

// enumBatchSize is how many descriptors one driver call pulls.
const enumBatchSize = 50

// FilterQuery narrows a filter enumeration. The zero value matches every
// filter at every layer.
type FilterQuery struct {
	Layer Layer
}

// FilterIterator walks installed filters lazily, pulling batches from the
// driver. Use it like sql.Rows:
//
//	it := s.Filters(serac.FilterQuery{})
//	defer it.Close()
//	for it.Next() {
//		info := it.Item()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type FilterIterator struct {
	s      *Session
	q      FilterQuery
	h      EnumHandle
	opened bool
	done   bool
	batch  []FilterInfo
	pos    int
	cur    *FilterInfo
	err    error
}

// Next advances to the next filter. It returns false when the enumeration
// is exhausted or failed; Err distinguishes the two.
func (it *FilterIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if it.pos < len(it.batch) {
		it.cur = &it.batch[it.pos]
		it.pos++
		return true
	}

	it.s.mu.Lock()
	defer it.s.mu.Unlock()
	if it.s.closed {
		it.fail(fmt.Errorf("enumerate filters: %w", ErrSessionClosed))
		return false
	}
	if !it.opened {
		h, err := it.s.drv.OpenFilterEnum(it.q)
		if err != nil {
			it.fail(mapEngineError("enumerate filters", err))
			return false
		}
		it.h = h
		it.opened = true
	}
	batch, err := it.s.drv.EnumFilters(it.h, enumBatchSize)
	if err != nil {
		it.fail(mapEngineError("enumerate filters", err))
		return false
	}
	if len(batch) == 0 {
		it.done = true
		it.closeLocked()
		return false
	}
	it.batch = batch
	it.pos = 1
	it.cur = &it.batch[0]
	return true
}

// Item returns the filter Next advanced to.
func (it *FilterIterator) Item() *FilterInfo {
	return it.cur
}

// Err returns the first error the iterator hit, if any.
func (it *FilterIterator) Err() error {
	return it.err
}

// Close releases the driver-side enumeration. It is idempotent and safe to
// defer immediately.
func (it *FilterIterator) Close() error {
	it.s.mu.Lock()
	defer it.s.mu.Unlock()
	it.done = true
	return it.closeLocked()
}

func (it *FilterIterator) fail(err error) {
	it.err = err
	it.done = true
	it.closeLocked()
}

// closeLocked is called with s.mu held.
func (it *FilterIterator) closeLocked() error {
	if !it.opened {
		return nil
	}
	it.opened = false
	if it.s.closed {
		return nil
	}
	if err := it.s.drv.CloseFilterEnum(it.h); err != nil {
		return mapEngineError("close filter enumeration", err)
	}
	return nil
}

// SubLayerIterator walks installed sublayers lazily, like FilterIterator.
type SubLayerIterator struct {
	s      *Session
	h      EnumHandle
	opened bool
	done   bool
	batch  []SubLayer
	pos    int
	cur    *SubLayer
	err    error
}

// Next advances to the next sublayer.
func (it *SubLayerIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if it.pos < len(it.batch) {
		it.cur = &it.batch[it.pos]
		it.pos++
		return true
	}

	it.s.mu.Lock()
	defer it.s.mu.Unlock()
	if it.s.closed {
		it.fail(fmt.Errorf("enumerate sublayers: %w", ErrSessionClosed))
		return false
	}
	if !it.opened {
		h, err := it.s.drv.OpenSubLayerEnum()
		if err != nil {
			it.fail(mapEngineError("enumerate sublayers", err))
			return false
		}
		it.h = h
		it.opened = true
	}
	batch, err := it.s.drv.EnumSubLayers(it.h, enumBatchSize)
	if err != nil {
		it.fail(mapEngineError("enumerate sublayers", err))
		return false
	}
	if len(batch) == 0 {
		it.done = true
		it.closeLocked()
		return false
	}
	it.batch = batch
	it.pos = 1
	it.cur = &it.batch[0]
	return true
}

// Item returns the sublayer Next advanced to.
func (it *SubLayerIterator) Item() *SubLayer {
	return it.cur
}

// Err returns the first error the iterator hit, if any.
func (it *SubLayerIterator) Err() error {
	return it.err
}

// Close releases the driver-side enumeration. Idempotent.
func (it *SubLayerIterator) Close() error {
	it.s.mu.Lock()
	defer it.s.mu.Unlock()
	it.done = true
	return it.closeLocked()
}

func (it *SubLayerIterator) fail(err error) {
	it.err = err
	it.done = true
	it.closeLocked()
}

func (it *SubLayerIterator) closeLocked() error {
	if !it.opened {
		return nil
	}
	it.opened = false
	if it.s.closed {
		return nil
	}
	if err := it.s.drv.CloseSubLayerEnum(it.h); err != nil {
		return mapEngineError("close sublayer enumeration", err)
	}
	return nil
}
