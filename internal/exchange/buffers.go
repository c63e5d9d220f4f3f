package exchange

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"go-plate-recognizer/internal/logger"
)

// DefaultCapacity is the size of each text buffer, terminator included.
const DefaultCapacity = 20

// Entry is a harvested string together with the engine index it came from.
type Entry struct {
	Index int
	Text  string
}

// BufferSet is a scoped set of n text buffers. The zero value is not usable.
type BufferSet struct {
	alloc    Allocator
	owned    [][]byte
	slots    [][]byte
	capacity int
	released bool
}

// Allocate obtains n buffers of the given capacity. If any allocation fails, the
// buffers already obtained are freed before the error is returned.
func Allocate(alloc Allocator, n, capacity int) (*BufferSet, error) {
	if n < 0 || capacity <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d x %d", ErrAllocation, n, capacity)
	}
	owned := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		buf, err := alloc.Alloc(capacity)
		if err != nil || len(buf) < capacity {
			rollback := freeAll(alloc, owned)
			if err == nil {
				err = fmt.Errorf("short buffer: %d bytes", len(buf))
			}
			return nil, fmt.Errorf("%w at index %d of %d: %w", ErrAllocation, i, n, multierr.Append(err, rollback))
		}
		owned = append(owned, buf[:capacity])
	}
	slots := make([][]byte, n)
	copy(slots, owned)
	return &BufferSet{alloc: alloc, owned: owned, slots: slots, capacity: capacity}, nil
}

// With allocates a set, runs fn and releases the set whatever fn returns.
func With(alloc Allocator, n, capacity int, fn func(*BufferSet) error) (err error) {
	set, err := Allocate(alloc, n, capacity)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, set.Release())
	}()
	return fn(set)
}

// Len returns the number of buffers in the set.
func (s *BufferSet) Len() int {
	return len(s.owned)
}

// Capacity returns the size of each buffer.
func (s *BufferSet) Capacity() int {
	return s.capacity
}

// Slots is the view lent to the engine. A slot set to nil means "no candidate";
// the owned buffers stay reachable for Release.
func (s *BufferSet) Slots() [][]byte {
	return s.slots
}

// Harvest decodes entries [0, count) as NUL-terminated UTF-8 strings. Nil slots are
// skipped; invalid UTF-8 is logged and skipped. Empty strings are kept.
func (s *BufferSet) Harvest(count int) []Entry {
	count = min(count, len(s.slots))
	out := make([]Entry, 0, max(count, 0))
	for i := 0; i < count; i++ {
		buf := s.slots[i]
		if buf == nil {
			continue
		}
		if n := bytes.IndexByte(buf, 0); n >= 0 {
			buf = buf[:n]
		}
		if !utf8.Valid(buf) {
			logger.WithFields(logrus.Fields{
				"index": i,
				"bytes": fmt.Sprintf("%x", buf),
			}).Warn("skipping engine text with invalid encoding")
			continue
		}
		out = append(out, Entry{Index: i, Text: string(buf)})
	}
	return out
}

// Release frees every owned buffer exactly once. Later calls do nothing.
func (s *BufferSet) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true
	err := freeAll(s.alloc, s.owned)
	s.owned = nil
	s.slots = nil
	return err
}

// Released reports whether Release has run.
func (s *BufferSet) Released() bool {
	return s.released
}

func freeAll(alloc Allocator, bufs [][]byte) error {
	var err error
	for _, buf := range bufs {
		err = multierr.Append(err, alloc.Free(buf))
	}
	return err
}
