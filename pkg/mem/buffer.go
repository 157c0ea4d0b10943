package mem

import (
	"fmt"
	e "sigpatch/error"
)

// Buffer is a Memory backed by a byte slice mapped at a fixed base address.
// It has no real page protection: ranges marked with Lock refuse Acquire,
// everything else is always writable.
type Buffer struct {
	base     Address
	data     []byte
	segments map[string][]Range
	locked   []Range
	flushes  int
	held     int
}

// NewBuffer maps data at base. The whole buffer is registered as the single
// executable segment of the calling image until AddSegment is used.
func NewBuffer(base Address, data []byte) *Buffer {
	return &Buffer{
		base:     base,
		data:     data,
		segments: make(map[string][]Range),
	}
}

func (b *Buffer) Base() Address {
	return b.base
}

// Bounds returns the range covered by the buffer.
func (b *Buffer) Bounds() Range {
	return Span(b.base, len(b.data))
}

// Bytes returns the backing slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// AddSegment registers r as an executable segment of module ("" for the
// calling image).
func (b *Buffer) AddSegment(module string, r Range) error {
	if !b.Bounds().Contains(r) {
		return fmt.Errorf("segment %s outside buffer %s", r, b.Bounds())
	}
	b.segments[module] = append(b.segments[module], r)
	return nil
}

// Lock makes Acquire fail for any range overlapping r.
func (b *Buffer) Lock(r Range) {
	b.locked = append(b.locked, r)
}

// Unlock removes every lock overlapping r.
func (b *Buffer) Unlock(r Range) {
	kept := b.locked[:0]
	for _, l := range b.locked {
		if !l.Overlaps(r) {
			kept = append(kept, l)
		}
	}
	b.locked = kept
}

// Flushes returns how many times Flush has been called.
func (b *Buffer) Flushes() int {
	return b.flushes
}

// Held returns the number of guards acquired and not yet released.
func (b *Buffer) Held() int {
	return b.held
}

func (b *Buffer) Segments(module string) ([]Range, error) {
	segs, ok := b.segments[module]
	if !ok {
		if module != "" {
			return nil, fmt.Errorf("%q: %w", module, e.ModuleNotFound)
		}
		return []Range{b.Bounds()}, nil
	}

	out := make([]Range, len(segs))
	copy(out, segs)
	return out, nil
}

func (b *Buffer) Acquire(r Range) (Guard, error) {
	if !b.Bounds().Contains(r) {
		return nil, fmt.Errorf("%s not mapped: %w", r, e.ProtectionFailed)
	}
	for _, l := range b.locked {
		if l.Overlaps(r) {
			return nil, fmt.Errorf("%s is locked: %w", r, e.ProtectionFailed)
		}
	}

	b.held++
	return guardFunc(func() error {
		b.held--
		return nil
	}), nil
}

func (b *Buffer) Flush(r Range) {
	b.flushes++
}

func (b *Buffer) Slice(r Range) []byte {
	bounds := b.Bounds()
	if r.First < bounds.First {
		r.First = bounds.First
	}
	if r.Last > bounds.Last {
		r.Last = bounds.Last
	}
	if r.Empty() {
		return nil
	}

	lo := int(r.First - b.base)
	hi := int(r.Last - b.base)
	return b.data[lo:hi:hi]
}
