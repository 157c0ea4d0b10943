package mem

import "fmt"

// Address is a location in the address space a Memory describes.
type Address uintptr

// String returns the hexadecimal representation of the address
func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Add offsets the address by a signed amount.
func (a Address) Add(off int64) Address {
	return Address(int64(a) + off)
}

// Range is the half-open byte span [First, Last).
type Range struct {
	First Address
	Last  Address
}

// Span returns the range of size bytes starting at first.
func Span(first Address, size int) Range {
	return Range{First: first, Last: first + Address(size)}
}

func (r Range) Len() int {
	if r.Last <= r.First {
		return 0
	}
	return int(r.Last - r.First)
}

func (r Range) Empty() bool {
	return r.Last <= r.First
}

// Contains reports whether o lies entirely inside r.
func (r Range) Contains(o Range) bool {
	return o.First >= r.First && o.Last <= r.Last
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.First < o.Last && o.First < r.Last
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.First, r.Last)
}

// Reader exposes a live view of memory.
type Reader interface {
	// Slice returns the bytes currently backing r. Writes through the
	// returned slice modify memory directly, so callers must hold a Guard
	// for r before writing.
	Slice(r Range) []byte
}

// Guard releases a protection change made by Memory.Acquire.
type Guard interface {
	Release() error
}

// Memory is the platform adapter the scanner and patch packages are built on.
type Memory interface {
	Reader

	// Segments returns the executable code segments of module, or of the
	// calling image when module is empty.
	Segments(module string) ([]Range, error)

	// Acquire makes r readable, writable and executable until the returned
	// Guard is released.
	Acquire(r Range) (Guard, error)

	// Flush makes subsequently fetched instructions reflect bytes just
	// written into r.
	Flush(r Range)
}

type guardFunc func() error

func (g guardFunc) Release() error {
	return g()
}
