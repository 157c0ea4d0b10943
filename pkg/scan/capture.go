package scan

import (
	"golang.org/x/exp/constraints"
	"sigpatch/pkg/mem"
	"unsafe"
)

// Captures copy what they matched into a destination pointer. A nil
// destination is allowed: the value is then only kept by the pattern and
// available through Value. When a pattern matches more than once, the last
// attempt wins, which for a successful scan is the reported match.

// IntegralPattern matches sizeof(T) bytes and decodes them as a T in host
// byte order.
type IntegralPattern[T constraints.Integer] struct {
	dst   *T
	value T
}

func Integral[T constraints.Integer](dst *T) *IntegralPattern[T] {
	return &IntegralPattern[T]{dst: dst}
}

func (p *IntegralPattern[T]) Value() T {
	return p.value
}

func (p *IntegralPattern[T]) Scanner(start mem.Address) Scanner {
	return collect(sizeOf[T](), func(buf []byte) {
		p.value = decode[T](buf)
		if p.dst != nil {
			*p.dst = p.value
		}
	})
}

// AddressPattern is zero-width and records the address it was started at.
type AddressPattern struct {
	dst   *mem.Address
	value mem.Address
}

func Here(dst *mem.Address) *AddressPattern {
	return &AddressPattern{dst: dst}
}

func (p *AddressPattern) Value() mem.Address {
	return p.value
}

func (p *AddressPattern) Scanner(start mem.Address) Scanner {
	return ScannerFunc(func(byte) Result {
		p.value = start
		if p.dst != nil {
			*p.dst = start
		}
		return AcceptNoConsume
	})
}

// PointerPattern matches sizeof(T) bytes holding an absolute address.
type PointerPattern[T constraints.Integer] struct {
	dst   *mem.Address
	value mem.Address
}

func Pointer[T constraints.Integer](dst *mem.Address) *PointerPattern[T] {
	return &PointerPattern[T]{dst: dst}
}

func (p *PointerPattern[T]) Value() mem.Address {
	return p.value
}

func (p *PointerPattern[T]) Scanner(start mem.Address) Scanner {
	return collect(sizeOf[T](), func(buf []byte) {
		p.value = mem.Address(uintptr(decode[T](buf)))
		if p.dst != nil {
			*p.dst = p.value
		}
	})
}

// DisplacementPattern matches a signed relative operand of sizeof(D) bytes
// and resolves it to start + offset + displacement, where start is the
// address of the operand itself. For an operand that ends its instruction,
// offset is the operand size, which yields x86 rel8/rel16/rel32 semantics.
type DisplacementPattern[D constraints.Signed] struct {
	dst    *mem.Address
	offset int
	value  mem.Address
}

func Displacement[D constraints.Signed](dst *mem.Address, offset int) *DisplacementPattern[D] {
	return &DisplacementPattern[D]{dst: dst, offset: offset}
}

func (p *DisplacementPattern[D]) Value() mem.Address {
	return p.value
}

func (p *DisplacementPattern[D]) Scanner(start mem.Address) Scanner {
	return collect(sizeOf[D](), func(buf []byte) {
		p.value = start.Add(int64(p.offset) + int64(decode[D](buf)))
		if p.dst != nil {
			*p.dst = p.value
		}
	})
}

// collect accepts after n bytes of any value and hands them to done.
func collect(n int, done func(buf []byte)) Scanner {
	buf := make([]byte, 0, n)
	return ScannerFunc(func(b byte) Result {
		buf = append(buf, b)
		if len(buf) < n {
			return Continue
		}
		done(buf)
		return Accept
	})
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// decode reinterprets buf as a T laid out in host byte order.
func decode[T constraints.Integer](buf []byte) T {
	var v T
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v)), buf)
	return v
}
