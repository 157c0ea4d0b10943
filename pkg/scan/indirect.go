package scan

import (
	"golang.org/x/exp/constraints"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
)

// IndirectPattern matches a relative operand and, when applied, writes
// fixed bytes at the address the operand refers to.
type IndirectPattern[D constraints.Signed] struct {
	*DisplacementPattern[D]
	data []byte
}

// WriteIndirect matches a displacement of sizeof(D) bytes, resolved as in
// Displacement, and writes data at the resolved address.
func WriteIndirect[D constraints.Signed](offset int, data []byte) *IndirectPattern[D] {
	return &IndirectPattern[D]{
		DisplacementPattern: Displacement[D](nil, offset),
		data:                append([]byte(nil), data...),
	}
}

func (p *IndirectPattern[D]) Act(sink *patch.Sink) error {
	return sink.Apply(p.Value(), p.data)
}

// AssignPattern matches a relative operand and, when applied, assigns a
// typed value at the address the operand refers to.
type AssignPattern[D constraints.Signed, T any] struct {
	*DisplacementPattern[D]
	value T
}

// AssignIndirect matches a displacement of sizeof(D) bytes, resolved as in
// Displacement, and assigns value at the resolved address.
func AssignIndirect[D constraints.Signed, T any](offset int, value T) *AssignPattern[D, T] {
	return &AssignPattern[D, T]{
		DisplacementPattern: Displacement[D](nil, offset),
		value:               value,
	}
}

func (p *AssignPattern[D, T]) Act(sink *patch.Sink) error {
	return patch.AssignInto(sink, p.Value(), p.value)
}

// Target returns the address resolved by the latest match.
func (p *AssignPattern[D, T]) Target() mem.Address {
	return p.Value()
}
