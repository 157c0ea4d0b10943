package scan

import (
	"encoding/binary"
	"fmt"
	"math"
	e "sigpatch/error"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
	"strings"
)

// DetourKind is the opcode of a rel32 branch.
type DetourKind byte

const (
	Call DetourKind = 0xE8
	Jump DetourKind = 0xE9
)

// DetourLen is the size of a rel32 CALL or JMP.
const DetourLen = 5

func (k DetourKind) String() string {
	switch k {
	case Call:
		return "call"
	case Jump:
		return "jump"
	}
	return fmt.Sprintf("DetourKind(0x%02X)", byte(k))
}

func ParseDetourKind(s string) (DetourKind, error) {
	switch strings.ToLower(s) {
	case "call":
		return Call, nil
	case "jump", "jmp":
		return Jump, nil
	}
	return 0, fmt.Errorf("unknown detour kind %q", s)
}

// Rel32 encodes a CALL or JMP placed at site that reaches target.
func Rel32(kind DetourKind, site, target mem.Address) ([]byte, error) {
	rel := int64(target) - int64(site) - DetourLen
	if rel < math.MinInt32 || rel > math.MaxInt32 {
		return nil, fmt.Errorf("%s from %s: %w", target, site, e.OutOfReach)
	}

	buf := make([]byte, DetourLen)
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint32(buf[1:], uint32(int32(rel)))
	return buf, nil
}

// DetourPattern matches a rel32 branch of one kind and redirects it.
type DetourPattern struct {
	kind     DetourKind
	target   mem.Address
	original *mem.Address

	disp *DisplacementPattern[int32]
	seq  *SequencePattern
	site mem.Address
}

// Detour matches a CALL or JMP rel32 instruction and, when applied, points
// it at target. The destination it had before is stored in original, which
// may be nil.
func Detour(kind DetourKind, target mem.Address, original *mem.Address) *DetourPattern {
	disp := Displacement[int32](nil, 4)
	return &DetourPattern{
		kind:     kind,
		target:   target,
		original: original,
		disp:     disp,
		seq:      Seq(Bytes(int(kind)), disp),
	}
}

// Site returns the address of the latest matched instruction.
func (p *DetourPattern) Site() mem.Address {
	return p.site
}

// Original returns the destination of the latest matched instruction.
func (p *DetourPattern) Original() mem.Address {
	return p.disp.Value()
}

func (p *DetourPattern) Scanner(start mem.Address) Scanner {
	return track(p.seq.Scanner(start), start, func(mem.Range) {
		p.site = start
		if p.original != nil {
			*p.original = p.disp.Value()
		}
	})
}

func (p *DetourPattern) Act(sink *patch.Sink) error {
	data, err := Rel32(p.kind, p.site, p.target)
	if err != nil {
		return err
	}
	return sink.Apply(p.site, data)
}

// EntryDetourPattern overwrites the start of another pattern's match with a
// branch.
type EntryDetourPattern struct {
	inner  Pattern
	kind   DetourKind
	target mem.Address
	match  mem.Range
}

// EntryDetour matches p and, when applied, replaces the first DetourLen
// bytes of the match with a CALL or JMP to target. The match must be at
// least DetourLen bytes long.
func EntryDetour(p Pattern, kind DetourKind, target mem.Address) *EntryDetourPattern {
	return &EntryDetourPattern{inner: p, kind: kind, target: target}
}

func (p *EntryDetourPattern) Match() mem.Range {
	return p.match
}

func (p *EntryDetourPattern) Scanner(start mem.Address) Scanner {
	return track(p.inner.Scanner(start), start, func(r mem.Range) {
		p.match = r
	})
}

func (p *EntryDetourPattern) Act(sink *patch.Sink) error {
	if p.match.Len() < DetourLen {
		return fmt.Errorf("match %s shorter than a detour: %w", p.match, e.ActionFailed)
	}

	data, err := Rel32(p.kind, p.match.First, p.target)
	if err != nil {
		return err
	}
	return sink.Apply(p.match.First, data)
}
