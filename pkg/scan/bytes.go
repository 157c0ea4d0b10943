package scan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sigpatch/pkg/mem"
	"strings"
)

// Any is the wildcard element of a byte pattern. Every negative value works
// as a wildcard.
const Any = -1

// BytesPattern matches a fixed-length run of bytes, some of which may be
// wildcards.
type BytesPattern struct {
	elems []int16
}

// Bytes builds a byte pattern. Negative values match any byte; values above
// 0xFF panic.
func Bytes(vals ...int) *BytesPattern {
	elems := make([]int16, len(vals))
	for i, v := range vals {
		switch {
		case v < 0:
			elems[i] = Any
		case v > 0xFF:
			panic(fmt.Sprintf("scan: byte value %d out of range at index %d", v, i))
		default:
			elems[i] = int16(v)
		}
	}
	return &BytesPattern{elems: elems}
}

// Literal matches b exactly.
func Literal(b []byte) *BytesPattern {
	elems := make([]int16, len(b))
	for i, v := range b {
		elems[i] = int16(v)
	}
	return &BytesPattern{elems: elems}
}

// Text matches the bytes of s, treating '?' as a wildcard.
func Text(s string) *BytesPattern {
	elems := make([]int16, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '?' {
			elems[i] = Any
		} else {
			elems[i] = int16(s[i])
		}
	}
	return &BytesPattern{elems: elems}
}

// Parse reads an array-of-bytes pattern such as "48 8B ?? ?? E8".
// "??" and "?" are wildcards.
func Parse(aob string) (*BytesPattern, error) {
	parts := strings.Fields(aob)
	if len(parts) == 0 {
		return nil, errors.New("empty pattern")
	}

	elems := make([]int16, len(parts))
	for i, part := range parts {
		if part == "??" || part == "?" {
			elems[i] = Any
			continue
		}

		decoded, err := hex.DecodeString(part)
		if err != nil || len(decoded) != 1 {
			return nil, fmt.Errorf("invalid hex pattern: %s", part)
		}
		elems[i] = int16(decoded[0])
	}

	return &BytesPattern{elems: elems}, nil
}

// MustParse is like Parse but panics on a malformed pattern.
func MustParse(aob string) *BytesPattern {
	p, err := Parse(aob)
	if err != nil {
		panic("scan: " + err.Error())
	}
	return p
}

func (p *BytesPattern) Len() int {
	return len(p.elems)
}

func (p *BytesPattern) String() string {
	var b strings.Builder
	for i, v := range p.elems {
		if i > 0 {
			b.WriteByte(' ')
		}
		if v < 0 {
			b.WriteString("??")
		} else {
			fmt.Fprintf(&b, "%02X", v)
		}
	}
	return b.String()
}

func (p *BytesPattern) Scanner(start mem.Address) Scanner {
	if len(p.elems) == 0 {
		return zeroWidth()
	}

	i := 0
	return ScannerFunc(func(b byte) Result {
		if want := p.elems[i]; want >= 0 && byte(want) != b {
			return Reject
		}
		i++
		if i == len(p.elems) {
			return Accept
		}
		return Continue
	})
}

// SkipPattern matches any n bytes.
type SkipPattern struct {
	n int
}

func Skip(n int) *SkipPattern {
	if n < 0 {
		n = 0
	}
	return &SkipPattern{n: n}
}

func (p *SkipPattern) Scanner(start mem.Address) Scanner {
	if p.n == 0 {
		return zeroWidth()
	}

	seen := 0
	return ScannerFunc(func(byte) Result {
		seen++
		if seen == p.n {
			return Accept
		}
		return Continue
	})
}

func zeroWidth() Scanner {
	return ScannerFunc(func(byte) Result {
		return AcceptNoConsume
	})
}
