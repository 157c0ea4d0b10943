// Package scan finds byte patterns in memory.
//
// A Pattern describes what to look for. For every candidate start address
// the scanner core asks the Pattern for a fresh Scanner and feeds it the
// bytes from that address onwards, one at a time, until the Scanner accepts
// or rejects. Patterns compose with Seq, and patterns that edit memory once
// matched implement Actor.
package scan

import (
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
)

// Result is a Scanner's verdict on one fed byte.
type Result int

const (
	// Continue asks for the next byte.
	Continue Result = iota
	// Reject abandons the attempt at this start address.
	Reject
	// Accept completes the match including the fed byte.
	Accept
	// AcceptNoConsume completes the match before the fed byte.
	AcceptNoConsume
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Reject:
		return "reject"
	case Accept:
		return "accept"
	case AcceptNoConsume:
		return "accept-no-consume"
	}
	return "unknown"
}

// Scanner is the single-use matcher a Pattern creates for one start address.
type Scanner interface {
	Feed(b byte) Result
}

// Pattern creates Scanners.
type Pattern interface {
	Scanner(start mem.Address) Scanner
}

// Actor is implemented by patterns with a side effect to run once the whole
// pattern has matched. Act appends the patches it makes to sink.
type Actor interface {
	Act(sink *patch.Sink) error
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(b byte) Result

func (f ScannerFunc) Feed(b byte) Result {
	return f(b)
}

// PatternFunc adapts a function to the Pattern interface.
type PatternFunc func(start mem.Address) Scanner

func (f PatternFunc) Scanner(start mem.Address) Scanner {
	return f(start)
}

// Act runs p's action if it has one.
func Act(p Pattern, sink *patch.Sink) error {
	if a, ok := p.(Actor); ok {
		return a.Act(sink)
	}
	return nil
}

// Range returns the first match of p in r.
func Range(m mem.Reader, r mem.Range, p Pattern) (mem.Range, bool) {
	first, last, ok := scan(m.Slice(r), r.First, p)
	if !ok {
		return mem.Range{}, false
	}
	return mem.Range{First: r.First + mem.Address(first), Last: r.First + mem.Address(last)}, true
}

// Find returns the offsets [first, last) of the first match of p in buf.
// Scanners see buf as mapped at address 0.
func Find(buf []byte, p Pattern) (first, last int, ok bool) {
	return scan(buf, 0, p)
}

func scan(view []byte, base mem.Address, p Pattern) (int, int, bool) {
next:
	for cursor := 0; cursor < len(view); cursor++ {
		s := p.Scanner(base + mem.Address(cursor))
		for at := cursor; at < len(view); at++ {
			switch s.Feed(view[at]) {
			case Continue:
			case Accept:
				return cursor, at + 1, true
			case AcceptNoConsume:
				return cursor, at, true
			default:
				continue next
			}
		}
		// The attempt ran off the end of the range.
		return 0, 0, false
	}
	return 0, 0, false
}
