package scan

import (
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
)

// ActionFunc is the action Imbue attaches to a pattern. at is the start
// address of the match.
type ActionFunc func(at mem.Address, sink *patch.Sink) error

// ImbuedPattern matches like its inner pattern but runs fn instead of the
// inner pattern's action.
type ImbuedPattern struct {
	inner Pattern
	fn    ActionFunc
	match mem.Range
}

// Imbue replaces p's action with fn. Use it when the edit depends on bytes
// only known once the match is found.
func Imbue(p Pattern, fn ActionFunc) *ImbuedPattern {
	return &ImbuedPattern{inner: p, fn: fn}
}

// Match returns the range of the latest completed match.
func (p *ImbuedPattern) Match() mem.Range {
	return p.match
}

func (p *ImbuedPattern) Scanner(start mem.Address) Scanner {
	return track(p.inner.Scanner(start), start, func(r mem.Range) {
		p.match = r
	})
}

func (p *ImbuedPattern) Act(sink *patch.Sink) error {
	return p.fn(p.match.First, sink)
}

// EveryPattern marks a pattern to be applied to each non-overlapping
// occurrence instead of only the first.
type EveryPattern struct {
	inner Pattern
}

func Every(p Pattern) *EveryPattern {
	return &EveryPattern{inner: p}
}

func (p *EveryPattern) Scanner(start mem.Address) Scanner {
	return p.inner.Scanner(start)
}

func (p *EveryPattern) Act(sink *patch.Sink) error {
	return Act(p.inner, sink)
}

// Unwrap strips Every markers from p and reports whether there were any.
func Unwrap(p Pattern) (Pattern, bool) {
	every := false
	for {
		e, ok := p.(*EveryPattern)
		if !ok {
			return p, every
		}
		p, every = e.inner, true
	}
}

// track forwards s and reports the range of a completed match to done.
func track(s Scanner, start mem.Address, done func(mem.Range)) Scanner {
	at := start
	return ScannerFunc(func(b byte) Result {
		r := s.Feed(b)
		switch r {
		case Continue:
			at++
		case Accept:
			done(mem.Range{First: start, Last: at + 1})
		case AcceptNoConsume:
			done(mem.Range{First: start, Last: at})
		}
		return r
	})
}
