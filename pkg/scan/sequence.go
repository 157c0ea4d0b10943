package scan

import (
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
)

// SequencePattern matches its parts one after another.
type SequencePattern struct {
	parts []Pattern
}

func Seq(parts ...Pattern) *SequencePattern {
	return &SequencePattern{parts: append([]Pattern(nil), parts...)}
}

// Then returns a new sequence with q appended.
func (p *SequencePattern) Then(q Pattern) *SequencePattern {
	parts := make([]Pattern, 0, len(p.parts)+1)
	parts = append(parts, p.parts...)
	return &SequencePattern{parts: append(parts, q)}
}

func (p *SequencePattern) Len() int {
	return len(p.parts)
}

func (p *SequencePattern) Scanner(start mem.Address) Scanner {
	if len(p.parts) == 0 {
		return zeroWidth()
	}
	return &sequenceScanner{parts: p.parts, at: start}
}

// Act runs the actions of the parts in order and stops at the first error.
func (p *SequencePattern) Act(sink *patch.Sink) error {
	for _, part := range p.parts {
		if err := Act(part, sink); err != nil {
			return err
		}
	}
	return nil
}

// sequenceScanner drives the part at index i. The next part's scanner is
// only created when the current one completes, at the address of the first
// byte it has not consumed.
type sequenceScanner struct {
	parts []Pattern
	i     int
	cur   Scanner
	at    mem.Address
}

func (s *sequenceScanner) Feed(b byte) Result {
	for {
		if s.cur == nil {
			s.cur = s.parts[s.i].Scanner(s.at)
		}

		last := s.i == len(s.parts)-1
		switch s.cur.Feed(b) {
		case Continue:
			s.at++
			return Continue
		case Accept:
			s.at++
			if last {
				return Accept
			}
			s.i++
			s.cur = nil
			return Continue
		case AcceptNoConsume:
			if last {
				return AcceptNoConsume
			}
			// Hand the same byte to the next part.
			s.i++
			s.cur = nil
		default:
			return Reject
		}
	}
}
