package patch

import (
	"go.uber.org/multierr"
	"sigpatch/pkg/mem"
)

// Sink collects the patches produced while applying a pattern. Patches are
// only ever appended; Close restores them all.
type Sink struct {
	mem     mem.Memory
	patches []*Patch
}

func NewSink(m mem.Memory) *Sink {
	return &Sink{mem: m}
}

func (s *Sink) Memory() mem.Memory {
	return s.mem
}

// Apply writes data at site and keeps the resulting patch.
func (s *Sink) Apply(site mem.Address, data []byte) error {
	p, err := New(s.mem, site, data)
	if err != nil {
		return err
	}
	s.patches = append(s.patches, p)
	return nil
}

// Snapshot records size bytes at site and keeps the resulting patch.
func (s *Sink) Snapshot(site mem.Address, size int) error {
	p, err := Snapshot(s.mem, site, size)
	if err != nil {
		return err
	}
	s.patches = append(s.patches, p)
	return nil
}

// AssignInto performs a typed assignment at site and keeps the resulting
// patch in s.
func AssignInto[T any](s *Sink, site mem.Address, value T) error {
	p, err := Assign(s.mem, site, value)
	if err != nil {
		return err
	}
	s.patches = append(s.patches, p)
	return nil
}

func (s *Sink) Add(p *Patch) {
	s.patches = append(s.patches, p)
}

func (s *Sink) Len() int {
	return len(s.patches)
}

func (s *Sink) Patches() []*Patch {
	return append([]*Patch(nil), s.patches...)
}

// Close restores the collected patches, newest first, and empties the sink.
func (s *Sink) Close() error {
	err := s.Truncate(0)
	s.patches = nil
	return err
}

// Truncate restores the patches added after the first n, newest first, and
// drops them from the sink.
func (s *Sink) Truncate(n int) error {
	if n < 0 {
		n = 0
	}
	var err error
	for i := len(s.patches) - 1; i >= n; i-- {
		err = multierr.Append(err, s.patches[i].Close())
	}
	if n < len(s.patches) {
		s.patches = s.patches[:n]
	}
	return err
}

// take moves every patch out of the sink.
func (s *Sink) take() []*Patch {
	out := make([]*Patch, len(s.patches))
	for i, p := range s.patches {
		out[i] = p.Take()
	}
	s.patches = nil
	return out
}
