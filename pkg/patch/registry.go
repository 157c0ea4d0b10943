package patch

import "go.uber.org/multierr"

// Registry owns committed patches for the lifetime of a process. It only
// grows until Close, which restores everything once at shutdown.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	patches []*Patch
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Adopt moves the patches held by s into the registry and returns a view of
// them. s is left empty.
func (r *Registry) Adopt(s *Sink) Meta {
	moved := s.take()
	r.patches = append(r.patches, moved...)
	return Meta{patches: moved}
}

func (r *Registry) Len() int {
	return len(r.patches)
}

// Applied counts the registered patches that are currently applied.
func (r *Registry) Applied() int {
	n := 0
	for _, p := range r.patches {
		if p.IsPatched() {
			n++
		}
	}
	return n
}

func (r *Registry) All() Meta {
	return NewMeta(r.patches...)
}

// Close restores every registered patch, newest first, and clears the
// registry.
func (r *Registry) Close() error {
	var err error
	for i := len(r.patches) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.patches[i].Close())
	}
	r.patches = nil
	return err
}
