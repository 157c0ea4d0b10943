package patch

import "go.uber.org/multierr"

// Meta treats several patches as one unit. It does not own them: closing
// the patches stays the job of whoever holds them.
type Meta struct {
	patches []*Patch
}

func NewMeta(patches ...*Patch) Meta {
	return Meta{patches: append([]*Patch(nil), patches...)}
}

func (m Meta) Len() int {
	return len(m.patches)
}

func (m Meta) Patches() []*Patch {
	return append([]*Patch(nil), m.patches...)
}

// IsPatched reports whether every member is applied.
func (m Meta) IsPatched() bool {
	for _, p := range m.patches {
		if !p.IsPatched() {
			return false
		}
	}
	return true
}

// Restore restores every member and joins their errors.
func (m Meta) Restore() error {
	var err error
	for _, p := range m.patches {
		err = multierr.Append(err, p.Restore())
	}
	return err
}

// Repatch reapplies the members in order and stops at the first failure.
// Members reapplied before the failure stay applied.
func (m Meta) Repatch() error {
	for _, p := range m.patches {
		if err := p.Repatch(); err != nil {
			return err
		}
	}
	return nil
}
