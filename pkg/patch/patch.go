package patch

import (
	"errors"
	"fmt"
	e "sigpatch/error"
	"sigpatch/pkg/mem"
	"unsafe"
)

var errInert = errors.New("patch was moved or never constructed")

// Patch is one edit of live memory together with the bytes it replaced.
//
// While a Patch is applied, memory at its site holds its patch bytes and the
// restore bytes hold what was there right before the latest successful
// apply. Close puts the restore bytes back, so a Patch must be closed (or
// handed to a Sink or Registry that closes it) once it is no longer wanted.
type Patch struct {
	mem     mem.Memory
	site    mem.Address
	restore []byte
	data    []byte
	applied bool
}

// New writes data over the bytes at site.
func New(m mem.Memory, site mem.Address, data []byte) (*Patch, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty patch at %s", site)
	}

	p := &Patch{
		mem:  m,
		site: site,
		data: append([]byte(nil), data...),
	}
	if err := p.Repatch(); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot records size bytes at site without changing them. The returned
// Patch rewrites the recorded bytes on Repatch and puts back whatever was
// there before on Restore.
func Snapshot(m mem.Memory, site mem.Address, size int) (*Patch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("empty snapshot at %s", site)
	}

	r := mem.Span(site, size)
	g, err := m.Acquire(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", r, err)
	}
	cur, err := duplicate(m.Slice(r))
	g.Release()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %v: %w", r, err, e.ProtectionFailed)
	}

	p := &Patch{
		mem:  m,
		site: site,
		data: cur,
	}
	if err := p.Repatch(); err != nil {
		return nil, err
	}
	return p, nil
}

// Assign performs the typed assignment *site = value. The bytes produced by
// the assignment become the patch bytes, so Repatch reproduces them exactly.
func Assign[T any](m mem.Memory, site mem.Address, value T) (*Patch, error) {
	size := int(unsafe.Sizeof(value))
	if size == 0 {
		return nil, fmt.Errorf("zero-sized assignment at %s", site)
	}

	r := mem.Span(site, size)
	g, err := m.Acquire(r)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %w", r, err)
	}
	defer g.Release()

	live := m.Slice(r)
	if len(live) != size {
		return nil, fmt.Errorf("assign %s: short view: %w", r, e.ProtectionFailed)
	}
	restore, err := duplicate(live)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %v: %w", r, err, e.ProtectionFailed)
	}

	err = guarded(func() {
		*(*T)(unsafe.Pointer(&live[0])) = value
	})
	if err != nil {
		_ = transfer(live, restore)
		return nil, fmt.Errorf("assign %s: %v: %w", r, err, e.ProtectionFailed)
	}

	data, err := duplicate(live)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %v: %w", r, err, e.ProtectionFailed)
	}
	m.Flush(r)

	return &Patch{
		mem:     m,
		site:    site,
		restore: restore,
		data:    data,
		applied: true,
	}, nil
}

// Repatch applies the patch bytes again. A fresh restore point is taken only
// when the patch is not currently applied.
func (p *Patch) Repatch() error {
	if p.mem == nil {
		return errInert
	}

	r := p.Range()
	g, err := p.mem.Acquire(r)
	if err != nil {
		return fmt.Errorf("repatch %s: %w", r, err)
	}
	defer g.Release()

	live := p.mem.Slice(r)
	if !p.applied {
		snap, err := duplicate(live)
		if err != nil {
			return fmt.Errorf("repatch %s: %v: %w", r, err, e.ProtectionFailed)
		}
		p.restore = snap
	}

	if err := transfer(live, p.data); err != nil {
		_ = transfer(live, p.restore)
		p.applied = false
		return fmt.Errorf("repatch %s: %v: %w", r, err, e.ProtectionFailed)
	}

	p.mem.Flush(r)
	p.applied = true
	return nil
}

// Restore puts back the bytes recorded at the latest apply. The restore
// point is consumed even when writing it back fails.
func (p *Patch) Restore() error {
	if !p.applied {
		return nil
	}

	r := mem.Span(p.site, len(p.restore))
	err := p.writeBack(r)

	p.applied = false
	p.restore = nil
	return err
}

func (p *Patch) writeBack(r mem.Range) error {
	g, err := p.mem.Acquire(r)
	if err != nil {
		return fmt.Errorf("restore %s: %w", r, err)
	}
	defer g.Release()

	if err := transfer(p.mem.Slice(r), p.restore); err != nil {
		return fmt.Errorf("restore %s: %v: %w", r, err, e.ProtectionFailed)
	}
	p.mem.Flush(r)
	return nil
}

// Close restores the patch. It is a no-op on a patch that is not applied.
func (p *Patch) Close() error {
	return p.Restore()
}

// Take moves the patch into a new value and leaves p inert, so closing p
// afterwards does not touch memory.
func (p *Patch) Take() *Patch {
	q := *p
	*p = Patch{}
	return &q
}

func (p *Patch) IsPatched() bool {
	return p.applied
}

func (p *Patch) Site() mem.Address {
	return p.site
}

func (p *Patch) Len() int {
	return len(p.data)
}

func (p *Patch) Range() mem.Range {
	return mem.Span(p.site, len(p.data))
}

// Data returns a copy of the patch bytes.
func (p *Patch) Data() []byte {
	return append([]byte(nil), p.data...)
}

// Original returns a copy of the current restore point, or nil when the
// patch is not applied.
func (p *Patch) Original() []byte {
	if !p.applied {
		return nil
	}
	return append([]byte(nil), p.restore...)
}

func (p *Patch) String() string {
	state := "restored"
	if p.applied {
		state = "applied"
	}
	return fmt.Sprintf("%s % X (%s)", p.Range(), p.data, state)
}
