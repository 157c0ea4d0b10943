// Package patcher turns matched patterns into committed patches.
package patcher

import (
	"fmt"
	"github.com/derekparker/trie"
	e "sigpatch/error"
	"sigpatch/pkg/logflags"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
	"sigpatch/pkg/scan"
	"sort"
)

// Descriptor names a pattern and the module it is searched in. When Result
// is set, a successful MakePatch stores the committed patches there.
type Descriptor struct {
	Name    string
	Module  string
	Pattern scan.Pattern
	Result  *patch.Meta
}

func (d Descriptor) String() string {
	if d.Module == "" {
		return d.Name
	}
	return d.Name + "@" + d.Module
}

type Option func(*Patcher)

func WithLogger(l logflags.Logger) Option {
	return func(p *Patcher) {
		p.log = l
	}
}

// Patcher applies descriptors to one Memory and keeps every patch it
// commits until Close.
//
// A Patcher is not safe for concurrent use.
type Patcher struct {
	mem      mem.Memory
	registry *patch.Registry
	named    map[string]patch.Meta
	names    *trie.Trie
	log      logflags.Logger
}

func New(m mem.Memory, opts ...Option) *Patcher {
	p := &Patcher{
		mem:      m,
		registry: patch.NewRegistry(),
		named:    make(map[string]patch.Meta),
		names:    trie.New(),
		log:      logflags.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Patcher) Memory() mem.Memory {
	return p.mem
}

func (p *Patcher) Registry() *patch.Registry {
	return p.registry
}

// MakePatchInto searches the segments of d.Module for d.Pattern and runs the
// pattern's action, appending the patches it makes to sink.
//
// A plain descriptor stops at the first match whose action succeeds. A
// descriptor wrapped with scan.Every is applied to each non-overlapping
// match and fails as soon as one action fails. Patches already in sink are
// left there on failure.
func (p *Patcher) MakePatchInto(d Descriptor, sink *patch.Sink) error {
	if d.Pattern == nil {
		return fmt.Errorf("%s: no pattern", d)
	}

	segs, err := p.mem.Segments(d.Module)
	if err != nil {
		return fmt.Errorf("%s: %w", d, err)
	}

	pat, every := scan.Unwrap(d.Pattern)
	if every {
		return p.applyAll(d, pat, segs, sink)
	}
	return p.applyFirst(d, pat, segs, sink)
}

func (p *Patcher) applyFirst(d Descriptor, pat scan.Pattern, segs []mem.Range, sink *patch.Sink) error {
	var lastErr error
	for _, seg := range segs {
		r := seg
		for !r.Empty() {
			m, ok := scan.Range(p.mem, r, pat)
			if !ok {
				break
			}

			err := act(pat, sink)
			if err == nil {
				p.log.Debugf("%s: applied at %s", d, m)
				return nil
			}
			p.log.Debugf("%s: action at %s failed: %v", d, m, err)
			lastErr = err
			r.First = after(m)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%s: %v: %w", d, lastErr, e.ActionFailed)
	}
	return fmt.Errorf("%s: %w", d, e.NoMatch)
}

func (p *Patcher) applyAll(d Descriptor, pat scan.Pattern, segs []mem.Range, sink *patch.Sink) error {
	applied := 0
	for _, seg := range segs {
		r := seg
		for !r.Empty() {
			m, ok := scan.Range(p.mem, r, pat)
			if !ok {
				break
			}

			if err := act(pat, sink); err != nil {
				p.log.Debugf("%s: action at %s failed after %d matches: %v", d, m, applied, err)
				if applied > 0 {
					return fmt.Errorf("%s: match %d at %s: %v: %w", d, applied+1, m.First, err, e.PartialRange)
				}
				return fmt.Errorf("%s: %v: %w", d, err, e.ActionFailed)
			}
			applied++
			r.First = after(m)
		}
	}

	if applied == 0 {
		return fmt.Errorf("%s: %w", d, e.NoMatch)
	}
	p.log.Debugf("%s: applied at %d matches", d, applied)
	return nil
}

// after returns where the search resumes once m has been handled.
func after(m mem.Range) mem.Address {
	if m.Empty() {
		return m.First + 1
	}
	return m.Last
}

// act runs the action of pat, reporting a panic as an error. Patches the
// failed action already made are rolled back.
func act(pat scan.Pattern, sink *patch.Sink) (err error) {
	mark := sink.Len()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
		if err != nil {
			if terr := sink.Truncate(mark); terr != nil {
				err = fmt.Errorf("%v (rollback: %v)", err, terr)
			}
		}
	}()
	return scan.Act(pat, sink)
}

// MakePatch applies d and commits its patches to the registry. On failure
// every edit made by this call is rolled back.
func (p *Patcher) MakePatch(d Descriptor) (patch.Meta, error) {
	sink := patch.NewSink(p.mem)
	if err := p.MakePatchInto(d, sink); err != nil {
		if cerr := sink.Close(); cerr != nil {
			p.log.Errorf("%s: rollback: %v", d, cerr)
		}
		return patch.Meta{}, err
	}

	meta := p.registry.Adopt(sink)
	if d.Result != nil {
		*d.Result = meta
	}
	if d.Name != "" {
		if _, ok := p.named[d.Name]; ok {
			p.names.Remove(d.Name)
		}
		p.named[d.Name] = meta
		p.names.Add(d.Name, meta)
	}
	return meta, nil
}

// Batch applies ds in order and stops at the first failure, returning the
// failing descriptor's name. Descriptors committed before the failure stay
// committed; the ones after it are never attempted.
func (p *Patcher) Batch(ds ...Descriptor) (string, error) {
	for i, d := range ds {
		if _, err := p.MakePatch(d); err != nil {
			p.log.Warnf("batch stopped at %s (%d of %d): %v", d, i+1, len(ds), err)
			return d.Name, err
		}
	}
	return "", nil
}

// Scan returns every non-overlapping match of pat in module without running
// any action.
func (p *Patcher) Scan(module string, pat scan.Pattern) ([]mem.Range, error) {
	segs, err := p.mem.Segments(module)
	if err != nil {
		return nil, err
	}

	pat, _ = scan.Unwrap(pat)
	var out []mem.Range
	for _, seg := range segs {
		r := seg
		for !r.Empty() {
			m, ok := scan.Range(p.mem, r, pat)
			if !ok {
				break
			}
			out = append(out, m)
			r.First = after(m)
		}
	}
	return out, nil
}

// Lookup returns the patches committed under name.
func (p *Patcher) Lookup(name string) (patch.Meta, bool) {
	meta, ok := p.named[name]
	return meta, ok
}

// Restore restores the patches committed under name.
func (p *Patcher) Restore(name string) error {
	meta, ok := p.Lookup(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, e.PatchNotFound)
	}
	return meta.Restore()
}

// Repatch reapplies the patches committed under name.
func (p *Patcher) Repatch(name string) error {
	meta, ok := p.Lookup(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, e.PatchNotFound)
	}
	return meta.Repatch()
}

// Names returns the committed descriptor names starting with prefix.
func (p *Patcher) Names(prefix string) []string {
	var names []string
	if prefix == "" {
		for name := range p.named {
			names = append(names, name)
		}
	} else {
		names = p.names.PrefixSearch(prefix)
	}
	sort.Strings(names)
	return names
}

// Fuzzy returns the committed descriptor names fuzzily matching expr.
func (p *Patcher) Fuzzy(expr string) []string {
	names := p.names.FuzzySearch(expr)
	sort.Strings(names)
	return names
}

// Close restores every committed patch. The Patcher stays usable and starts
// over with an empty registry.
func (p *Patcher) Close() error {
	err := p.registry.Close()
	for name := range p.named {
		p.names.Remove(name)
	}
	p.named = make(map[string]patch.Meta)
	if err != nil {
		p.log.Errorf("restore on close: %v", err)
	}
	return err
}
