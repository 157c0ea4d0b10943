//go:build linux && (amd64 || 386)

package mem

import (
	"errors"
	"fmt"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sys/unix"
	"os"
	e "sigpatch/error"
	"unsafe"
)

const (
	selfMaps     = "/proc/self/maps"
	selfExe      = "/proc/self/exe"
	segmentCache = 32
)

// Self is the Memory of the calling process.
type Self struct {
	exe      string
	pageSize int
	segments *lru.Cache
}

func NewSelf() (*Self, error) {
	exe, err := os.Readlink(selfExe)
	if err != nil {
		return nil, fmt.Errorf("could not resolve executable: %v", err)
	}

	cache, err := lru.New(segmentCache)
	if err != nil {
		return nil, err
	}

	return &Self{
		exe:      exe,
		pageSize: unix.Getpagesize(),
		segments: cache,
	}, nil
}

func (s *Self) regions() ([]Region, error) {
	data, err := os.ReadFile(selfMaps)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %v", selfMaps, err)
	}
	return parseMaps(string(data)), nil
}

func (s *Self) Segments(module string) ([]Range, error) {
	if v, ok := s.segments.Get(module); ok {
		cached := v.([]Range)
		out := make([]Range, len(cached))
		copy(out, cached)
		return out, nil
	}

	regions, err := s.regions()
	if err != nil {
		return nil, err
	}

	segs := executable(regions, module, s.exe)
	if len(segs) == 0 {
		name := module
		if name == "" {
			name = s.exe
		}
		return nil, fmt.Errorf("%q: %w", name, e.ModuleNotFound)
	}

	s.segments.Add(module, segs)
	out := make([]Range, len(segs))
	copy(out, segs)
	return out, nil
}

// pages rounds r outwards to page boundaries.
func (s *Self) pages(r Range) Range {
	mask := Address(s.pageSize - 1)
	return Range{
		First: r.First &^ mask,
		Last:  (r.Last + mask) &^ mask,
	}
}

func (s *Self) Acquire(r Range) (Guard, error) {
	if r.Empty() {
		return nil, fmt.Errorf("empty range %s: %w", r, e.ProtectionFailed)
	}

	pages := s.pages(r)
	regions, err := s.regions()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, e.ProtectionFailed)
	}

	prior := overlapping(regions, pages)
	cursor := pages.First
	for _, region := range prior {
		if Address(region.Start) > cursor {
			break
		}
		cursor = Address(region.End)
	}
	if len(prior) == 0 || cursor < pages.Last {
		return nil, fmt.Errorf("%s not mapped: %w", r, e.ProtectionFailed)
	}

	if err := unix.Mprotect(s.view(pages), unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return nil, fmt.Errorf("mprotect %s: %v: %w", pages, err, e.ProtectionFailed)
	}

	return guardFunc(func() error {
		var errs []error
		for _, region := range prior {
			ov := region.Range()
			if ov.First < pages.First {
				ov.First = pages.First
			}
			if ov.Last > pages.Last {
				ov.Last = pages.Last
			}
			if err := unix.Mprotect(s.view(ov), protection(region)); err != nil {
				errs = append(errs, fmt.Errorf("mprotect %s: %v", ov, err))
			}
		}
		return errors.Join(errs...)
	}), nil
}

// Flush is a no-op: x86 keeps instruction caches coherent with stores.
func (s *Self) Flush(r Range) {}

func (s *Self) Slice(r Range) []byte {
	if r.Empty() {
		return nil
	}
	return s.view(r)
}

func (s *Self) view(r Range) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(r.First))), r.Len())
}

func protection(r Region) int {
	prot := unix.PROT_NONE
	if r.Readable() {
		prot |= unix.PROT_READ
	}
	if r.Writable() {
		prot |= unix.PROT_WRITE
	}
	if r.Executable() {
		prot |= unix.PROT_EXEC
	}
	return prot
}
