//go:build !(linux && (amd64 || 386))

package mem

import (
	"fmt"
	"runtime"
	e "sigpatch/error"
)

// Self is the Memory of the calling process. It is only implemented for
// linux on x86.
type Self struct{}

func NewSelf() (*Self, error) {
	return nil, fmt.Errorf("%s/%s: %w", runtime.GOOS, runtime.GOARCH, e.Unsupported)
}

func (s *Self) Segments(module string) ([]Range, error) {
	return nil, e.Unsupported
}

func (s *Self) Acquire(r Range) (Guard, error) {
	return nil, fmt.Errorf("%v: %w", e.Unsupported, e.ProtectionFailed)
}

func (s *Self) Flush(r Range) {}

func (s *Self) Slice(r Range) []byte {
	return nil
}
