package patch

import (
	"fmt"
	"runtime/debug"
)

// transfer copies src into dst, turning a memory fault into an error.
func transfer(dst, src []byte) (err error) {
	if len(dst) != len(src) {
		return fmt.Errorf("size mismatch: %d != %d", len(dst), len(src))
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memory fault: %v", r)
		}
	}()

	copy(dst, src)
	return nil
}

// duplicate returns a copy of src, turning a memory fault into an error.
func duplicate(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	if err := transfer(out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// guarded runs fn, turning a memory fault or panic into an error.
func guarded(fn func()) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memory fault: %v", r)
		}
	}()

	fn()
	return nil
}
