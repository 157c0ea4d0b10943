package mem

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
)

const maxImageSpan = 1 << 32

// Image is an ELF file loaded into a Buffer at its link-time addresses.
// The executable PT_LOAD segments form the segments of the "" module.
type Image struct {
	*Buffer
	raw   []byte
	loads []elf.ProgHeader
}

func LoadImage(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseImage(raw)
}

func ParseImage(raw []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid elf image: %v", err)
	}
	defer f.Close()

	var loads []elf.ProgHeader
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD && p.Filesz > 0 {
			loads = append(loads, p.ProgHeader)
		}
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("elf image has no loadable segments")
	}

	lo, hi := loads[0].Vaddr, loads[0].Vaddr+loads[0].Filesz
	for _, p := range loads[1:] {
		lo = min(lo, p.Vaddr)
		hi = max(hi, p.Vaddr+p.Filesz)
	}
	if hi-lo > maxImageSpan {
		return nil, fmt.Errorf("elf image spans %d bytes", hi-lo)
	}

	data := make([]byte, hi-lo)
	for _, p := range loads {
		if p.Off+p.Filesz > uint64(len(raw)) {
			return nil, fmt.Errorf("segment at 0x%x exceeds file size", p.Vaddr)
		}
		copy(data[p.Vaddr-lo:], raw[p.Off:p.Off+p.Filesz])
	}

	img := &Image{
		Buffer: NewBuffer(Address(lo), data),
		raw:    raw,
		loads:  loads,
	}

	exec := 0
	for _, p := range loads {
		if p.Flags&elf.PF_X == 0 {
			continue
		}
		if err := img.AddSegment("", Span(Address(p.Vaddr), int(p.Filesz))); err != nil {
			return nil, err
		}
		exec++
	}
	if exec == 0 {
		return nil, fmt.Errorf("elf image has no executable segments")
	}

	return img, nil
}

// File returns a copy of the original file with the loaded segments
// replaced by their current contents.
func (img *Image) File() []byte {
	out := make([]byte, len(img.raw))
	copy(out, img.raw)
	for _, p := range img.loads {
		copy(out[p.Off:p.Off+p.Filesz], img.Slice(Span(Address(p.Vaddr), int(p.Filesz))))
	}
	return out
}

// Offset translates an address into a file offset.
func (img *Image) Offset(a Address) (uint64, bool) {
	for _, p := range img.loads {
		if uint64(a) >= p.Vaddr && uint64(a) < p.Vaddr+p.Filesz {
			return p.Off + uint64(a) - p.Vaddr, true
		}
	}
	return 0, false
}
