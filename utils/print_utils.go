package utils

import (
	"fmt"
	"golang.org/x/arch/x86/x86asm"
	"io"
	"sigpatch/pkg/mem"
	"strings"
)

// maxInstLen is the longest x86 instruction.
const maxInstLen = 15

func PrintStringLine(w io.Writer, s ...string) {
	for _, str := range s {
		fmt.Fprintln(w, str)
	}
}

// PrintMatches prints one line per match with its file offset, when offset
// knows it, and the matched bytes. With disasm set, the instructions
// starting at each match are decoded until the match is covered.
func PrintMatches(w io.Writer, m mem.Reader, matches []mem.Range, offset func(mem.Address) (uint64, bool), disasm bool) {
	for _, r := range matches {
		line := r.First.String()
		if offset != nil {
			if off, ok := offset(r.First); ok {
				line += fmt.Sprintf(" (file 0x%x)", off)
			}
		}
		fmt.Fprintf(w, "%s  % X\n", line, m.Slice(r))

		if disasm {
			for _, inst := range Disassemble(m, r, 64) {
				fmt.Fprintf(w, "    %s\n", inst)
			}
		}
	}
}

// Disassemble decodes the instructions that start inside r, reading past
// its end to complete the last one. mode is 32 or 64.
func Disassemble(m mem.Reader, r mem.Range, mode int) []string {
	code := m.Slice(mem.Range{First: r.First, Last: r.Last + maxInstLen})

	var out []string
	for at := 0; at < r.Len() && at < len(code); {
		inst, err := x86asm.Decode(code[at:], mode)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: (bad) %02X", r.First+mem.Address(at), code[at]))
			at++
			continue
		}

		text := x86asm.IntelSyntax(inst, uint64(r.First)+uint64(at), nil)
		out = append(out, fmt.Sprintf("%s: %-24s %s", r.First+mem.Address(at), fmt.Sprintf("% X", code[at:at+inst.Len]), strings.ToLower(text)))
		at += inst.Len
	}
	return out
}
