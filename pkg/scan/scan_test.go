package scan_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	e "sigpatch/error"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
	"sigpatch/pkg/scan"
	"testing"
)

func TestFindWildcard(t *testing.T) {
	buf := []byte{0x00, 0x11, 0x22, 0x33, 0x44}
	first, last, ok := scan.Find(buf, scan.Bytes(0x11, scan.Any, 0x33))
	if !ok {
		t.Fatal("pattern not found")
	}
	if first != 1 || last != 4 {
		t.Fatalf("match is [%d,%d), want [1,4)", first, last)
	}
}

func TestFindLiteralOccurrence(t *testing.T) {
	pat := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	for k := 0; k < 12; k++ {
		buf := make([]byte, 16)
		copy(buf[k:], pat)

		first, last, ok := scan.Find(buf, scan.Literal(pat))
		if !ok || first != k || last != k+len(pat) {
			t.Fatalf("offset %d: got [%d,%d) ok=%v", k, first, last, ok)
		}
	}
}

func TestFindNoMatch(t *testing.T) {
	if _, _, ok := scan.Find([]byte{1, 2, 3}, scan.Bytes(4)); ok {
		t.Fatal("unexpected match")
	}
	if _, _, ok := scan.Find(nil, scan.Bytes(1)); ok {
		t.Fatal("unexpected match in empty buffer")
	}
	// The attempt at offset 2 runs off the end.
	if _, _, ok := scan.Find([]byte{9, 9, 1, 2}, scan.Bytes(1, 2, 3)); ok {
		t.Fatal("unexpected match past the end")
	}
}

func TestRangeAddresses(t *testing.T) {
	b := mem.NewBuffer(0x1000, []byte{0x90, 0x90, 0xC3, 0xCC})
	r, ok := scan.Range(b, b.Bounds(), scan.Bytes(0xC3))
	if !ok {
		t.Fatal("pattern not found")
	}
	want := mem.Range{First: 0x1002, Last: 0x1003}
	if r != want {
		t.Fatalf("got %s, want %s", r, want)
	}
}

func TestSkip(t *testing.T) {
	first, last, ok := scan.Find([]byte{1, 2, 3, 4}, scan.Seq(scan.Bytes(2), scan.Skip(2)))
	if !ok || first != 1 || last != 4 {
		t.Fatalf("got [%d,%d) ok=%v", first, last, ok)
	}

	// A zero-width pattern completes before the byte it is fed.
	first, last, ok = scan.Find([]byte{7}, scan.Skip(0))
	if !ok || first != 0 || last != 0 {
		t.Fatalf("zero skip: got [%d,%d) ok=%v", first, last, ok)
	}
}

func TestParse(t *testing.T) {
	p, err := scan.Parse("48 8b ?? ? E8")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 5 {
		t.Fatalf("length %d, want 5", p.Len())
	}
	if s := p.String(); s != "48 8B ?? ?? E8" {
		t.Fatalf("unexpected string %q", s)
	}

	for _, bad := range []string{"", "   ", "4", "GG", "4848"} {
		if _, err := scan.Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBytesPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	scan.Bytes(0x100)
}

func TestText(t *testing.T) {
	first, _, ok := scan.Find([]byte("xxhello"), scan.Text("h?llo"))
	if !ok || first != 2 {
		t.Fatalf("got %d ok=%v", first, ok)
	}
}

func TestIntegral(t *testing.T) {
	var v uint32
	p := scan.Integral(&v)
	if _, _, ok := scan.Find([]byte{0x01, 0x00, 0x00, 0x00}, p); !ok {
		t.Fatal("pattern not found")
	}
	if v != 1 || p.Value() != 1 {
		t.Fatalf("decoded %d, want 1", v)
	}

	// A nil destination is fine.
	q := scan.Integral[int16](nil)
	if _, _, ok := scan.Find([]byte{0xFF, 0xFF}, q); !ok || q.Value() != -1 {
		t.Fatalf("decoded %d, want -1", q.Value())
	}
}

func TestHereInSequence(t *testing.T) {
	var at mem.Address
	b := mem.NewBuffer(0x400000, []byte{0x00, 0x55, 0x48, 0x89, 0xE5})
	p := scan.Seq(scan.Bytes(0x55), scan.Here(&at), scan.Bytes(0x48, 0x89))

	r, ok := scan.Range(b, b.Bounds(), p)
	if !ok {
		t.Fatal("pattern not found")
	}
	if r.First != 0x400001 || r.Last != 0x400004 {
		t.Fatalf("unexpected match %s", r)
	}
	if at != 0x400002 {
		t.Fatalf("captured %s, want 0x400002", at)
	}
}

func TestTrailingZeroWidthNeedsLookahead(t *testing.T) {
	var at mem.Address
	p := scan.Seq(scan.Bytes(0xAA), scan.Here(&at))

	if _, _, ok := scan.Find([]byte{0xAA}, p); ok {
		t.Fatal("zero-width tail matched without a lookahead byte")
	}
	first, last, ok := scan.Find([]byte{0xAA, 0x00}, p)
	if !ok || first != 0 || last != 1 || at != 1 {
		t.Fatalf("got [%d,%d) at=%s ok=%v", first, last, at, ok)
	}
}

func TestConsecutiveZeroWidth(t *testing.T) {
	var a, b mem.Address
	p := scan.Seq(scan.Bytes(1), scan.Here(&a), scan.Skip(0), scan.Here(&b), scan.Bytes(2))
	first, last, ok := scan.Find([]byte{0, 1, 2}, p)
	if !ok || first != 1 || last != 3 {
		t.Fatalf("got [%d,%d) ok=%v", first, last, ok)
	}
	if a != 2 || b != 2 {
		t.Fatalf("captured %s and %s, want 0x2", a, b)
	}
}

func TestPointer(t *testing.T) {
	var ptr mem.Address
	buf := make([]byte, 9)
	buf[0] = 0xB8
	binary.LittleEndian.PutUint64(buf[1:], 0x7FF612345678)

	if _, _, ok := scan.Find(buf, scan.Seq(scan.Bytes(0xB8), scan.Pointer[uint64](&ptr))); !ok {
		t.Fatal("pattern not found")
	}
	if ptr != 0x7FF612345678 {
		t.Fatalf("pointer %s", ptr)
	}
}

func TestDisplacement(t *testing.T) {
	// call rel32 at 0x1000 targeting 0x1000+5-0x10.
	var dst mem.Address
	b := mem.NewBuffer(0x1000, []byte{0xE8, 0xF0, 0xFF, 0xFF, 0xFF, 0x90})
	p := scan.Seq(scan.Bytes(0xE8), scan.Displacement[int32](&dst, 4))

	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("pattern not found")
	}
	if dst != 0x1000+5-0x10 {
		t.Fatalf("resolved %s", dst)
	}
}

func TestRel32(t *testing.T) {
	data, err := scan.Rel32(scan.Jump, 0x1000, 0x2000)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xE9, 0xFB, 0x0F, 0x00, 0x00}
	if !bytes.Equal(data, want) {
		t.Fatalf("got % X, want % X", data, want)
	}

	_, err = scan.Rel32(scan.Call, 0x1000, 0x1000+1<<33)
	if !errors.Is(err, e.OutOfReach) {
		t.Fatalf("expected out of reach, got %v", err)
	}
}

func TestDetour(t *testing.T) {
	data := []byte{0x90, 0xE8, 0x10, 0x00, 0x00, 0x00, 0xC3}
	b := mem.NewBuffer(0x5000, data)

	var orig mem.Address
	p := scan.Detour(scan.Call, 0x5100, &orig)
	r, ok := scan.Range(b, b.Bounds(), p)
	if !ok {
		t.Fatal("call not found")
	}
	if r.First != 0x5001 || r.Len() != 5 {
		t.Fatalf("unexpected match %s", r)
	}
	if orig != 0x5001+5+0x10 {
		t.Fatalf("original %s", orig)
	}

	sink := patch.NewSink(b)
	if err := scan.Act(p, sink); err != nil {
		t.Fatal(err)
	}
	want, _ := scan.Rel32(scan.Call, 0x5001, 0x5100)
	if !bytes.Equal(data[1:6], want) {
		t.Fatalf("site holds % X, want % X", data[1:6], want)
	}

	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data[1:6], []byte{0xE8, 0x10, 0x00, 0x00, 0x00}) {
		t.Fatalf("site not restored: % X", data[1:6])
	}
}

func TestEntryDetour(t *testing.T) {
	data := []byte{0xCC, 0x55, 0x48, 0x89, 0xE5, 0x53, 0x41}
	b := mem.NewBuffer(0x2000, data)

	p := scan.EntryDetour(scan.MustParse("55 48 89 E5 53"), scan.Jump, 0x3000)
	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("prologue not found")
	}

	sink := patch.NewSink(b)
	if err := scan.Act(p, sink); err != nil {
		t.Fatal(err)
	}
	if data[1] != 0xE9 || p.Match().First != 0x2001 {
		t.Fatalf("unexpected site % X", data[:6])
	}
	sink.Close()

	short := scan.EntryDetour(scan.Bytes(0x55), scan.Jump, 0x3000)
	scan.Range(b, b.Bounds(), short)
	if err := scan.Act(short, patch.NewSink(b)); !errors.Is(err, e.ActionFailed) {
		t.Fatalf("expected action failure, got %v", err)
	}
}

func TestWriteIndirect(t *testing.T) {
	// mov eax, [rip+2]; the operand resolves two bytes past its own end.
	data := []byte{0x8B, 0x05, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	b := mem.NewBuffer(0x100, data)

	p := scan.Seq(scan.Bytes(0x8B, 0x05), scan.WriteIndirect[int32](4, []byte{0x11, 0x22}))
	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("pattern not found")
	}

	sink := patch.NewSink(b)
	if err := scan.Act(p, sink); err != nil {
		t.Fatal(err)
	}
	if data[8] != 0x11 || data[9] != 0x22 {
		t.Fatalf("indirect write missing: % X", data)
	}
	sink.Close()
	if data[8] != 0xAA || data[9] != 0xBB {
		t.Fatalf("indirect write not restored: % X", data)
	}
}

func TestAssignIndirect(t *testing.T) {
	data := []byte{0x74, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	b := mem.NewBuffer(0, data)

	// The rel8 operand at 1 resolves to 1 + 1 + 1.
	p := scan.Seq(scan.Bytes(0x74), scan.AssignIndirect[int8](1, uint32(0xCAFEBABE)))
	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("pattern not found")
	}
	sink := patch.NewSink(b)
	if err := scan.Act(p, sink); err != nil {
		t.Fatal(err)
	}
	if got := binary.NativeEndian.Uint32(data[3:7]); got != 0xCAFEBABE {
		t.Fatalf("assigned %#x", got)
	}
	sink.Close()
	if !bytes.Equal(data[3:7], make([]byte, 4)) {
		t.Fatalf("assignment not restored: % X", data)
	}
}

func TestSequenceActionShortCircuits(t *testing.T) {
	b := mem.NewBuffer(0, []byte{1, 2, 3})
	var calls []string
	first := scan.Imbue(scan.Bytes(1), func(mem.Address, *patch.Sink) error {
		calls = append(calls, "first")
		return e.ActionFailed
	})
	second := scan.Imbue(scan.Bytes(2), func(mem.Address, *patch.Sink) error {
		calls = append(calls, "second")
		return nil
	})

	p := scan.Seq(first, second)
	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("pattern not found")
	}
	if err := scan.Act(p, patch.NewSink(b)); err == nil {
		t.Fatal("expected failure")
	}
	if len(calls) != 1 {
		t.Fatalf("actions run: %v", calls)
	}
}

func TestImbue(t *testing.T) {
	data := []byte{0x00, 0x00, 0x0F, 0x84, 0x10}
	b := mem.NewBuffer(0x800, data)

	var seen mem.Address
	p := scan.Imbue(scan.Bytes(0x0F, scan.Any), func(at mem.Address, sink *patch.Sink) error {
		seen = at
		op := sink.Memory().Slice(mem.Span(at+1, 1))[0]
		return sink.Apply(at+1, []byte{op + 1})
	})

	if _, ok := scan.Range(b, b.Bounds(), p); !ok {
		t.Fatal("pattern not found")
	}
	sink := patch.NewSink(b)
	defer sink.Close()
	if err := scan.Act(p, sink); err != nil {
		t.Fatal(err)
	}
	if seen != 0x802 || data[3] != 0x85 {
		t.Fatalf("seen %s, byte %X", seen, data[3])
	}
	if p.Match() != (mem.Range{First: 0x802, Last: 0x804}) {
		t.Fatalf("match %s", p.Match())
	}
}

func TestUnwrap(t *testing.T) {
	inner := scan.Bytes(1)
	p, every := scan.Unwrap(scan.Every(scan.Every(inner)))
	if !every || p != scan.Pattern(inner) {
		t.Fatal("Every not stripped")
	}
	if _, every := scan.Unwrap(inner); every {
		t.Fatal("plain pattern reported as Every")
	}
}
