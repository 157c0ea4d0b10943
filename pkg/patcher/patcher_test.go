package patcher_test

import (
	"bytes"
	"errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	e "sigpatch/error"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
	"sigpatch/pkg/patcher"
	"sigpatch/pkg/scan"
	"strings"
	"testing"
)

const base = mem.Address(0x10000)

// newMemory returns a buffer with the marker AB CD at offsets 2, 10 and 20.
func newMemory() (*mem.Buffer, []byte) {
	data := make([]byte, 32)
	for _, off := range []int{2, 10, 20} {
		data[off], data[off+1] = 0xAB, 0xCD
	}
	return mem.NewBuffer(base, data), data
}

// marker matches AB CD and writes nop over it, recording every attempt.
// Attempts listed in fail return an error instead.
func marker(visits *[]mem.Address, fail ...mem.Address) scan.Pattern {
	return scan.Imbue(scan.Bytes(0xAB, 0xCD), func(at mem.Address, sink *patch.Sink) error {
		*visits = append(*visits, at)
		for _, f := range fail {
			if f == at {
				return errors.New("refused")
			}
		}
		return sink.Apply(at, []byte{0x90, 0x90})
	})
}

func TestFirstMatchOnly(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)

	var visits []mem.Address
	var result patch.Meta
	meta, err := p.MakePatch(patcher.Descriptor{Name: "first", Pattern: marker(&visits), Result: &result})
	if err != nil {
		t.Fatal(err)
	}

	if len(visits) != 1 || visits[0] != base+2 {
		t.Fatalf("visited %v", visits)
	}
	if data[2] != 0x90 || data[10] != 0xAB || data[20] != 0xAB {
		t.Fatalf("unexpected memory % X", data)
	}
	if meta.Len() != 1 || result.Len() != 1 || !result.IsPatched() {
		t.Fatalf("meta %d, result %d", meta.Len(), result.Len())
	}
	if p.Registry().Len() != 1 {
		t.Fatalf("registry holds %d patches", p.Registry().Len())
	}
}

func TestFirstMatchSkipsFailedAction(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)

	var visits []mem.Address
	if _, err := p.MakePatch(patcher.Descriptor{Name: "second", Pattern: marker(&visits, base+2)}); err != nil {
		t.Fatal(err)
	}
	if len(visits) != 2 || visits[1] != base+10 {
		t.Fatalf("visited %v", visits)
	}
	if data[2] != 0xAB || data[10] != 0x90 {
		t.Fatalf("unexpected memory % X", data)
	}

	visits = nil
	_, err := p.MakePatch(patcher.Descriptor{Name: "none", Pattern: marker(&visits, base+2, base+10, base+20)})
	if !errors.Is(err, e.ActionFailed) {
		t.Fatalf("expected action failure, got %v", err)
	}
	if len(visits) != 2 {
		// The second marker is already patched over.
		t.Fatalf("visited %v", visits)
	}
}

func TestRangeMiddleFailure(t *testing.T) {
	b, data := newMemory()
	orig := append([]byte(nil), data...)
	p := patcher.New(b)

	var visits []mem.Address
	_, err := p.MakePatch(patcher.Descriptor{Name: "all", Pattern: scan.Every(marker(&visits, base+10))})
	if !errors.Is(err, e.PartialRange) {
		t.Fatalf("expected partial range failure, got %v", err)
	}
	if len(visits) != 2 || visits[0] != base+2 || visits[1] != base+10 {
		t.Fatalf("visited %v", visits)
	}
	if !bytes.Equal(data, orig) {
		t.Fatalf("failed range left edits behind: % X", data)
	}
	if p.Registry().Len() != 0 {
		t.Fatal("failed range committed patches")
	}
}

func TestRangeIntoSinkKeepsEarlierMatches(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)
	sink := patch.NewSink(b)

	var visits []mem.Address
	err := p.MakePatchInto(patcher.Descriptor{Name: "all", Pattern: scan.Every(marker(&visits, base+10))}, sink)
	if !errors.Is(err, e.PartialRange) {
		t.Fatalf("expected partial range failure, got %v", err)
	}
	if sink.Len() != 1 || data[2] != 0x90 {
		t.Fatalf("sink holds %d patches", sink.Len())
	}
	sink.Close()
	if data[2] != 0xAB {
		t.Fatal("sink close did not restore")
	}
}

func TestRangeAll(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)

	var visits []mem.Address
	meta, err := p.MakePatch(patcher.Descriptor{Name: "all", Pattern: scan.Every(marker(&visits))})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Len() != 3 || len(visits) != 3 {
		t.Fatalf("meta %d, visits %v", meta.Len(), visits)
	}
	for _, off := range []int{2, 10, 20} {
		if data[off] != 0x90 {
			t.Fatalf("offset %d not patched", off)
		}
	}

	_, err = p.MakePatch(patcher.Descriptor{Name: "fail", Pattern: scan.Every(scan.Imbue(scan.Bytes(0x90), func(mem.Address, *patch.Sink) error {
		return errors.New("refused")
	}))})
	if !errors.Is(err, e.ActionFailed) || errors.Is(err, e.PartialRange) {
		t.Fatalf("expected action failure, got %v", err)
	}
}

func TestRangeAcrossSegments(t *testing.T) {
	b, data := newMemory()
	b.AddSegment("game.so", mem.Span(base, 8))
	b.AddSegment("game.so", mem.Span(base+16, 16))
	p := patcher.New(b)

	var visits []mem.Address
	meta, err := p.MakePatch(patcher.Descriptor{Name: "all", Module: "game.so", Pattern: scan.Every(marker(&visits))})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Len() != 2 || data[10] != 0xAB {
		t.Fatalf("meta %d, memory % X", meta.Len(), data)
	}
}

func TestNoMatch(t *testing.T) {
	b, _ := newMemory()
	p := patcher.New(b)

	_, err := p.MakePatch(patcher.Descriptor{Name: "missing", Pattern: scan.Bytes(0xFF, 0xFF)})
	if !errors.Is(err, e.NoMatch) {
		t.Fatalf("expected no match, got %v", err)
	}
	_, err = p.MakePatch(patcher.Descriptor{Name: "missing", Pattern: scan.Every(scan.Bytes(0xFF))})
	if !errors.Is(err, e.NoMatch) {
		t.Fatalf("expected no match, got %v", err)
	}
	_, err = p.MakePatch(patcher.Descriptor{Name: "lib", Module: "libnope.so", Pattern: scan.Bytes(0xAB)})
	if !errors.Is(err, e.ModuleNotFound) {
		t.Fatalf("expected module not found, got %v", err)
	}
}

func TestActionPanic(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)

	pat := scan.Imbue(scan.Bytes(0xAB), func(at mem.Address, sink *patch.Sink) error {
		sink.Apply(at, []byte{0xCC})
		panic("boom")
	})
	_, err := p.MakePatch(patcher.Descriptor{Name: "panic", Pattern: pat})
	if !errors.Is(err, e.ActionFailed) {
		t.Fatalf("expected action failure, got %v", err)
	}
	if data[2] != 0xAB || data[10] != 0xAB || data[20] != 0xAB {
		t.Fatalf("panicking action left edits behind: % X", data)
	}
}

func TestProtectionFailure(t *testing.T) {
	b, data := newMemory()
	b.Lock(mem.Span(base+2, 2))
	p := patcher.New(b)

	var visits []mem.Address
	if _, err := p.MakePatch(patcher.Descriptor{Name: "locked", Pattern: marker(&visits)}); err != nil {
		t.Fatal(err)
	}
	if data[2] != 0xAB || data[10] != 0x90 {
		t.Fatalf("unexpected memory % X", data)
	}
}

func TestBatch(t *testing.T) {
	b, data := newMemory()
	core, logs := observer.New(zapcore.DebugLevel)
	p := patcher.New(b, patcher.WithLogger(zap.New(core).Sugar()))

	var attempted []string
	step := func(name string, ok bool) patcher.Descriptor {
		return patcher.Descriptor{
			Name: name,
			Pattern: scan.Imbue(scan.Bytes(0xAB, 0xCD), func(at mem.Address, sink *patch.Sink) error {
				attempted = append(attempted, name)
				if !ok {
					return errors.New("refused")
				}
				return sink.Apply(at, []byte{0x90})
			}),
		}
	}

	failed, err := p.Batch(step("A", true), step("B", false), step("C", true))
	if failed != "B" || err == nil {
		t.Fatalf("failed %q, err %v", failed, err)
	}
	// B is attempted at each remaining marker, C never.
	for _, name := range attempted {
		if name == "C" {
			t.Fatalf("C was attempted: %v", attempted)
		}
	}
	if attempted[0] != "A" {
		t.Fatalf("attempted %v", attempted)
	}

	if data[2] != 0x90 {
		t.Fatal("A was rolled back")
	}
	if _, ok := p.Lookup("A"); !ok {
		t.Fatal("A not registered")
	}
	if _, ok := p.Lookup("B"); ok {
		t.Fatal("B registered")
	}

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warns) != 1 || !strings.Contains(warns[0].Message, "B") {
		t.Fatalf("unexpected warnings %v", warns)
	}

	if failed, err := p.Batch(); failed != "" || err != nil {
		t.Fatalf("empty batch: %q %v", failed, err)
	}
}

func TestNamedPatches(t *testing.T) {
	b, data := newMemory()
	p := patcher.New(b)

	for _, name := range []string{"anticheat.skip", "anticheat.nop", "fov"} {
		var visits []mem.Address
		if _, err := p.MakePatch(patcher.Descriptor{Name: name, Pattern: marker(&visits)}); err != nil {
			t.Fatal(err)
		}
	}

	if names := p.Names("anticheat"); len(names) != 2 || names[0] != "anticheat.nop" {
		t.Fatalf("names %v", names)
	}
	if names := p.Names(""); len(names) != 3 {
		t.Fatalf("names %v", names)
	}

	if err := p.Restore("fov"); err != nil {
		t.Fatal(err)
	}
	if data[20] != 0xAB {
		t.Fatal("fov not restored")
	}
	if err := p.Repatch("fov"); err != nil {
		t.Fatal(err)
	}
	if data[20] != 0x90 {
		t.Fatal("fov not reapplied")
	}
	if err := p.Restore("nope"); !errors.Is(err, e.PatchNotFound) {
		t.Fatalf("expected patch not found, got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	for _, off := range []int{2, 10, 20} {
		if data[off] != 0xAB {
			t.Fatalf("offset %d not restored on close", off)
		}
	}
	if len(p.Names("")) != 0 || p.Registry().Len() != 0 {
		t.Fatal("close left state behind")
	}
}

func TestScan(t *testing.T) {
	b, _ := newMemory()
	p := patcher.New(b)

	matches, err := p.Scan("", scan.Bytes(0xAB, 0xCD))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 || matches[1] != mem.Span(base+10, 2) {
		t.Fatalf("matches %v", matches)
	}
}
