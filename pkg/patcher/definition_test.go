package patcher_test

import (
	"bytes"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patcher"
	"sigpatch/pkg/scan"
	"strings"
	"testing"
)

const definitions = `[
	{"name": "skip-check", "pattern": "74 ?? 48 8B", "patch": "EB"},
	{"name": "hook", "pattern": "E8 ?? ?? ?? ??", "detour": "call", "target": "0x1100"},
	{"name": "nops", "pattern": "CC", "patch": "90", "all": true}
]`

func TestDefinitions(t *testing.T) {
	data := []byte{
		0x74, 0x05, 0x48, 0x8B, 0xC3,
		0xE8, 0x00, 0x00, 0x00, 0x00,
		0xCC, 0xCC, 0x00,
	}
	b := mem.NewBuffer(0x1000, data)
	p := patcher.New(b)

	defs, err := patcher.LoadDefinitions(strings.NewReader(definitions))
	if err != nil {
		t.Fatal(err)
	}
	ds, err := patcher.Compile(defs)
	if err != nil {
		t.Fatal(err)
	}
	if failed, err := p.Batch(ds...); err != nil {
		t.Fatalf("%s: %v", failed, err)
	}

	if data[0] != 0xEB {
		t.Fatalf("skip-check not applied: %X", data[0])
	}
	want, _ := scan.Rel32(scan.Call, 0x1005, 0x1100)
	if !bytes.Equal(data[5:10], want) {
		t.Fatalf("hook holds % X, want % X", data[5:10], want)
	}
	if data[10] != 0x90 || data[11] != 0x90 {
		t.Fatalf("nops not applied: % X", data[10:])
	}
}

func TestDefinitionErrors(t *testing.T) {
	bad := []patcher.Definition{
		{Name: "pattern", Pattern: "ZZ"},
		{Name: "both", Pattern: "90", Patch: "90", Detour: "jmp", Target: "0x10"},
		{Name: "kind", Pattern: "90", Detour: "ret", Target: "0x10"},
		{Name: "target", Pattern: "90", Detour: "jmp"},
		{Name: "bytes", Pattern: "90", Patch: "9"},
	}
	for _, def := range bad {
		if _, err := def.Compile(); err == nil {
			t.Errorf("%s: expected error", def.Name)
		}
	}

	if _, err := patcher.LoadDefinitions(strings.NewReader(`[{"pattern": "90"}]`)); err == nil {
		t.Error("definition without a name accepted")
	}
	if _, err := patcher.LoadDefinitions(strings.NewReader(`[{"name": "x", "pattern": "90", "extra": 1}]`)); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"90 90", []byte{0x90, 0x90}},
		{"9090", []byte{0x90, 0x90}},
		{"0xEB,0xFE", []byte{0xEB, 0xFE}},
	}
	for _, tt := range tests {
		got, err := patcher.ParseHex(tt.in)
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("ParseHex(%q) = % X, %v", tt.in, got, err)
		}
	}

	if a, err := patcher.ParseAddress("0x7ff6AB00"); err != nil || a != 0x7FF6AB00 {
		t.Errorf("ParseAddress = %s, %v", a, err)
	}
}
