package patcher

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patch"
	"sigpatch/pkg/scan"
	"strconv"
	"strings"
)

// Definition is the JSON form of a descriptor:
//
//	{"name": "skip-check", "pattern": "74 ?? 48 8B", "offset": 0, "patch": "EB"}
//	{"name": "hook", "pattern": "E8 ?? ?? ?? ??", "detour": "call", "target": "0x401000"}
//
// The edit is made at match start + offset. Without patch or detour the
// definition only checks that the pattern exists.
type Definition struct {
	Name    string `json:"name"`
	Module  string `json:"module,omitempty"`
	Pattern string `json:"pattern"`
	Offset  int64  `json:"offset,omitempty"`
	Patch   string `json:"patch,omitempty"`
	Detour  string `json:"detour,omitempty"`
	Target  string `json:"target,omitempty"`
	All     bool   `json:"all,omitempty"`
}

// LoadDefinitions reads a JSON array of definitions.
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	var defs []Definition
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("invalid definitions: %v", err)
	}
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("definition %d has no name", i)
		}
	}
	return defs, nil
}

// Compile turns every definition into a descriptor, stopping at the first
// invalid one.
func Compile(defs []Definition) ([]Descriptor, error) {
	ds := make([]Descriptor, 0, len(defs))
	for _, def := range defs {
		d, err := def.Compile()
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, nil
}

func (def Definition) Compile() (Descriptor, error) {
	pat, err := scan.Parse(def.Pattern)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %v", def.Name, err)
	}

	fn, err := def.action()
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %v", def.Name, err)
	}

	var p scan.Pattern = pat
	if fn != nil {
		p = scan.Imbue(pat, fn)
	}
	if def.All {
		p = scan.Every(p)
	}

	return Descriptor{
		Name:    def.Name,
		Module:  def.Module,
		Pattern: p,
	}, nil
}

func (def Definition) action() (scan.ActionFunc, error) {
	switch {
	case def.Patch != "" && def.Detour != "":
		return nil, fmt.Errorf("patch and detour are exclusive")

	case def.Patch != "":
		data, err := ParseHex(def.Patch)
		if err != nil {
			return nil, err
		}
		return func(at mem.Address, sink *patch.Sink) error {
			return sink.Apply(at.Add(def.Offset), data)
		}, nil

	case def.Detour != "":
		kind, err := scan.ParseDetourKind(def.Detour)
		if err != nil {
			return nil, err
		}
		target, err := ParseAddress(def.Target)
		if err != nil {
			return nil, fmt.Errorf("detour target: %v", err)
		}
		return func(at mem.Address, sink *patch.Sink) error {
			site := at.Add(def.Offset)
			data, err := scan.Rel32(kind, site, target)
			if err != nil {
				return err
			}
			return sink.Apply(site, data)
		}, nil
	}
	return nil, nil
}

// ParseHex decodes bytes written as "90 90", "9090" or "0x90,0x90".
func ParseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", ",", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, fmt.Errorf("empty byte string")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid byte string: %v", err)
	}
	return data, nil
}

// ParseAddress reads a hexadecimal address with an optional 0x prefix.
func ParseAddress(s string) (mem.Address, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return mem.Address(v), nil
}
