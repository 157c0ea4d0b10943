package mem

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Region is one line of a /proc/<pid>/maps listing.
type Region struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Device string
	Inode  uint64
	Path   string
}

func (r Region) Range() Range {
	return Range{First: Address(r.Start), Last: Address(r.End)}
}

func (r Region) Readable() bool   { return len(r.Perms) > 0 && r.Perms[0] == 'r' }
func (r Region) Writable() bool   { return len(r.Perms) > 1 && r.Perms[1] == 'w' }
func (r Region) Executable() bool { return len(r.Perms) > 2 && r.Perms[2] == 'x' }

// matches reports whether the region belongs to module. An empty module
// selects the image at exe.
func (r Region) matches(module, exe string) bool {
	if r.Path == "" {
		return false
	}
	if module == "" {
		return r.Path == exe
	}
	return r.Path == module || filepath.Base(r.Path) == module
}

// parseMaps parses the contents of a maps file. Malformed lines are skipped.
func parseMaps(data string) []Region {
	var regions []Region
	for _, line := range strings.Split(data, "\n") {
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		addrs := strings.Split(fields[0], "-")
		if len(addrs) != 2 {
			continue
		}
		start, err := strconv.ParseUint(addrs[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(addrs[1], 16, 64)
		if err != nil {
			continue
		}

		region := Region{
			Start:  start,
			End:    end,
			Perms:  fields[1],
			Offset: parseHex(fields[2]),
			Device: fields[3],
			Inode:  parseHex(fields[4]),
		}
		if len(fields) > 5 {
			region.Path = strings.Join(fields[5:], " ")
		}
		regions = append(regions, region)
	}
	return regions
}

// executable returns the executable regions of module, merging adjacent ones.
func executable(regions []Region, module, exe string) []Range {
	var out []Range
	for _, r := range regions {
		if !r.Executable() || !r.matches(module, exe) {
			continue
		}
		rng := r.Range()
		if n := len(out); n > 0 && out[n-1].Last == rng.First {
			out[n-1].Last = rng.Last
			continue
		}
		out = append(out, rng)
	}
	return out
}

// overlapping returns the regions intersecting r, in address order.
func overlapping(regions []Region, r Range) []Region {
	var out []Region
	for _, region := range regions {
		if region.Range().Overlaps(r) {
			out = append(out, region)
		}
	}
	return out
}

func parseHex(s string) uint64 {
	if s == "0" {
		return 0
	}
	val, _ := strconv.ParseUint(s, 16, 64)
	return val
}
