package service

import (
	"fmt"
	"github.com/google/shlex"
	e "sigpatch/error"
	"sigpatch/pkg/logflags"
	"sigpatch/pkg/patch"
	"sigpatch/pkg/patcher"
	"sigpatch/pkg/scan"
	"strconv"
	"strings"
	"sync"
)

// Executor runs commands against a Patcher, one at a time.
type Executor struct {
	mu      sync.Mutex
	patcher *patcher.Patcher
	log     logflags.Logger
}

func NewExecutor(p *patcher.Patcher, log logflags.Logger) *Executor {
	if log == nil {
		log = logflags.Nop()
	}
	return &Executor{patcher: p, log: log}
}

// Exec runs cmd with shell-quoted args and returns its printable output.
func (x *Executor) Exec(cmd CmdType, args string) (string, error) {
	argv, err := shlex.Split(args)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, e.InvalidArgs)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.log.Debugf("exec %s %q", cmd, argv)
	switch cmd {
	case Scan:
		return x.scan(argv)
	case Patch:
		return x.apply(argv, false)
	case Detour:
		return x.apply(argv, true)
	case Restore:
		return x.toggle(argv, x.patcher.Restore)
	case Repatch:
		return x.toggle(argv, x.patcher.Repatch)
	case List:
		return x.list(argv)
	case Find:
		return x.find(argv)
	case Status:
		return x.status(), nil
	}
	return "", fmt.Errorf("unknown command %s: %w", cmd, e.InvalidArgs)
}

// Close restores everything the executor has patched.
func (x *Executor) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.patcher.Close()
}

// options splits key=value options and the "all" flag from positional
// arguments.
func options(argv []string) ([]string, patcher.Definition, error) {
	var (
		pos []string
		def patcher.Definition
	)
	for _, arg := range argv {
		key, val, ok := strings.Cut(arg, "=")
		switch {
		case arg == "all":
			def.All = true
		case !ok:
			pos = append(pos, arg)
		case key == "module":
			def.Module = val
		case key == "offset":
			off, err := strconv.ParseInt(val, 0, 64)
			if err != nil {
				return nil, def, fmt.Errorf("invalid offset %q: %w", val, e.InvalidArgs)
			}
			def.Offset = off
		default:
			return nil, def, fmt.Errorf("unknown option %q: %w", key, e.InvalidArgs)
		}
	}
	return pos, def, nil
}

func (x *Executor) scan(argv []string) (string, error) {
	pos, def, err := options(argv)
	if err != nil {
		return "", err
	}
	if len(pos) == 0 {
		return "", fmt.Errorf("scan needs a pattern: %w", e.InvalidArgs)
	}

	pat, err := scan.Parse(strings.Join(pos, " "))
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, e.InvalidArgs)
	}
	matches, err := x.patcher.Scan(def.Module, pat)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", pat, e.NoMatch)
	}

	var b strings.Builder
	m := x.patcher.Memory()
	for _, r := range matches {
		fmt.Fprintf(&b, "%s % X\n", r.First, m.Slice(r))
	}
	return b.String(), nil
}

func (x *Executor) apply(argv []string, detour bool) (string, error) {
	pos, def, err := options(argv)
	if err != nil {
		return "", err
	}

	want := 3
	if detour {
		want = 4
	}
	if len(pos) != want {
		return "", fmt.Errorf("expected %d arguments, got %d: %w", want, len(pos), e.InvalidArgs)
	}

	def.Name, def.Pattern = pos[0], pos[1]
	if detour {
		def.Detour, def.Target = pos[2], pos[3]
	} else {
		def.Patch = pos[2]
	}

	d, err := def.Compile()
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, e.InvalidArgs)
	}
	meta, err := x.patcher.MakePatch(d)
	if err != nil {
		return "", err
	}
	return describe(d.Name, meta), nil
}

func (x *Executor) toggle(argv []string, fn func(name string) error) (string, error) {
	if len(argv) != 1 {
		return "", fmt.Errorf("expected a patch name: %w", e.InvalidArgs)
	}
	if err := fn(argv[0]); err != nil {
		return "", err
	}
	meta, _ := x.patcher.Lookup(argv[0])
	return describe(argv[0], meta), nil
}

func (x *Executor) list(argv []string) (string, error) {
	if len(argv) > 1 {
		return "", fmt.Errorf("expected at most one prefix: %w", e.InvalidArgs)
	}
	prefix := ""
	if len(argv) == 1 {
		prefix = argv[0]
	}
	return x.summary(x.patcher.Names(prefix)), nil
}

func (x *Executor) find(argv []string) (string, error) {
	if len(argv) != 1 {
		return "", fmt.Errorf("expected one expression: %w", e.InvalidArgs)
	}
	return x.summary(x.patcher.Fuzzy(argv[0])), nil
}

func (x *Executor) summary(names []string) string {
	var b strings.Builder
	for _, name := range names {
		meta, _ := x.patcher.Lookup(name)
		fmt.Fprintf(&b, "%s\t%s\t%d patch(es)\n", name, state(meta), meta.Len())
	}
	return b.String()
}

func (x *Executor) status() string {
	reg := x.patcher.Registry()
	return fmt.Sprintf("%d named, %d patches, %d applied\n", len(x.patcher.Names("")), reg.Len(), reg.Applied())
}

func describe(name string, meta patch.Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", name, state(meta))
	for _, p := range meta.Patches() {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	return b.String()
}

func state(meta patch.Meta) string {
	if meta.IsPatched() {
		return "applied"
	}
	return "restored"
}
