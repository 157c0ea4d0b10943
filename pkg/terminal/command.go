package terminal

import (
	"errors"
	"fmt"
	"github.com/derekparker/trie"
	"os"
	"sigpatch/service"
	"strings"
	"text/tabwriter"
)

type cmdFn func(term *Term, args string) error

type command struct {
	aliases []string
	fn      cmdFn
	help    string
}

// takesName reports whether the argument of c is a committed patch name.
func (c command) takesName() bool {
	switch c.aliases[0] {
	case "restore", "repatch", "list", "find":
		return true
	}
	return false
}

func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

type Commands struct {
	cmds   []command
	client service.Client
}

func NewCommands(client service.Client) *Commands {
	c := &Commands{
		client: client,
	}

	c.cmds = []command{
		{
			aliases: []string{"help", "h"},
			fn:      c.help,
			help: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{
			aliases: []string{"scan", "s"},
			fn:      remote(service.Scan),
			help: `Lists every match of a byte pattern.

	scan <pattern> [module=<name>]

The pattern is written as hex bytes with ?? wildcards, e.g. "48 8B ?? ?? E8".`,
		},
		{
			aliases: []string{"patch", "p"},
			fn:      remote(service.Patch),
			help: `Writes bytes at the first match of a pattern.

	patch <name> "<pattern>" <bytes> [offset=<n>] [module=<name>] [all]

With "all" every match is patched and the command fails unless all of them succeed.`,
		},
		{
			aliases: []string{"detour", "d"},
			fn:      remote(service.Detour),
			help: `Redirects the match of a pattern with a rel32 call or jump.

	detour <name> "<pattern>" <call|jump> <target> [offset=<n>] [module=<name>] [all]`,
		},
		{
			aliases: []string{"restore", "r"},
			fn:      remote(service.Restore),
			help: `Puts back the bytes replaced by a named patch.

	restore <name>`,
		},
		{
			aliases: []string{"repatch", "rp"},
			fn:      remote(service.Repatch),
			help: `Reapplies a restored patch.

	repatch <name>`,
		},
		{
			aliases: []string{"list", "ls"},
			fn:      remote(service.List),
			help: `Lists committed patches, optionally filtered by name prefix.

	list [prefix]`,
		},
		{
			aliases: []string{"find", "f"},
			fn:      remote(service.Find),
			help: `Lists committed patches whose names fuzzily match an expression.

	find <expr>`,
		},
		{
			aliases: []string{"status", "st"},
			fn:      remote(service.Status),
			help:    "Shows how many patches are committed and applied.",
		},
		{
			aliases: []string{"transcript"},
			fn:      transcript,
			help: `Appends command output to a file.

	transcript [-t] [-x] <output file>
	transcript -off

Output of sigpatch's command is appended to the specified output file. If -t is specified and the output file exists it is truncated. If -x is specified output to stdout is suppressed instead.

Using the -off option disables the transcript.`,
		},
		{
			aliases: []string{"exit", "quit", "q"},
			fn:      exit,
			help:    "exit the sigpatch terminal",
		},
	}
	return c
}

func (c *Commands) aliasIndex() *trie.Trie {
	t := trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			t.Add(alias, nil)
		}
	}
	return t
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) command {
	if cmdstr == "" {
		return command{aliases: []string{"nullcmd"}, fn: nullCommand}
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v
		}
	}

	return command{aliases: []string{"nocmd"}, fn: noCmdAvailable}
}

func (c *Commands) Call(cmdStr string, t *Term) error {
	cmd, argStr, _ := strings.Cut(strings.TrimSpace(cmdStr), " ")

	return c.Find(cmd).fn(t, strings.TrimSpace(argStr))
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.help)
				return nil
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.help
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// remote forwards a command to the server.
func remote(cmd service.CmdType) cmdFn {
	return func(t *Term, args string) error {
		out, err := t.client.Send(cmd, args)
		if err != nil {
			return err
		}

		_, err = fmt.Fprint(t.stdout, out)
		return err
	}
}

func transcript(t *Term, args string) error {
	argv := strings.Fields(args)
	truncate := false
	fileOnly := false
	disable := false
	path := ""
	for _, arg := range argv {
		switch arg {
		case "-x":
			fileOnly = true
		case "-t":
			truncate = true
		case "-off":
			disable = true
		default:
			if path != "" || strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unrecognized option %q", arg)
			}
			path = arg
		}
	}

	if disable {
		if path != "" {
			return errors.New("-off option specified with an output path")
		}
		return t.stdout.CloseTranscript()
	}

	if path == "" {
		return errors.New("no output path specified")
	}

	flags := os.O_APPEND | os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(path, flags, 0660)
	if err != nil {
		return err
	}

	if err := t.stdout.CloseTranscript(); err != nil {
		return err
	}

	t.stdout.TranscribeTo(fh, fileOnly)
	return nil
}

type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exit(t *Term, args string) error {
	return ExitRequestError{}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}
