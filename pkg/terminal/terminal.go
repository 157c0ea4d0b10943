package terminal

import (
	"errors"
	"fmt"
	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"io"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"sigpatch/pkg/logflags"
	"sigpatch/service"
	"strings"
	"syscall"
)

const (
	prompt      = "(sigpatch) "
	configDir   = ".sigpatch"
	historyFile = ".sigpatch_history"
)

// Term is an interactive prompt driving a sigpatch server through a Client.
type Term struct {
	client      service.Client
	prompt      string
	line        *liner.State
	cmds        *Commands
	aliases     *trie.Trie
	historyFile *os.File
	stdout      *transcriptWriter
	log         logflags.Logger
}

func New(client service.Client) *Term {
	cmds := NewCommands(client)
	return &Term{
		client:  client,
		line:    liner.NewLiner(),
		prompt:  prompt,
		stdout:  newTranscriptWriter(),
		cmds:    cmds,
		aliases: cmds.aliasIndex(),
		log:     logflags.TerminalLogger(),
	}
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		fmt.Fprintf(t.stdout, "received SIGINT, type 'exit' to leave the terminal\n")
	}
}

func (t *Term) Run() error {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCompleter(t.complete)
	t.openHistory()

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")
	t.stdout.Flush()

	for {
		cmd, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return errors.New("prompt for input failed")
		}
		t.stdout.Echo(t.prompt + cmd + "\n")

		if exit := t.exec(cmd); exit {
			return t.handleExit()
		}
	}
}

// complete offers command aliases for the first word and committed patch
// names for the argument of commands that take one.
func (t *Term) complete(line string) []string {
	cmd, arg, ok := strings.Cut(line, " ")
	if !ok {
		return t.aliases.PrefixSearch(line)
	}
	if strings.Contains(arg, " ") || !t.cmds.Find(cmd).takesName() {
		return nil
	}

	out, err := t.client.Send(service.List, arg)
	if err != nil {
		t.log.Debugf("complete %q: %v", line, err)
		return nil
	}

	var c []string
	for _, row := range strings.Split(strings.TrimSpace(out), "\n") {
		if name, _, _ := strings.Cut(row, "\t"); name != "" {
			c = append(c, cmd+" "+name)
		}
	}
	return c
}

// exec runs one input line and reports whether the user asked to exit.
func (t *Term) exec(cmd string) bool {
	if strings.TrimSpace(cmd) == "" {
		return false
	}

	if err := t.cmds.Call(cmd, t); err != nil {
		if _, ok := err.(ExitRequestError); ok {
			return true
		}

		t.stdout.Colorf(colorRed, "Command failed: %s\n", err)
	}

	t.stdout.Flush()
	return false
}

func (t *Term) Close() {
	t.line.Close()
	if err := t.stdout.CloseTranscript(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing transcript file: %v\n", err)
	}
}

func historyPath() string {
	home := "."
	if usr, err := user.Current(); err == nil {
		home = usr.HomeDir
	}
	return filepath.Join(home, configDir, historyFile)
}

func (t *Term) openHistory() {
	full := historyPath()
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.log.Debugf("create %s: %v", filepath.Dir(full), err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to open history file: %v. History will not be saved for this session.\n", err)
		return
	}
	t.historyFile = f

	if _, err := t.line.ReadHistory(f); err != nil {
		t.log.Debugf("unable to read history file %s: %v", full, err)
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() error {
	if t.historyFile == nil {
		return nil
	}
	defer t.historyFile.Close()

	if _, err := t.historyFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := t.historyFile.Truncate(0); err != nil {
		return err
	}
	if _, err := t.line.WriteHistory(t.historyFile); err != nil {
		return fmt.Errorf("write history: %v", err)
	}
	return nil
}
