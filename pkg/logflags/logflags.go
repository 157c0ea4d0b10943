package logflags

import (
	"fmt"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"io"
	"os"
	"strings"
)

// DefaultLogDesc sends logs to stderr.
const DefaultLogDesc = ""

var (
	patcher  = false
	http     = false
	grpc     = false
	terminal = false

	logOut  io.WriteCloser = nopCloser{os.Stderr}
	colored                = false
)

// Logger is the logging interface used across sigpatch. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Patcher returns true if the patcher should log.
func Patcher() bool {
	return patcher
}

// HTTP returns true if the http server should log.
func HTTP() bool {
	return http
}

// GRPC returns true if the grpc server should log.
func GRPC() bool {
	return grpc
}

// Terminal returns true if the terminal should log.
func Terminal() bool {
	return terminal
}

// Setup sets the logging flags. logStr is a comma separated list of the
// loggers to enable, logDest a file path that replaces stderr.
func Setup(flag bool, logStr, logDest string) error {
	patcher, http, grpc, terminal = false, false, false, false

	if err := setupOutput(logDest); err != nil {
		return err
	}

	if !flag {
		return nil
	}
	if logStr == "" {
		logStr = "patcher"
	}

	for _, name := range strings.Split(logStr, ",") {
		switch strings.TrimSpace(name) {
		case "patcher":
			patcher = true
		case "http":
			http = true
		case "grpc":
			grpc = true
		case "terminal":
			terminal = true
		case "":
		default:
			return fmt.Errorf("unknown logger %q", name)
		}
	}
	return nil
}

func setupOutput(logDest string) error {
	if logOut != nil {
		logOut.Close()
	}

	if logDest == "" {
		colored = isatty.IsTerminal(os.Stderr.Fd())
		if colored {
			logOut = nopCloser{colorable.NewColorableStderr()}
		} else {
			logOut = nopCloser{os.Stderr}
		}
		return nil
	}

	f, err := os.OpenFile(logDest, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logOut = nopCloser{os.Stderr}
		return fmt.Errorf("could not open log file %s: %v", logDest, err)
	}
	logOut = f
	colored = false
	return nil
}

// Close closes the log file opened by Setup, if any.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
	logOut = nopCloser{os.Stderr}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
