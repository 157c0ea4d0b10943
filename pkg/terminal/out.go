package terminal

import (
	"bufio"
	"fmt"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"io"
	"os"
)

const (
	colorRed = 31

	terminalHighlightEscapeCode = "\033[%2dm"
	terminalResetEscapeCode     = "\033[0m"
)

// transcriptWriter writes to the terminal and, while a transcript is open,
// copies everything to the transcript file.
type transcriptWriter struct {
	w            io.Writer
	file         *bufio.Writer
	fh           io.Closer
	fileOnly     bool
	colorEscapes bool
}

func newTranscriptWriter() *transcriptWriter {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return &transcriptWriter{w: colorable.NewColorableStdout(), colorEscapes: true}
	}
	return &transcriptWriter{w: os.Stdout}
}

func (w *transcriptWriter) Write(p []byte) (int, error) {
	if w.file != nil {
		w.file.Write(p)
	}
	if w.fileOnly {
		return len(p), nil
	}
	return w.w.Write(p)
}

// Echo outputs str only to the transcript file.
func (w *transcriptWriter) Echo(str string) {
	if w.file != nil {
		w.file.WriteString(str)
	}
}

// Colorf writes a formatted line highlighted with color when the terminal
// supports it.
func (w *transcriptWriter) Colorf(color int, format string, args ...interface{}) {
	if w.colorEscapes {
		fmt.Fprintf(w.w, terminalHighlightEscapeCode, color)
		defer fmt.Fprint(w.w, terminalResetEscapeCode)
	}
	fmt.Fprintf(w, format, args...)
}

// Flush flushes the transcript file.
func (w *transcriptWriter) Flush() {
	if w.file != nil {
		w.file.Flush()
	}
}

// CloseTranscript closes the current transcript file.
func (w *transcriptWriter) CloseTranscript() error {
	if w.file == nil {
		return nil
	}
	w.file.Flush()
	w.fileOnly = false
	err := w.fh.Close()
	w.file = nil
	w.fh = nil
	return err
}

// TranscribeTo starts transcribing the output to the specified file. If
// fileOnly is true the output will only go to the file, output to the
// terminal will be suppressed.
func (w *transcriptWriter) TranscribeTo(fh io.WriteCloser, fileOnly bool) {
	if w.file != nil {
		w.CloseTranscript()
	}
	w.fh = fh
	w.file = bufio.NewWriter(fh)
	w.fileOnly = fileOnly
}
