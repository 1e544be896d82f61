package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// lineReader yields input lines. It returns io.EOF when input ends.
type lineReader interface {
	ReadLine() (string, error)
}

// scanReader reads lines from a non-interactive input such as a pipe.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &scanReader{sc: sc}
}

func (s *scanReader) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// terminalIO joins stdin and stdout for term.NewTerminal.
type terminalIO struct {
	io.Reader
	io.Writer
}

// newTerminal puts in into raw mode and returns a line editor backed by
// history. Output must go through the returned terminal while raw mode is
// on. The restore func returns the tty to its previous state.
func newTerminal(in *os.File, out io.Writer, history *History) (*term.Terminal, func(), error) {
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("enable raw mode: %w", err)
	}
	t := term.NewTerminal(terminalIO{Reader: in, Writer: out}, prompt)
	t.History = history
	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}
	restore := func() { _ = term.Restore(fd, state) }
	return t, restore, nil
}
