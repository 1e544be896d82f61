package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// History is a bounded command history. It satisfies term.History so the
// terminal can page through it with the arrow keys.
type History struct {
	entries []string // oldest first
	max     int
}

// NewHistory creates an empty history holding at most size entries.
func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{max: size}
}

// Add appends entry. Blank lines and repeats of the previous entry are
// dropped, and the oldest entry is evicted once the history is full.
func (h *History) Add(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" || strings.ContainsAny(entry, "\r\n") {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return
	}
	if len(h.entries) == h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.max-1]
	}
	h.entries = append(h.entries, entry)
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// At returns the entry idx steps back; 0 is the most recent.
func (h *History) At(idx int) string {
	if idx < 0 || idx >= len(h.entries) {
		panic(fmt.Sprintf("history index %d out of range [0, %d)", idx, len(h.entries)))
	}
	return h.entries[len(h.entries)-1-idx]
}

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

// LoadHistory reads one entry per line from path. A missing file yields an
// empty history.
func LoadHistory(path string, size int) (*History, error) {
	h := NewHistory(size)
	f, err := os.Open(path) //nolint:gosec // path comes from the user config
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		h.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return h, nil
}

// Save writes the history to path, creating its directory.
func (h *History) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	var sb strings.Builder
	for _, e := range h.entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
