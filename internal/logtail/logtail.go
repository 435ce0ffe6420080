// Package logtail reads the end of songbook's slog text log, optionally
// keeping only records at or above a level.
package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Options select which lines Read returns.
type Options struct {
	// Lines caps the result to the last Lines matching lines; <= 0 means all.
	Lines int
	// MinLevel drops records below this level; the zero value is Info.
	// Lines without a level= attribute are always kept.
	MinLevel slog.Level
}

// Read returns the matching lines from the end of the file at path. A
// missing file yields no lines.
func Read(path string, opts Options) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var ring []string
	if opts.Lines > 0 {
		ring = make([]string, 0, opts.Lines)
	}
	start := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if lvl, ok := LineLevel(line); ok && lvl < opts.MinLevel {
			continue
		}
		if opts.Lines <= 0 || len(ring) < opts.Lines {
			ring = append(ring, line)
			continue
		}
		ring[start] = line
		start = (start + 1) % opts.Lines
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if start == 0 {
		return ring, nil
	}
	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[start:]...)
	return append(lines, ring[:start]...), nil
}

// LineLevel extracts the level attribute of a slog text record.
func LineLevel(line string) (slog.Level, bool) {
	idx := strings.Index(line, "level=")
	if idx < 0 {
		return 0, false
	}
	value := line[idx+len("level="):]
	if end := strings.IndexByte(value, ' '); end >= 0 {
		value = value[:end]
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(value)); err != nil {
		return 0, false
	}
	return lvl, true
}
