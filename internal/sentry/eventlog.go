package sentry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cursors maps an event file name to the number of its lines already folded.
type Cursors struct {
	Cursors map[string]int `json:"cursors"`
}

func NewCursors() *Cursors { return &Cursors{Cursors: map[string]int{}} }

// EventLog is a directory of append-only NDJSON files, read in file-name
// order then line order.
type EventLog struct {
	dir string
	mu  sync.Mutex
}

func NewEventLog(dir string) *EventLog { return &EventLog{dir: dir} }

func (l *EventLog) Dir() string { return l.dir }

func isEventFile(name string) bool {
	return strings.HasSuffix(name, ".ndjson") || strings.HasSuffix(name, ".jsonl")
}

// Files lists event files in processing order.
func (l *EventLog) Files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && isEventFile(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// LineFunc receives one complete line. Returning an error stops the scan
// without advancing past that line.
type LineFunc func(file string, lineNo int, line []byte) error

// Scan feeds every line past the cursors to fn and advances the cursor for
// each consumed line. A trailing line without a newline is still being
// written and is left for the next scan.
func (l *EventLog) Scan(ctx context.Context, cur *Cursors, fn LineFunc) error {
	if cur.Cursors == nil {
		cur.Cursors = map[string]int{}
	}
	files, err := l.Files()
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	for _, name := range files {
		if err := l.scanFile(ctx, name, cur, fn); err != nil {
			return err
		}
	}
	return nil
}

func (l *EventLog) scanFile(ctx context.Context, name string, cur *Cursors, fn LineFunc) error {
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	start := cur.Cursors[name]
	lineNo := 0
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		lineNo++
		if lineNo <= start {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(name, lineNo, bytes.TrimSpace(line)); err != nil {
			return err
		}
		cur.Cursors[name] = lineNo
	}
}

// Append writes events to the day file for now, one JSON object per line.
func (l *EventLog) Append(events []Event, now time.Time) (string, error) {
	if len(events) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return "", fmt.Errorf("encode event %d: %w", i, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", err
	}
	name := now.UTC().Format("2006-01-02") + ".ndjson"
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return "", err
	}
	return name, f.Close()
}
