// Package eventlog is the append-only record of granted recognitions.
// Each row is "YYYY-MM-DD HH:MM:SS,<name>,<confidence>%".
package eventlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one recorded recognition.
type Entry struct {
	At                time.Time
	Name              string
	ConfidencePercent int
}

// Log appends entries to a CSV file. The file is opened per append and
// never truncated.
type Log struct {
	path string
}

// New returns a log writing to path. The parent directory is created on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one row.
func (l *Log) Append(at time.Time, name string, confidencePercent int) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create event log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{
		at.Format(timeLayout),
		name,
		strconv.Itoa(confidencePercent) + "%",
	})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return f.Close()
}

// ReadAll returns every entry in file order. A missing file is an empty log.
// Timestamps are interpreted in loc.
func (l *Log) ReadAll(loc *time.Location) ([]Entry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var entries []Entry
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("event log line %d: %w", line, err)
		}
		e, err := parse(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("event log line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parse(rec []string, loc *time.Location) (Entry, error) {
	at, err := time.ParseInLocation(timeLayout, rec[0], loc)
	if err != nil {
		return Entry{}, err
	}
	conf, err := strconv.Atoi(strings.TrimSuffix(rec[2], "%"))
	if err != nil {
		return Entry{}, fmt.Errorf("invalid confidence %q: %w", rec[2], err)
	}
	return Entry{At: at, Name: rec[1], ConfidencePercent: conf}, nil
}
