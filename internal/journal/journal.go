package journal

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saviobatista/flightboard/internal/broadcast"
	"github.com/saviobatista/flightboard/internal/logger"
)

const dayLayout = "2006-01-02"

// ErrStopped is returned by Forward after Stop
var ErrStopped = errors.New("journal is stopped")

// Entry is one journaled event
type Entry struct {
	At    time.Time       `json:"at"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Journal appends relayed events to one JSON-lines file per UTC day.
// When the day changes the previous file is gzip-compressed.
type Journal struct {
	outputDir string
	log       logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	file    *os.File
	day     string
	stopped bool
}

// New creates a journal writing under outputDir
func New(outputDir string, log logger.Logger) *Journal {
	return &Journal{outputDir: outputDir, log: log, now: time.Now}
}

// SetClock replaces the clock used to stamp and rotate entries
func (j *Journal) SetClock(now func() time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.now = now
}

// Start creates the output directory and opens today's file
func (j *Journal) Start() error {
	if err := os.MkdirAll(j.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopped = false
	return j.openDay(j.now().UTC().Format(dayLayout))
}

// Stop closes the current file. Later writes fail with ErrStopped.
func (j *Journal) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stopped = true

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Forward appends msg to the journal, rotating first if the day changed
func (j *Journal) Forward(_ context.Context, msg broadcast.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped {
		return ErrStopped
	}
	at := j.now().UTC()
	if day := at.Format(dayLayout); day != j.day || j.file == nil {
		if err := j.rotate(day); err != nil {
			return err
		}
	}

	line, err := json.Marshal(Entry{At: at, Event: msg.Name, Data: msg.Data})
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

// Path returns the uncompressed file for day
func Path(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("events_%s.jsonl", day.UTC().Format(dayLayout)))
}

// rotate must be called with j.mu held
func (j *Journal) rotate(day string) error {
	previous := j.day
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			j.log.Warn("failed to close journal file", "day", previous, "error", err)
		}
		j.file = nil
	}

	if previous != "" && previous != day {
		name := filepath.Join(j.outputDir, fmt.Sprintf("events_%s.jsonl", previous))
		if err := compressFile(name); err != nil {
			j.log.Error("failed to compress journal file", "file", name, "error", err)
		} else {
			j.log.Info("journal rotated", "compressed", name+".gz")
		}
	}

	return j.openDay(day)
}

// openDay must be called with j.mu held
func (j *Journal) openDay(day string) error {
	name := filepath.Join(j.outputDir, fmt.Sprintf("events_%s.jsonl", day))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 - name is built from the configured directory
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	j.file = file
	j.day = day
	return nil
}

// compressFile gzips path into path.gz and removes the original
func compressFile(path string) error {
	source, err := os.Open(path) // #nosec G304 - path is built from the configured directory
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gz := gzip.NewWriter(target)
	if _, err := io.Copy(gz, source); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	source.Close()
	return os.Remove(path)
}

// Read returns the entries journaled on day, from either the plain or the
// compressed file
func Read(dir string, day time.Time) ([]Entry, error) {
	path := Path(dir, day)

	var r io.Reader
	file, err := os.Open(path) // #nosec G304 - path is built from the caller's directory
	if errors.Is(err, os.ErrNotExist) {
		file, err = os.Open(path + ".gz") // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("no journal for %s: %w", day.UTC().Format(dayLayout), err)
		}
		defer file.Close()
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed journal: %w", err)
		}
		defer gz.Close()
		r = gz
	} else if err != nil {
		return nil, err
	} else {
		defer file.Close()
		r = file
	}

	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("malformed journal line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
