// Package archive keeps fetched match details in rotating JSONL files.
//
// Files move through three directories: hot (being written), warm (closed)
// and cold (gzipped).
package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"rift-tracker/internal/logging"
	"rift-tracker/internal/riot"
)

const (
	DefaultMaxMatches = 1000
	DefaultMaxAge     = time.Hour
)

// Rotator appends match details to the hot file and rotates it to warm
// after maxMatches lines or maxAge, whichever comes first.
type Rotator struct {
	mu sync.Mutex

	hotDir  string
	warmDir string
	coldDir string

	maxMatches int
	maxAge     time.Duration

	file     *os.File
	writer   *bufio.Writer
	path     string
	count    int
	openedAt time.Time

	now func() time.Time
	log *slog.Logger
}

// Option configures a Rotator
type Option func(*Rotator)

// WithMaxMatches sets how many matches a file holds before rotation.
func WithMaxMatches(n int) Option {
	return func(r *Rotator) {
		if n > 0 {
			r.maxMatches = n
		}
	}
}

// WithMaxAge sets how long a file stays hot before rotation.
func WithMaxAge(d time.Duration) Option {
	return func(r *Rotator) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

// NewRotator creates hot, warm and cold under baseDir and opens a hot file.
func NewRotator(baseDir string, opts ...Option) (*Rotator, error) {
	r := &Rotator{
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		maxMatches: DefaultMaxMatches,
		maxAge:     DefaultMaxAge,
		now:        time.Now,
		log:        logging.Tagged(nil, "archive"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ArchiveMatch appends detail as one line, using the fetched payload when the
// detail carries one. Its signature matches ingest.MatchSink.
func (r *Rotator) ArchiveMatch(_ context.Context, puuid string, detail *riot.MatchResponse) error {
	payload := []byte(detail.Raw())
	if len(payload) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, payload); err != nil {
			return fmt.Errorf("failed to compact match detail: %w", err)
		}
		payload = buf.Bytes()
	} else {
		var err error
		if payload, err = json.Marshal(detail); err != nil {
			return fmt.Errorf("failed to marshal match detail: %w", err)
		}
	}
	line, err := json.Marshal(RawMatch{
		MatchID:   detail.Metadata.MatchID,
		PUUID:     puuid,
		FetchedAt: r.now().UTC(),
		Detail:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("archive is closed")
	}
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	r.count++
	if r.count >= r.maxMatches || r.now().Sub(r.openedAt) >= r.maxAge {
		return r.rotate()
	}
	return nil
}

// rotate moves the current file to warm and opens a fresh hot file.
// Callers hold r.mu.
func (r *Rotator) rotate() error {
	if err := r.closeCurrent(); err != nil {
		return err
	}

	name := fmt.Sprintf("raw_matches_%s_%s.jsonl", r.now().Format("2006-01-02_15-04-05"), uuid.NewString()[:8])
	path := filepath.Join(r.hotDir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	r.file = file
	r.writer = bufio.NewWriterSize(file, 64*1024)
	r.path = path
	r.count = 0
	r.openedAt = r.now()
	r.log.Debug("opened archive file", "file", name)
	return nil
}

// closeCurrent closes the hot file, moving it to warm when it holds data
// and removing it otherwise.
func (r *Rotator) closeCurrent() error {
	if r.file == nil {
		return nil
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	r.file = nil

	name := filepath.Base(r.path)
	if r.count == 0 {
		return os.Remove(r.path)
	}
	if err := os.Rename(r.path, filepath.Join(r.warmDir, name)); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.log.Info("moved archive file to warm", "file", name, "matches", r.count)
	return nil
}

// Close flushes and retires the hot file. Further ArchiveMatch calls fail.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCurrent()
}

// Stats reports the match count and name of the hot file.
func (r *Rotator) Stats() (matches int, file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, filepath.Base(r.path)
}

// CompressWarm gzips every warm file into the cold directory and returns
// how many were compressed.
func (r *Rotator) CompressWarm(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(r.warmDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list warm files: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := CompressToCold(filepath.Join(r.warmDir, e.Name()), r.coldDir); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		r.log.Info("compressed warm files", "files", n)
	}
	return n, nil
}

// CompressToCold gzips warmPath into coldDir and removes the original.
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", warmPath, err)
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.Remove(warmPath)
}
