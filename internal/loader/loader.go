// Package loader imports CommonCrawl-style graph dumps into a sqlite
// snapshot.
//
// Vertex files hold one vertex per line as "id<TAB>reversed_label", with
// any further columns ignored. Arc files hold "src<TAB>dst". Either may be
// gzip compressed; compression is detected from the file header. Blank
// lines and lines starting with '#' are skipped.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"ccgraph/internal/repository/sqlite"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 50000

// Metadata keys written after an import.
const (
	MetaVersion    = "snapshot_version"
	MetaImportedAt = "imported_at"
)

// Options configures a Loader.
type Options struct {
	BatchSize int
	Logger    *slog.Logger
	// Progress is called after each committed batch
	Progress func(kind string, rows int64)
}

// Stats summarizes an import.
type Stats struct {
	Vertices int64         `json:"vertices"`
	Arcs     int64         `json:"arcs"`
	Duration time.Duration `json:"duration"`
}

// Loader writes parsed rows into a sqlite repository.
type Loader struct {
	repo *sqlite.Repository
	opts Options
}

// New creates a loader for repo.
func New(repo *sqlite.Repository, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{repo: repo, opts: opts}
}

// ImportSnapshot loads a vertex file and an arc file, then records version
// in the snapshot metadata.
func (l *Loader) ImportSnapshot(ctx context.Context, verticesPath, arcsPath, version string) (Stats, error) {
	start := time.Now()
	var stats Stats

	n, err := l.importFile(ctx, verticesPath, l.ImportVertices)
	if err != nil {
		return stats, err
	}
	stats.Vertices = n

	if arcsPath != "" {
		n, err = l.importFile(ctx, arcsPath, l.ImportArcs)
		if err != nil {
			return stats, err
		}
		stats.Arcs = n
	}

	if version != "" {
		if err := l.repo.SetMetadata(ctx, MetaVersion, version); err != nil {
			return stats, err
		}
	}
	if err := l.repo.SetMetadata(ctx, MetaImportedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	l.opts.Logger.Info("snapshot imported",
		"vertices", stats.Vertices, "arcs", stats.Arcs, "duration", stats.Duration)
	return stats, nil
}

func (l *Loader) importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int64, error)) (int64, error) {
	rc, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := load(ctx, rc)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// ImportVertices reads vertex rows from r.
func (l *Loader) ImportVertices(ctx context.Context, r io.Reader) (int64, error) {
	return l.run(ctx, "vertices", r, func(im *sqlite.Import, fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("want id and label, got %d fields", len(fields))
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad vertex id %q", fields[0])
		}
		return im.AddVertex(ctx, id, fields[1])
	})
}

// ImportArcs reads arc rows from r.
func (l *Loader) ImportArcs(ctx context.Context, r io.Reader) (int64, error) {
	return l.run(ctx, "arcs", r, func(im *sqlite.Import, fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("want src and dst, got %d fields", len(fields))
		}
		src, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad arc source %q", fields[0])
		}
		dst, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad arc target %q", fields[1])
		}
		return im.AddArc(ctx, src, dst)
	})
}

// run feeds each data line of r to row, committing every BatchSize rows.
func (l *Loader) run(ctx context.Context, kind string, r io.Reader, row func(*sqlite.Import, []string) error) (int64, error) {
	im, err := l.repo.BeginImport(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if im != nil {
			im.Rollback()
		}
	}()

	var total, pending int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := row(im, strings.Split(text, "\t")); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		pending++

		if pending >= int64(l.opts.BatchSize) {
			if err := im.Commit(); err != nil {
				return total, err
			}
			total += pending
			pending = 0
			l.progress(kind, total)

			if err := ctx.Err(); err != nil {
				return total, err
			}
			next, err := l.repo.BeginImport(ctx)
			if err != nil {
				im = nil
				return total, err
			}
			im = next
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read %s: %w", kind, err)
	}

	if err := im.Commit(); err != nil {
		return total, err
	}
	total += pending
	l.progress(kind, total)
	return total, nil
}

func (l *Loader) progress(kind string, rows int64) {
	l.opts.Logger.Debug("import progress", "kind", kind, "rows", rows)
	if l.opts.Progress != nil {
		l.opts.Progress(kind, rows)
	}
}

// Open opens path for reading, transparently decompressing gzip.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(2)
	if !bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
