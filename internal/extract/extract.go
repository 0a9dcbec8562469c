// Package extract materializes payload trees into real files.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
)

const (
	// DefaultWorkers bounds concurrent file writes.
	DefaultWorkers = 4
	// MaxDepth bounds directory nesting in a payload tree.
	MaxDepth = 64
	// DefaultMaxFileBytes bounds the decompressed size of one file.
	DefaultMaxFileBytes int64 = 256 << 20
)

// Stats summarizes one extraction.
type Stats struct {
	Dirs  int64
	Files int64
	Bytes int64
}

// Extractor writes payload trees under a target directory.
type Extractor struct {
	workers  int
	maxBytes int64
	logger   *zap.Logger
}

// New creates an extractor with at most workers concurrent file writes.
func New(workers int, logger *zap.Logger) *Extractor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		workers:  workers,
		maxBytes: DefaultMaxFileBytes,
		logger:   logger.Named("extract"),
	}
}

// WithMaxFileBytes caps the decompressed size of each file. Values <= 0
// restore the default.
func (e *Extractor) WithMaxFileBytes(n int64) *Extractor {
	if n <= 0 {
		n = DefaultMaxFileBytes
	}
	e.maxBytes = n
	return e
}

type item struct {
	node  *bundle.Node
	dir   string
	depth int
}

type write struct {
	path    string
	rel     string
	content string
}

// Extract walks nodes with an explicit stack, creating directories and
// writing decoded files under target. Existing files are overwritten, and when
// a tree names the same file twice the later node wins. Every
// failing node is reported in the returned error, which wraps
// bundle.ErrExtraction; files already written are left in place.
func (e *Extractor) Extract(ctx context.Context, nodes []*bundle.Node, target string) (Stats, error) {
	var (
		stats Stats
		dirs  atomic.Int64
		files atomic.Int64
		bytes atomic.Int64

		mu   sync.Mutex
		merr *multierror.Error
	)

	fail := func(path string, err error) {
		mu.Lock()
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", path, err))
		mu.Unlock()
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return stats, fmt.Errorf("%w: %v", bundle.ErrExtraction, err)
	}

	var (
		writes []write
		seen   = make(map[string]int)
	)

	stack := make([]item, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, item{node: nodes[i], dir: target})
	}

	for len(stack) > 0 && ctx.Err() == nil {

		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.node == nil {
			fail(it.dir, fmt.Errorf("nil node"))
			continue
		}
		rel := relative(target, filepath.Join(it.dir, it.node.Name))
		if err := utils.ValidateNodeName(it.node.Name); err != nil {
			fail(rel, err)
			continue
		}
		path := filepath.Join(it.dir, it.node.Name)

		if it.node.IsDir() {
			if it.depth >= MaxDepth {
				fail(rel, fmt.Errorf("nesting deeper than %d", MaxDepth))
				continue
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				fail(rel, err)
				continue
			}
			dirs.Add(1)
			for i := len(it.node.Files) - 1; i >= 0; i-- {
				stack = append(stack, item{node: it.node.Files[i], dir: path, depth: it.depth + 1})
			}
			continue
		}

		if i, ok := seen[path]; ok {
			writes[i].content = it.node.Content
			continue
		}
		seen[path] = len(writes)
		writes = append(writes, write{path: path, rel: rel, content: it.node.Content})
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, w := range writes {
		w := w
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := writeFile(w.path, w.content, e.maxBytes)
			if err != nil {
				fail(w.rel, err)
				return nil
			}
			files.Add(1)
			bytes.Add(n)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		fail(target, err)
	}

	stats = Stats{Dirs: dirs.Load(), Files: files.Load(), Bytes: bytes.Load()}
	if err := merr.ErrorOrNil(); err != nil {
		e.logger.Warn("Payload extraction failed",
			zap.String("target", target),
			zap.Int("failures", merr.Len()),
			zap.Error(err),
		)
		return stats, fmt.Errorf("%w: %w", bundle.ErrExtraction, err)
	}

	e.logger.Debug("Payload extracted",
		zap.String("target", target),
		zap.Int64("dirs", stats.Dirs),
		zap.Int64("files", stats.Files),
		zap.Int64("bytes", stats.Bytes),
	)
	return stats, nil
}

// Decode turns base64(gzip(bytes)) content into a reader of the original bytes.
func Decode(content string) (io.ReadCloser, error) {
	raw := base64.NewDecoder(base64.StdEncoding, strings.NewReader(content))
	zr, err := gzip.NewReader(raw)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return zr, nil
}

func writeFile(path, content string, limit int64) (int64, error) {
	zr, err := Decode(content)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, io.LimitReader(zr, limit+1))
	if err != nil {
		f.Close()
		return n, fmt.Errorf("decode content: %w", err)
	}
	if n > limit {
		f.Close()
		return n, fmt.Errorf("decoded content exceeds %d bytes", limit)
	}
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}

func relative(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
