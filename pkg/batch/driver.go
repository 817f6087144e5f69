package batch

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/photon-img/photon/pkg/imgproc"
	"github.com/photon-img/photon/pkg/record"
)

// ProcessFunc runs one file through the pipeline. It is the driver's
// only dependency on the orchestrator, kept abstract so this package
// has no import-time coupling to ONNX or any model runtime.
type ProcessFunc func(ctx context.Context, path string) (record.ProcessedImage, error)

// Writer abstracts the two output formats spec §4.12 step 4 describes:
// JSONL appends a record as soon as it arrives; JSON collects
// everything and writes a single array at the end.
type Writer interface {
	Write(record.ProcessedImage) error
	Close() error
}

// Result is one file's outcome, surfaced to the caller for
// summary/logging purposes (errors never abort the batch).
type Result struct {
	Path  string
	Image record.ProcessedImage
	Err   error
}

// Run pre-filters already-processed files by content hash (if
// skipHashes is non-nil), then processes the remainder with up to
// parallel concurrent workers via errgroup.SetLimit, writing each
// success through writer as it completes. Output ordering across files
// is not guaranteed (spec §4.12 step 3).
func Run(ctx context.Context, files []string, parallel int, skipHashes map[string]bool, process ProcessFunc, writer Writer, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if parallel < 1 {
		parallel = 1
	}

	remaining := files
	if skipHashes != nil {
		remaining = preFilter(files, skipHashes, logger)
	}

	results := make([]Result, 0, len(remaining))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, path := range remaining {
		path := path
		g.Go(func() error {
			img, err := process(gctx, path)

			mu.Lock()
			results = append(results, Result{Path: path, Image: img, Err: err})
			mu.Unlock()

			if err != nil {
				logger.Warn("batch: failed to process image", "path", path, "error", err)
				return nil // a single image's failure never aborts the batch
			}
			if writer != nil {
				if werr := writer.Write(img); werr != nil {
					logger.Warn("batch: failed to write record", "path", path, "error", werr)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// preFilter computes each candidate file's BLAKE3 hash streamed from
// disk and drops any whose hash is already in skipHashes, before any
// of them occupy a concurrency slot (spec §4.12 step 2).
func preFilter(files []string, skipHashes map[string]bool, logger *slog.Logger) []string {
	remaining := make([]string, 0, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			logger.Warn("batch: skip-filter could not open file, will attempt processing", "path", path, "error", err)
			remaining = append(remaining, path)
			continue
		}
		hash, err := imgproc.ContentHashFromReader(f)
		f.Close()
		if err != nil {
			logger.Warn("batch: skip-filter failed to hash file, will attempt processing", "path", path, "error", err)
			remaining = append(remaining, path)
			continue
		}
		if skipHashes[hash] {
			continue
		}
		remaining = append(remaining, path)
	}
	return remaining
}

// jsonlWriter appends each record as a line immediately — safe append,
// no rewrite of prior lines.
type jsonlWriter struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// NewJSONLWriter opens path for appending (creating it if absent).
func NewJSONLWriter(path string) (Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &jsonlWriter{f: f, enc: json.NewEncoder(f)}, nil
}

func (w *jsonlWriter) Write(img record.ProcessedImage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(record.NewCoreRecord(img))
}

func (w *jsonlWriter) Close() error { return w.f.Close() }

// jsonArrayWriter collects every record in memory and writes a single
// JSON array on Close, merging in any pre-existing records from a
// skip-existing run (JSON output requires overwrite, not append,
// because a JSON array can't be safely appended to).
type jsonArrayWriter struct {
	mu      sync.Mutex
	path    string
	records []record.ProcessedImage
}

// NewJSONArrayWriter seeds the writer with existing records (for
// --skip-existing merges) and writes the combined array to path on
// Close.
func NewJSONArrayWriter(path string, existing []record.ProcessedImage) Writer {
	return &jsonArrayWriter{path: path, records: append([]record.ProcessedImage(nil), existing...)}
}

func (w *jsonArrayWriter) Write(img record.ProcessedImage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, img)
	return nil
}

func (w *jsonArrayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.MarshalIndent(w.records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0o644)
}
