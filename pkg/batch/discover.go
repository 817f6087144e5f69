// Package batch drives concurrent processing of a discovered file list:
// directory walking, skip-existing pre-filtering, bounded concurrent
// dispatch to the pipeline orchestrator, and output writing (spec
// §4.12).
package batch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultMaxDepth bounds directory descent so a symlink cycle or a
// pathologically deep tree can't run away.
const DefaultMaxDepth = 64

var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
}

// Discover walks each root (file or directory) and returns every image
// file found. Directory walks are depth-limited and cycle-safe
// (filepath.WalkDir never follows symlinks, so cycles can't occur via
// the walk itself); permission errors on individual entries are logged
// and skipped, never fatal.
func Discover(ctx context.Context, roots []string, maxDepth int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var files []string
	seen := make(map[string]bool)

	for _, root := range roots {
		root = filepath.Clean(root)
		rootDepth := strings.Count(root, string(filepath.Separator))

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				if path == root {
					return err
				}
				logger.Warn("batch: skipping unreadable entry", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
				if depth >= maxDepth {
					return fs.SkipDir
				}
				return nil
			}

			if !imageExt[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return files, err
		}
	}
	return files, nil
}
