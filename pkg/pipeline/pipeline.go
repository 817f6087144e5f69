// Package pipeline implements the per-image orchestration sequence from
// spec §4.11: validate, hash, decode, extract EXIF, perceptual-hash,
// thumbnail, preprocess, embed, tag.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/imgproc"
	"github.com/photon-img/photon/pkg/record"
	"github.com/photon-img/photon/pkg/tagging"
	"github.com/photon-img/photon/pkg/visualenc"
)

// VisualEncoder is the subset of visualenc.Encoder the pipeline needs,
// abstracted so tests can substitute a fake that never touches ONNX.
type VisualEncoder interface {
	EmbedPreprocessed(tensor []float32, path string) ([]float32, error)
}

// Limits mirrors spec §6's limits.* block.
type Limits struct {
	MaxFileSizeBytes  int64
	MaxImageDimension int
	DecodeTimeout     time.Duration
	EmbedTimeout      time.Duration
}

// ThumbnailConfig mirrors spec §6's thumbnail.* block.
type ThumbnailConfig struct {
	Enabled bool
	Size    int
	Quality float32
}

// Orchestrator runs one image through the full sequence. The perceptual
// hasher is built once and reused (spec §4.11 step 6).
type Orchestrator struct {
	limits        Limits
	thumbnail     ThumbnailConfig
	imageSize     int
	hasher        *imgproc.Hasher
	visualEncoder VisualEncoder
	tagging       *tagging.Engine // nil disables tagging entirely
	logger        *slog.Logger
}

// New builds an Orchestrator. taggingEngine may be nil (tagging
// disabled or not yet ready); the pipeline then always emits empty
// tags rather than failing.
func New(limits Limits, thumbnail ThumbnailConfig, imageSize int, visualEncoder VisualEncoder, taggingEngine *tagging.Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		limits:        limits,
		thumbnail:     thumbnail,
		imageSize:     imageSize,
		hasher:        imgproc.NewHasher(),
		visualEncoder: visualEncoder,
		tagging:       taggingEngine,
		logger:        logger,
	}
}

// ProcessImage runs the full per-image sequence and returns a
// ProcessedImage, or an error for failures that are fatal to this image
// (validation, file read, decode). An embedding failure or timeout
// degrades to an empty embedding and no tags; tagging and thumbnail
// failures likewise degrade to a zero value instead of failing the image.
func (o *Orchestrator) ProcessImage(ctx context.Context, path string) (record.ProcessedImage, error) {
	if err := imgproc.Validate(path, o.limits.MaxFileSizeBytes); err != nil {
		return record.ProcessedImage{}, err
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return record.ProcessedImage{}, perr.Wrap(perr.StageIO, path, "failed to read file", err)
	}

	contentHash := imgproc.ContentHashFromBytes(buf)

	decoded, err := o.decodeWithTimeout(ctx, buf, path)
	if err != nil {
		return record.ProcessedImage{}, err
	}

	img := record.ProcessedImage{
		FilePath:    path,
		FileName:    filepath.Base(path),
		ContentHash: contentHash,
		Width:       decoded.Width,
		Height:      decoded.Height,
		Format:      decoded.Format,
		FileSize:    int64(len(buf)),
		Tags:        []record.Tag{},
	}

	img.Exif = imgproc.ExtractEXIF(path)

	hash := o.hasher.Hash(decoded.Image)
	img.PerceptualHash = &hash

	if o.thumbnail.Enabled {
		if thumb, err := imgproc.Thumbnail(decoded.Image, o.thumbnail.Size, o.thumbnail.Quality); err == nil {
			img.Thumbnail = &thumb
		} else {
			o.logger.Warn("thumbnail encoding failed, continuing without one", "path", path, "error", err)
		}
	}

	tensor := visualenc.Preprocess(decoded.Image, o.imageSize)
	embedding, err := o.embedWithTimeout(ctx, tensor, path)
	if err != nil {
		o.logger.Warn("embedding failed, continuing with empty embedding and no tags", "path", path, "error", err)
		embedding = nil
	}
	img.Embedding = embedding

	if o.tagging != nil && len(embedding) > 0 {
		tags, err := o.tagging.TagImage(embedding)
		if err != nil {
			o.logger.Warn("tagging failed, continuing with empty tags", "path", path, "error", err)
		} else {
			img.Tags = tags
		}
	}

	return img, nil
}

func (o *Orchestrator) decodeWithTimeout(ctx context.Context, buf []byte, path string) (imgproc.Decoded, error) {
	type result struct {
		decoded imgproc.Decoded
		err     error
	}
	done := make(chan result, 1)
	go func() {
		decoded, err := imgproc.DecodeFromBytes(buf, path, o.limits.MaxImageDimension)
		done <- result{decoded, err}
	}()

	timeout := o.limits.DecodeTimeout
	if timeout <= 0 {
		r := <-done
		return r.decoded, r.err
	}

	select {
	case r := <-done:
		return r.decoded, r.err
	case <-time.After(timeout):
		return imgproc.Decoded{}, perr.DecodeTimeout(path)
	case <-ctx.Done():
		return imgproc.Decoded{}, fmt.Errorf("pipeline: %s: %w", path, ctx.Err())
	}
}

func (o *Orchestrator) embedWithTimeout(ctx context.Context, tensor []float32, path string) ([]float32, error) {
	type result struct {
		embedding []float32
		err       error
	}
	done := make(chan result, 1)
	go func() {
		embedding, err := o.visualEncoder.EmbedPreprocessed(tensor, path)
		done <- result{embedding, err}
	}()

	timeout := o.limits.EmbedTimeout
	if timeout <= 0 {
		r := <-done
		return r.embedding, r.err
	}

	select {
	case r := <-done:
		return r.embedding, r.err
	case <-time.After(timeout):
		return nil, perr.EmbeddingTimeout(path)
	case <-ctx.Done():
		return nil, fmt.Errorf("pipeline: %s: %w", path, ctx.Err())
	}
}
