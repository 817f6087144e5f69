// Package enrich runs the second-pass LLM description stage (spec
// §4.13): for each Core record, read the file, ask a Provider to
// describe it given its detected tags, and emit an EnrichmentPatch
// keyed by content hash.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/record"
)

// GenerateResult is one successful provider call.
type GenerateResult struct {
	Text    string
	Model   string
	Tokens  int
	Latency time.Duration
}

// Provider is the abstract LLM capability every concrete backend
// (anthropic, openai, bedrock) implements. Providers must NOT apply
// their own request timeout — the enricher's timeout is the sole one
// (spec §4.13 step 3).
type Provider interface {
	Generate(ctx context.Context, imageBytes []byte, mediaType, prompt string) (GenerateResult, error)
}

// Options mirrors spec §4.13's option bag.
type Options struct {
	Parallel       int // clamped to [1, 8]
	Timeout        time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxFileSizeMB  int64
}

func (o Options) clamp() Options {
	if o.Parallel < 1 {
		o.Parallel = 1
	}
	if o.Parallel > 8 {
		o.Parallel = 8
	}
	if o.MaxFileSizeMB <= 0 {
		o.MaxFileSizeMB = 100
	}
	return o
}

// ResultCallback receives one EnrichmentPatch, or an error if the
// image could not be enriched. It runs after the concurrency permit
// has already been released (spec §4.13 step 5) so a slow or panicking
// callback never stalls or leaks a permit.
type ResultCallback func(patch record.EnrichmentPatch, err error)

// patchBufferSize is the bound on the result channel used internally
// by Run, applying backpressure to the producer (spec §4.13).
const patchBufferSize = 64

// Run enriches each image concurrently (bounded by Options.Parallel)
// and invokes callback once per image. It returns once every image has
// been attempted.
func Run(ctx context.Context, images []record.ProcessedImage, provider Provider, opts Options, callback ResultCallback, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.clamp()

	sem := semaphore.NewWeighted(int64(opts.Parallel))
	results := make(chan struct {
		patch record.EnrichmentPatch
		err   error
	}, patchBufferSize)

	go func() {
		for _, img := range images {
			img := img
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- struct {
					patch record.EnrichmentPatch
					err   error
				}{record.EnrichmentPatch{ContentHash: img.ContentHash}, err}
				continue
			}
			go func() {
				patch, err := enrichOne(ctx, img, provider, opts, logger)
				sem.Release(1)
				results <- struct {
					patch record.EnrichmentPatch
					err   error
				}{patch, err}
			}()
		}
	}()

	for range images {
		r := <-results
		callback(r.patch, r.err)
	}
}

func enrichOne(ctx context.Context, img record.ProcessedImage, provider Provider, opts Options, logger *slog.Logger) (record.EnrichmentPatch, error) {
	info, err := os.Stat(img.FilePath)
	if err != nil {
		return record.EnrichmentPatch{}, perr.Wrap(perr.StageIO, img.FilePath, "failed to stat file for enrichment", err)
	}
	if info.Size() > opts.MaxFileSizeMB*1024*1024 {
		return record.EnrichmentPatch{}, perr.New(perr.StageValidation, img.FilePath, fmt.Sprintf("file size %d exceeds enrichment limit of %d MB", info.Size(), opts.MaxFileSizeMB))
	}

	buf, err := os.ReadFile(img.FilePath)
	if err != nil {
		return record.EnrichmentPatch{}, perr.Wrap(perr.StageIO, img.FilePath, "failed to read file for enrichment", err)
	}

	prompt := buildPrompt(img)
	mediaType := mediaTypeForFormat(img.Format)

	result, err := callWithRetry(ctx, provider, buf, mediaType, prompt, opts, logger, img.FilePath)
	if err != nil {
		return record.EnrichmentPatch{}, err
	}

	return record.EnrichmentPatch{
		ContentHash:  img.ContentHash,
		Description:  result.Text,
		LlmModel:     result.Model,
		LlmLatencyMs: result.Latency.Milliseconds(),
	}, nil
}

// buildPrompt includes the detected tag names as context, per spec
// §4.13 step 2.
func buildPrompt(img record.ProcessedImage) string {
	if len(img.Tags) == 0 {
		return "Describe this image in one or two sentences."
	}
	names := make([]string, len(img.Tags))
	for i, t := range img.Tags {
		names[i] = t.Name
	}
	return fmt.Sprintf("Describe this image in one or two sentences. Detected subjects: %s.", strings.Join(names, ", "))
}

func mediaTypeForFormat(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff", "tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// callWithRetry wraps provider.Generate in the enricher's sole timeout
// (spec §4.13 step 3), then classifies failures and retries with
// linear backoff up to opts.RetryAttempts (step 4).
func callWithRetry(ctx context.Context, provider Provider, imageBytes []byte, mediaType, prompt string, opts Options, logger *slog.Logger, path string) (GenerateResult, error) {
	operation := func() (GenerateResult, error) {
		callCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		start := time.Now()
		result, err := provider.Generate(callCtx, imageBytes, mediaType, prompt)
		if err != nil {
			if callCtx.Err() != nil {
				return GenerateResult{}, asLLMError(err, path, true)
			}
			llmErr := asLLMError(err, path, false)
			if !llmErr.Retryable() {
				return GenerateResult{}, backoff.Permanent(llmErr)
			}
			return GenerateResult{}, llmErr
		}
		result.Latency = time.Since(start)
		return result, nil
	}

	maxTries := uint(opts.RetryAttempts)
	if maxTries == 0 {
		maxTries = 1
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newLinearBackOff(opts.RetryDelay)),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		logger.Warn("enrich: provider call failed after retries", "path", path, "error", err)
		return GenerateResult{}, err
	}
	return result, nil
}

func asLLMError(err error, path string, timeout bool) *perr.LLMError {
	if le, ok := err.(*perr.LLMError); ok {
		return le
	}
	if timeout {
		return &perr.LLMError{Message: "request timed out", Cause: err}
	}
	return &perr.LLMError{Message: err.Error(), Cause: err}
}

// linearBackOff increases its delay by the configured step each
// attempt, rather than backoff's default exponential growth — spec
// §4.13 step 4 calls for linear backoff.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	if step <= 0 {
		step = 500 * time.Millisecond
	}
	return &linearBackOff{step: step}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
