// Package perr defines Photon's error taxonomy. Errors are typed by
// Stage so callers can classify without string matching, and every kind
// that can be attributed to a file carries its path for traceability.
package perr

import "fmt"

// Stage names one of the kinds in spec §7. It is not a type name, just
// a label used for logging and the "{stage}: {message}" user surface.
type Stage string

const (
	StageValidation Stage = "Validation"
	StageDecode     Stage = "Decode"
	StageMetadata   Stage = "Metadata"
	StageEmbedding  Stage = "Embedding"
	StageTagging    Stage = "Tagging"
	StageModel      Stage = "Model"
	StageLLM        Stage = "LLM"
	StageConfig     Stage = "Config"
	StageIO         Stage = "I/O"
)

// Error is Photon's uniform error envelope. Hint is an optional
// one-line remediation suggestion shown alongside Message.
type Error struct {
	Stage   Stage
	Path    string
	Message string
	Hint    string
	Cause   error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s → Hint: %s", msg, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(stage Stage, path, message string) *Error {
	return &Error{Stage: stage, Path: path, Message: message}
}

func Wrap(stage Stage, path, message string, cause error) *Error {
	return &Error{Stage: stage, Path: path, Message: message, Cause: cause}
}

func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// FileNotFound, FileTooLarge, UnsupportedFormat, ImageTooLarge are the
// Validation-stage kinds from spec §4.11 step 1 / §7.
func FileNotFound(path string, cause error) *Error {
	return Wrap(StageValidation, path, "file not found", cause)
}

func FileTooLarge(path string, size, limit int64) *Error {
	return New(StageValidation, path, fmt.Sprintf("file size %d exceeds limit %d bytes", size, limit))
}

func UnsupportedFormat(path string) *Error {
	return New(StageValidation, path, "unsupported or unrecognized image format")
}

func ImageTooLarge(path string, maxDim, limit int) *Error {
	return New(StageValidation, path, fmt.Sprintf("image dimension %d exceeds limit %d", maxDim, limit))
}

// Decode-stage kinds.
func DecodeFailed(path string, cause error) *Error {
	return Wrap(StageDecode, path, "failed to decode image", cause)
}

func DecodeTimeout(path string) *Error {
	return New(StageDecode, path, "decode timed out")
}

// Embedding-stage kinds.
func EmbeddingFailed(path string, cause error) *Error {
	return Wrap(StageEmbedding, path, "inference failed", cause)
}

func EmbeddingTimeout(path string) *Error {
	return New(StageEmbedding, path, "embedding timed out")
}

// Tagging-stage kinds.
func DimensionMismatch(got, want int) *Error {
	return New(StageTagging, "", fmt.Sprintf("embedding has dimension %d, want %d", got, want))
}

func ScorerUnavailable() *Error {
	return New(StageTagging, "", "tag scorer not yet available")
}

// Model-stage kinds.
func ModelFileMissing(path string) *Error {
	return New(StageModel, path, "model file not found").WithHint("run model download")
}

func LabelBankDimMismatch(got, want int) *Error {
	return New(StageModel, "", fmt.Sprintf("label bank append dimension %d does not match %d", got, want))
}

// LLM-stage kinds, carrying the HTTP status when known.
type LLMError struct {
	StatusCode int
	Message    string
	Cause      error
}

var _ error = (*LLMError)(nil)

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("LLM: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("LLM: %s", e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// Retryable classifies the error per spec §4.13 step 4: 429/5xx and
// timeouts are retryable, 401/403 are not.
func (e *LLMError) Retryable() bool {
	switch {
	case e.StatusCode == 429:
		return true
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return true
	case e.StatusCode == 401 || e.StatusCode == 403:
		return false
	default:
		return e.StatusCode == 0 // connection/timeout errors carry no status
	}
}
