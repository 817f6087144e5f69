package visualenc

import (
	"fmt"
	"math"
	"sync"
)

const EmbeddingDim = 768

// Session and FloatTensor mirror textenc's ONNX abstractions so this
// package is testable without the ONNX Runtime shared library linked;
// see pkg/textenc for the rationale.
type Session interface {
	Run() error
}

type FloatTensor interface {
	GetData() []float32
}

// Encoder runs SigLIP's vision submodel. Run is serialized behind an
// internal mutex (spec §5 "ONNX visual session: internal mutex";
// §4.4 notes only the small preprocessed tensor, not the full decoded
// image, crosses into the blocking-task boundary that calls this).
type Encoder struct {
	mu sync.Mutex

	session Session
	input   FloatTensor
	output  FloatTensor

	inputSize  int // H==W of the input tensor this session was built for
	outputLen  int // flattened length of the output tensor
}

func New(session Session, input, output FloatTensor, inputSize int) *Encoder {
	return &Encoder{
		session:   session,
		input:     input,
		output:    output,
		inputSize: inputSize,
		outputLen: len(output.GetData()),
	}
}

// EmbedPreprocessed runs inference over an already-preprocessed
// 1×3×H×W tensor and returns the L2-normalized 768-dim embedding. path
// is included in all error contexts for traceability per spec §4.4.
func (e *Encoder) EmbedPreprocessed(tensor []float32, path string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.input.GetData()
	if len(dst) != len(tensor) {
		return nil, fmt.Errorf("visualenc: preprocessed tensor has %d elements, session expects %d (%s)", len(tensor), len(dst), path)
	}
	copy(dst, tensor)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("visualenc: inference failed for %s: %w", path, err)
	}

	raw := e.output.GetData()
	embedding, err := reduceToEmbedding(raw)
	if err != nil {
		return nil, fmt.Errorf("visualenc: %w (%s)", err, path)
	}
	l2Normalize(embedding)
	return embedding, nil
}

// reduceToEmbedding implements spec §4.4's "reshapes/mean-pools
// depending on shape" rule: the first output tensor may already be the
// flat [768] embedding, a [1,768] batch-of-one, or [1,197,768] patch
// tokens (vision transformer sequence output) that need mean pooling
// over the sequence axis.
func reduceToEmbedding(raw []float32) ([]float32, error) {
	if len(raw) == 0 || len(raw)%EmbeddingDim != 0 {
		return nil, fmt.Errorf("output tensor length %d is not a multiple of embedding dim %d", len(raw), EmbeddingDim)
	}
	seqLen := len(raw) / EmbeddingDim
	out := make([]float32, EmbeddingDim)
	for s := 0; s < seqLen; s++ {
		for d := 0; d < EmbeddingDim; d++ {
			out[d] += raw[s*EmbeddingDim+d]
		}
	}
	for d := range out {
		out[d] /= float32(seqLen)
	}
	return out, nil
}

func l2Normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sumSq))
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
