// Package onnxsession builds the concrete onnxruntime_go sessions and
// tensors that pkg/textenc and pkg/visualenc run against. Both
// packages depend only on small Session/FloatTensor/Int64Tensor
// interfaces so they can be tested without the ONNX Runtime shared
// library linked in; this package is where those interfaces meet the
// real library.
package onnxsession

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// TextSession holds the tensors and session for SigLIP's text tower,
// sized for one fixed (maxBatch, maxSeq) shape. textenc.Encoder
// rebuilds its batches to fit within this shape.
type TextSession struct {
	Session         *ort.AdvancedSession
	InputIDs        *ort.Tensor[int64]
	AttentionMask   *ort.Tensor[int64]
	LastHiddenState *ort.Tensor[float32]
	PoolerOutput    *ort.Tensor[float32]
}

// NewTextSession loads the text-tower ONNX model and allocates its
// fixed-shape input/output tensors. The text tower emits two outputs
// of different shapes — last_hidden_state is per-token
// (maxBatch, maxSeq, embeddingDim) and pooler_output is per-sequence
// (maxBatch, embeddingDim) — so each needs its own pre-allocated
// binding; textenc only reads PoolerOutput, LastHiddenState exists
// purely so the session has somewhere correctly-shaped to write.
func NewTextSession(modelPath string, maxBatch, maxSeq, embeddingDim int) (*TextSession, error) {
	inputShape := ort.NewShape(int64(maxBatch), int64(maxSeq))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate attention_mask tensor: %w", err)
	}
	hiddenShape := ort.NewShape(int64(maxBatch), int64(maxSeq), int64(embeddingDim))
	lastHidden, err := ort.NewEmptyTensor[float32](hiddenShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate last_hidden_state tensor: %w", err)
	}
	poolerShape := ort.NewShape(int64(maxBatch), int64(embeddingDim))
	pooler, err := ort.NewEmptyTensor[float32](poolerShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate pooler_output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state", "pooler_output"},
		[]ort.ArbitraryTensor{inputIDs, attnMask},
		[]ort.ArbitraryTensor{lastHidden, pooler},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: create text session: %w", err)
	}

	return &TextSession{
		Session:         session,
		InputIDs:        inputIDs,
		AttentionMask:   attnMask,
		LastHiddenState: lastHidden,
		PoolerOutput:    pooler,
	}, nil
}

func (s *TextSession) Close() error {
	s.LastHiddenState.Destroy()
	return s.Session.Destroy()
}

// VisualSession holds the tensors and session for SigLIP's vision
// tower, sized for a single 1×3×H×W input.
type VisualSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// NewVisualSession loads the vision-tower ONNX model and allocates its
// fixed-shape input/output tensors.
func NewVisualSession(modelPath string, imageSize, embeddingDim int) (*VisualSession, error) {
	inputShape := ort.NewShape(1, 3, int64(imageSize), int64(imageSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate pixel_values tensor: %w", err)
	}
	outputShape := ort.NewShape(1, int64(embeddingDim))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: allocate pooler_output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"pixel_values"},
		[]string{"pooler_output"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: create visual session: %w", err)
	}

	return &VisualSession{Session: session, Input: input, Output: output}, nil
}

func (s *VisualSession) Close() error { return s.Session.Destroy() }
