// Package textenc produces 768-dim L2-normalized text embeddings for
// vocabulary terms, via SigLIP's text tower running on ONNX Runtime.
package textenc

import (
	"fmt"
	"math"
	"sync"

	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/vocab"
)

const EmbeddingDim = 768

// Tokenizer turns a batch of prompt strings into token ids; the Encoder
// pads them and builds the attention mask. Photon treats the tokenizer as an injected dependency
// (SigLIP's exact subword vocabulary is a model asset, not logic this
// package needs to own) so tests can supply a fake.
type Tokenizer interface {
	// Encode returns, for each input string, its token ids, unpadded.
	// Callers pad to the session's fixed sequence length themselves.
	Encode(texts []string) (ids [][]int64, err error)
	PadTokenID() int64
}

// Session abstracts onnxruntime_go's *AdvancedSession.Run so this
// package is testable without linking the ONNX Runtime shared library.
type Session interface {
	Run() error
}

// Int64Tensor abstracts onnxruntime_go's *Tensor[int64]: GetData
// returns a mutable view into the tensor's backing array.
type Int64Tensor interface {
	GetData() []int64
}

// FloatTensor abstracts onnxruntime_go's *Tensor[float32].
type FloatTensor interface {
	GetData() []float32
}

// Encoder runs SigLIP's text submodel. Session.Run is not safe for
// concurrent use with the onnxruntime_go binding, so calls are
// serialized behind mu (spec §5 "ONNX text session: internal mutex").
type Encoder struct {
	mu        sync.Mutex
	session   Session
	tokenizer Tokenizer

	inputIDs  Int64Tensor
	attnMask  Int64Tensor
	poolerOut FloatTensor

	maxBatch int
	maxSeq   int
}

// New builds an Encoder around a pre-built ONNX session. The session
// must have been created with fixed-shape input/output tensors sized
// for (maxBatch, maxSeq); Encoder re-uses those tensors across calls,
// filling the whole (maxBatch, maxSeq) input on every call: rows and
// positions past this call's batch and token ids hold the pad id with a
// zero attention mask.
func New(session Session, tokenizer Tokenizer, inputIDs, attnMask Int64Tensor, poolerOut FloatTensor, maxBatch, maxSeq int) *Encoder {
	return &Encoder{
		session:   session,
		tokenizer: tokenizer,
		inputIDs:  inputIDs,
		attnMask:  attnMask,
		poolerOut: poolerOut,
		maxBatch:  maxBatch,
		maxSeq:    maxSeq,
	}
}

// promptFor formats a vocabulary term per spec §4.2: WordNet terms use
// the full "a photo of a {display_name}" template; supplemental terms
// use just the display name (they are often not nouns a photo-of
// template fits, e.g. "golden hour").
func promptFor(t vocab.Term) string {
	if t.IsSupplemental() {
		return t.DisplayName
	}
	return fmt.Sprintf("a photo of a %s", t.DisplayName)
}

// EncodeBatch encodes the given term strings (already formatted by the
// caller, or use EncodeTerms to apply the prompt template) into
// L2-normalized 768-dim rows.
func (e *Encoder) EncodeBatch(terms []string) ([][]float32, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if len(terms) > e.maxBatch {
		return nil, fmt.Errorf("textenc: batch of %d exceeds session max batch %d", len(terms), e.maxBatch)
	}

	ids, err := e.tokenizer.Encode(terms)
	if err != nil {
		return nil, fmt.Errorf("textenc: tokenize: %w", err)
	}

	seqLen := 0
	for _, row := range ids {
		if len(row) > seqLen {
			seqLen = len(row)
		}
	}
	if seqLen > e.maxSeq {
		return nil, fmt.Errorf("textenc: sequence length %d exceeds session max %d", seqLen, e.maxSeq)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idData := e.inputIDs.GetData()
	maskData := e.attnMask.GetData()
	for i := range idData {
		idData[i] = e.tokenizer.PadTokenID()
		maskData[i] = 0
	}
	for row, tokens := range ids {
		for col, id := range tokens {
			idData[row*e.maxSeq+col] = id
			maskData[row*e.maxSeq+col] = 1
		}
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("textenc: inference failed: %w", err)
	}

	// Pooler output is the model's SECOND output tensor (cross-modal
	// aligned projection) — never the first (last hidden state). See
	// spec §4.2 and GLOSSARY "Pooler output".
	raw := e.poolerOut.GetData()
	out := make([][]float32, len(terms))
	for i := range terms {
		row := make([]float32, EmbeddingDim)
		copy(row, raw[i*EmbeddingDim:(i+1)*EmbeddingDim])
		l2Normalize(row)
		out[i] = row
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

// ChunkProgress reports the state of an in-flight chunked vocabulary
// encoding run.
type ChunkProgress struct {
	ChunksDone  int
	ChunksTotal int
	RowsDone    int
}

// EncodeVocabularyChunked encodes the given vocabulary indices in
// sequential chunks of chunkSize, invoking onProgress after each chunk,
// and returns a LabelBank whose row i corresponds to indices[i]. A
// chunk whose inference fails is skipped (per spec §4.2 failure
// semantics: "aborts that chunk only"); its indices are omitted from
// the returned bank, and the caller is responsible for noticing the
// bank is shorter than len(indices) if it cares.
func (e *Encoder) EncodeVocabularyChunked(v *vocab.Vocabulary, chunkSize int, indices []int, onProgress func(ChunkProgress)) (*labelbank.LabelBank, []int, error) {
	bank := labelbank.New(EmbeddingDim)
	succeeded := make([]int, 0, len(indices))

	total := (len(indices) + chunkSize - 1) / chunkSize
	done := 0
	for start := 0; start < len(indices); start += chunkSize {
		end := min(start+chunkSize, len(indices))
		chunkIdx := indices[start:end]

		prompts := make([]string, len(chunkIdx))
		for i, idx := range chunkIdx {
			prompts[i] = promptFor(v.TermAt(idx))
		}

		rows, err := e.EncodeBatch(prompts)
		if err != nil {
			done++
			if onProgress != nil {
				onProgress(ChunkProgress{ChunksDone: done, ChunksTotal: total, RowsDone: bank.TermCount()})
			}
			continue
		}
		if err := bank.AppendRows(rows); err != nil {
			return nil, nil, err
		}
		succeeded = append(succeeded, chunkIdx...)

		done++
		if onProgress != nil {
			onProgress(ChunkProgress{ChunksDone: done, ChunksTotal: total, RowsDone: bank.TermCount()})
		}
	}
	return bank, succeeded, nil
}
