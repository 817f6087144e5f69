package visualenc_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/visualenc"
)

type fakeTensor struct{ data []float32 }

func (f *fakeTensor) GetData() []float32 { return f.data }

type fakeSession struct {
	input, output *fakeTensor
}

func (s *fakeSession) Run() error {
	// Simulate a [1,197,768] patch-sequence output: broadcast a
	// function of the input sum across every patch + dim so mean
	// pooling is exercised and checkable.
	var sum float32
	for _, v := range s.input.data {
		sum += v
	}
	for i := range s.output.data {
		s.output.data[i] = sum + float32(i%768)
	}
	return nil
}

func TestEmbedPreprocessedMeanPoolsAndNormalizes(t *testing.T) {
	inputSize := 224
	input := &fakeTensor{data: make([]float32, 3*inputSize*inputSize)}
	output := &fakeTensor{data: make([]float32, 197*visualenc.EmbeddingDim)}
	session := &fakeSession{input: input, output: output}

	enc := visualenc.New(session, input, output, inputSize)

	tensor := make([]float32, 3*inputSize*inputSize)
	for i := range tensor {
		tensor[i] = 0.1
	}
	embedding, err := enc.EmbedPreprocessed(tensor, "/tmp/dog.jpg")
	require.NoError(t, err)
	require.Len(t, embedding, visualenc.EmbeddingDim)

	var sumSq float64
	for _, v := range embedding {
		sumSq += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, sumSq, 1e-4)
}

func TestEmbedPreprocessedDimMismatch(t *testing.T) {
	input := &fakeTensor{data: make([]float32, 10)}
	output := &fakeTensor{data: make([]float32, visualenc.EmbeddingDim)}
	session := &fakeSession{input: input, output: output}
	enc := visualenc.New(session, input, output, 224)

	_, err := enc.EmbedPreprocessed(make([]float32, 5), "/tmp/x.jpg")
	require.Error(t, err)
}

func TestPreprocessProducesNCHWInRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 128, A: 255})
		}
	}
	tensor := visualenc.Preprocess(img, 4)
	require.Len(t, tensor, 3*4*4)
	for _, v := range tensor {
		require.GreaterOrEqual(t, v, float32(-1.0))
		require.LessOrEqual(t, v, float32(1.0))
	}
}
