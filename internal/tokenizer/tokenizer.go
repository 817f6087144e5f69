// Package tokenizer implements textenc.Tokenizer with a simple
// whitespace/vocabulary-file lookup. No third-party Go library in the
// dependency corpus implements the SentencePiece tokenizer SigLIP's
// text tower actually expects, so this package loads a plain
// "token\tid" vocabulary file (shipped alongside the ONNX model
// assets) and falls back to an unknown-token id for anything unseen —
// documented as the one stdlib-only component in the text pipeline.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vocab is a loaded token→id table.
type Vocab struct {
	ids      map[string]int64
	unkID    int64
	padID    int64
	clsID    int64
	sepID    int64
	maxSeq   int
}

// Load reads a "token\tid" file, one entry per line. unkID, padID,
// clsID and sepID supply the special-role ids (tokens for those roles are not
// expected to appear via whitespace splitting).
func Load(path string, unkID, padID, clsID, sepID int64, maxSeq int) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open vocab file: %w", err)
	}
	defer f.Close()

	ids := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		ids[parts[0]] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read vocab file: %w", err)
	}

	return &Vocab{ids: ids, unkID: unkID, padID: padID, clsID: clsID, sepID: sepID, maxSeq: maxSeq}, nil
}

// PadTokenID implements textenc.Tokenizer.
func (v *Vocab) PadTokenID() int64 { return v.padID }

// Encode implements textenc.Tokenizer: lowercases, splits on
// whitespace, maps each word through the loaded vocabulary (falling
// back to unkID), and wraps the sequence in cls/sep markers, truncated
// to maxSeq.
func (v *Vocab) Encode(texts []string) ([][]int64, error) {
	out := make([][]int64, len(texts))
	for i, text := range texts {
		words := strings.Fields(strings.ToLower(text))
		ids := make([]int64, 0, len(words)+2)
		ids = append(ids, v.clsID)
		for _, w := range words {
			if len(ids) >= v.maxSeq-1 {
				break
			}
			id, ok := v.ids[w]
			if !ok {
				id = v.unkID
			}
			ids = append(ids, id)
		}
		ids = append(ids, v.sepID)
		out[i] = ids
	}
	return out, nil
}
