// Package vocab holds Photon's immutable term lexicon: WordNet nouns
// with their hypernym chains, plus supplemental scene/mood/style terms
// that sit outside WordNet.
package vocab

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// Term is a single vocabulary entry. WordNet terms have a non-empty
// Hypernyms chain (immediate parent first); supplemental terms have an
// empty chain and a non-empty Category instead.
type Term struct {
	RawName     string
	DisplayName string
	SynsetID    string
	Hypernyms   []string
	Category    string
}

// IsSupplemental reports whether t has no WordNet ancestry.
func (t Term) IsSupplemental() bool {
	return len(t.Hypernyms) == 0
}

// Vocabulary is an immutable, ordered sequence of terms. Term index is
// the term's position in that order and is stable for the lifetime of
// the Vocabulary value.
type Vocabulary struct {
	terms   []Term
	byRaw   map[string]int
}

// Empty returns a Vocabulary with no terms.
func Empty() *Vocabulary {
	return &Vocabulary{byRaw: map[string]int{}}
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// TermAt returns the term at the given vocabulary index. Panics on an
// out-of-range index: callers are expected to have validated indices
// sourced from the same Vocabulary (an invariant violation, not user
// input — see spec §9 "Result types vs exceptions").
func (v *Vocabulary) TermAt(index int) Term {
	return v.terms[index]
}

// IndexOf resolves a raw_name to its vocabulary index.
func (v *Vocabulary) IndexOf(rawName string) (int, bool) {
	idx, ok := v.byRaw[rawName]
	return idx, ok
}

// Load reads a tab-separated WordNet file and a supplemental file and
// merges them per spec §4.1: supplemental entries may override a
// WordNet entry with the same raw_name (keeping the WordNet hypernyms),
// and duplicate raw_names after merging are a fatal load error.
//
// WordNet line format: raw_name \t synset_id \t display_name \t
// hypernym1,hypernym2,...
// Supplemental line format: raw_name \t category
func Load(wordnetPath, supplementalPath string) (*Vocabulary, error) {
	wordnetTerms, order, err := loadWordNet(wordnetPath)
	if err != nil {
		return nil, fmt.Errorf("loading wordnet vocabulary: %w", err)
	}

	supplemental, supplementalOrder, err := loadSupplemental(supplementalPath)
	if err != nil {
		return nil, fmt.Errorf("loading supplemental vocabulary: %w", err)
	}

	merged := make(map[string]Term, len(wordnetTerms)+len(supplemental))
	finalOrder := make([]string, 0, len(order)+len(supplementalOrder))

	for _, raw := range order {
		merged[raw] = wordnetTerms[raw]
		finalOrder = append(finalOrder, raw)
	}

	for _, raw := range supplementalOrder {
		sup := supplemental[raw]
		if existing, ok := merged[raw]; ok {
			// Supplemental override: keep WordNet hypernyms, take the
			// supplemental category.
			existing.Category = sup.Category
			merged[raw] = existing
			continue
		}
		merged[raw] = sup
		finalOrder = append(finalOrder, raw)
	}

	v := &Vocabulary{
		terms: make([]Term, 0, len(finalOrder)),
		byRaw: make(map[string]int, len(finalOrder)),
	}
	for _, raw := range finalOrder {
		if _, dup := v.byRaw[raw]; dup {
			return nil, fmt.Errorf("duplicate raw_name %q after merge", raw)
		}
		v.byRaw[raw] = len(v.terms)
		v.terms = append(v.terms, merged[raw])
	}
	return v, nil
}

func loadWordNet(path string) (map[string]Term, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	terms := map[string]Term{}
	order := []string{}
	seen := map[string]bool{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, nil, fmt.Errorf("%s:%d: expected 4 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		raw, synset, display, hyperStr := fields[0], fields[1], fields[2], fields[3]
		if seen[raw] {
			return nil, nil, fmt.Errorf("%s:%d: duplicate raw_name %q", path, lineNo, raw)
		}
		seen[raw] = true

		var hypernyms []string
		if hyperStr != "" {
			hypernyms = strings.Split(hyperStr, ",")
		}
		terms[raw] = Term{
			RawName:     raw,
			DisplayName: display,
			SynsetID:    synset,
			Hypernyms:   hypernyms,
		}
		order = append(order, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return terms, order, nil
}

func loadSupplemental(path string) (map[string]Term, []string, error) {
	if path == "" {
		return map[string]Term{}, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Term{}, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	terms := map[string]Term{}
	order := []string{}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			return nil, nil, fmt.Errorf("%s:%d: expected 2 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		raw, category := fields[0], fields[1]
		terms[raw] = Term{
			RawName:     raw,
			DisplayName: strings.ReplaceAll(raw, "_", " "),
			Category:    category,
		}
		order = append(order, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return terms, order, nil
}

// ContentHash returns a stable 256-bit hash over the ordered raw_names,
// used by the label bank cache to detect vocabulary changes.
func (v *Vocabulary) ContentHash() [32]byte {
	h := sha256.New()
	for _, t := range v.terms {
		h.Write([]byte(t.RawName))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Subset returns a new Vocabulary containing exactly the given indices,
// in the given order, with fresh indices starting at 0.
func (v *Vocabulary) Subset(indices []int) *Vocabulary {
	sub := &Vocabulary{
		terms: make([]Term, 0, len(indices)),
		byRaw: make(map[string]int, len(indices)),
	}
	for _, idx := range indices {
		t := v.terms[idx]
		sub.byRaw[t.RawName] = len(sub.terms)
		sub.terms = append(sub.terms, t)
	}
	return sub
}
