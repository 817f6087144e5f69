// Package seed deterministically picks the initial set of vocabulary
// terms to encode synchronously before progressive encoding takes over
// (spec §4.8).
package seed

import (
	"bufio"
	"encoding/binary"
	"math/rand"
	"os"

	"github.com/photon-img/photon/pkg/vocab"
)

const DefaultTargetSize = 2000

// Select returns a deduplicated, ordered list of vocabulary indices:
// every supplemental term, then every resolvable term from
// seedTermsPath (if non-empty and present), then a random fill up to
// targetSize seeded by the vocabulary's content hash so the selection
// is reproducible across runs of the same vocabulary.
func Select(v *vocab.Vocabulary, targetSize int, seedTermsPath string) ([]int, error) {
	chosen := make(map[int]bool)
	var ordered []int

	add := func(idx int) {
		if !chosen[idx] {
			chosen[idx] = true
			ordered = append(ordered, idx)
		}
	}

	for i := 0; i < v.Len(); i++ {
		if v.TermAt(i).IsSupplemental() {
			add(i)
		}
	}

	if seedTermsPath != "" {
		names, err := readLines(seedTermsPath)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if idx, ok := v.IndexOf(name); ok {
				add(idx)
			}
		}
	}

	if len(ordered) >= targetSize || v.Len() == 0 {
		return ordered, nil
	}

	hash := v.ContentHash()
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(hash[:8]))))

	remaining := make([]int, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		if !chosen[i] {
			remaining = append(remaining, i)
		}
	}
	rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })

	need := targetSize - len(ordered)
	for i := 0; i < need && i < len(remaining); i++ {
		add(remaining[i])
	}

	return ordered, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
