// Package neighbor implements WordNet-sibling expansion: promoting the
// siblings of newly-activated terms so Cold terms related to something
// the scorer just confirmed get a chance to be sampled in Warm (spec
// §4.7).
package neighbor

import "github.com/photon-img/photon/pkg/vocab"

func firstHypernym(t vocab.Term) (string, bool) {
	if len(t.Hypernyms) == 0 {
		return "", false
	}
	return t.Hypernyms[0], true
}

// FindSiblings returns the indices of every term sharing termIndex's
// first hypernym, excluding termIndex itself. Supplemental terms (empty
// hypernym chain) have no siblings. Only the *first* hypernym is
// considered, per spec §9's deliberate single-parent simplification of
// the WordNet DAG.
func FindSiblings(v *vocab.Vocabulary, termIndex int) []int {
	target, ok := firstHypernym(v.TermAt(termIndex))
	if !ok {
		return nil
	}

	var siblings []int
	for i := 0; i < v.Len(); i++ {
		if i == termIndex {
			continue
		}
		if parent, ok := firstHypernym(v.TermAt(i)); ok && parent == target {
			siblings = append(siblings, i)
		}
	}
	return siblings
}

// ExpandAll returns the deduplicated union of FindSiblings across every
// promoted index, with the promoted indices themselves removed.
func ExpandAll(v *vocab.Vocabulary, promoted []int) []int {
	promotedSet := make(map[int]bool, len(promoted))
	for _, idx := range promoted {
		promotedSet[idx] = true
	}

	seen := make(map[int]bool)
	var out []int
	for _, idx := range promoted {
		for _, sib := range FindSiblings(v, idx) {
			if promotedSet[sib] || seen[sib] {
				continue
			}
			seen[sib] = true
			out = append(out, sib)
		}
	}
	return out
}
