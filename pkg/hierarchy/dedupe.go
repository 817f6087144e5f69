// Package hierarchy implements the two post-scoring passes described in
// spec §4.10: suppressing ancestor tags when a more specific descendant
// also scored, and annotating surviving tags with a trimmed hypernym
// path.
package hierarchy

import (
	"strings"

	"github.com/photon-img/photon/pkg/record"
	"github.com/photon-img/photon/pkg/vocab"
)

// stopList holds the generic ancestor terms path annotation drops,
// per spec §4.10.
var stopList = map[string]bool{
	"entity": true, "physical entity": true, "object": true, "whole": true,
	"thing": true, "organism": true, "living thing": true, "abstraction": true,
	"matter": true, "substance": true, "body": true, "unit": true,
}

func toRawName(displayName string) string {
	return strings.ReplaceAll(displayName, " ", "_")
}

// DeduplicateAncestors suppresses any tag that is an ancestor (by
// WordNet hypernym chain) of another surviving tag in the same list.
// Tags are assumed already sorted by confidence descending (spec's
// ordering invariant); suppression runs after truncation to max_tags,
// so the final count may end up below max_tags.
func DeduplicateAncestors(tags []record.Tag, v *vocab.Vocabulary) []record.Tag {
	if len(tags) == 0 {
		return tags
	}

	chains := make([][]string, len(tags))
	for i, tag := range tags {
		chains[i] = hypernymChain(tag.Name, v)
	}

	keep := make([]bool, len(tags))
	for i := range tags {
		keep[i] = true
	}

	for i := range tags {
		if len(chains[i]) == 0 {
			continue // supplemental tags are never suppressed, never suppress
		}
		for j := range tags {
			if i == j || len(chains[j]) == 0 {
				continue
			}
			if isAncestorOf(tags[i].Name, chains[j]) {
				keep[i] = false
				break
			}
		}
	}

	out := make([]record.Tag, 0, len(tags))
	for i, tag := range tags {
		if keep[i] {
			out = append(out, tag)
		}
	}
	return out
}

// isAncestorOf reports whether ancestorName appears in descendantChain,
// i.e. descendantChain's term descends from ancestorName.
func isAncestorOf(ancestorName string, descendantChain []string) bool {
	for _, h := range descendantChain {
		if h == ancestorName {
			return true
		}
	}
	return false
}

// hypernymChain walks displayName's term in v and returns its ordered
// hypernym display-name chain (immediate parent first), or nil if the
// term can't be resolved or is supplemental.
func hypernymChain(displayName string, v *vocab.Vocabulary) []string {
	idx, ok := v.IndexOf(toRawName(displayName))
	if !ok {
		return nil
	}
	return v.TermAt(idx).Hypernyms
}

// AnnotatePaths sets Path on each tag per spec §4.10: walk the hypernym
// chain most-specific-first, drop stop-listed generic terms, keep up to
// pathMaxDepth of the most-general remaining ancestors, and render
// "ancestor_k > ... > ancestor_1 > term". If every ancestor was generic,
// no path is added.
func AnnotatePaths(tags []record.Tag, v *vocab.Vocabulary, pathMaxDepth int) []record.Tag {
	out := make([]record.Tag, len(tags))
	for i, tag := range tags {
		out[i] = tag
		chain := hypernymChain(tag.Name, v)
		if len(chain) == 0 {
			continue
		}

		var specific []string
		for _, h := range chain {
			if !stopList[h] {
				specific = append(specific, h)
			}
		}
		if len(specific) == 0 {
			continue
		}

		n := pathMaxDepth
		if n > len(specific) {
			n = len(specific)
		}
		mostGeneral := specific[len(specific)-n:]

		parts := make([]string, 0, n+1)
		for i := len(mostGeneral) - 1; i >= 0; i-- {
			parts = append(parts, mostGeneral[i])
		}
		parts = append(parts, tag.Name)
		out[i].Path = strings.Join(parts, " > ")
	}
	return out
}
