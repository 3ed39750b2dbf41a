// Package suggest proposes dictionary tokens for a token that is not in it.
package suggest

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Suggestion is a candidate token and its cooccurrence mass.
type Suggestion struct {
	Token  string
	Weight float64
}

// Index is a prefix trie over a dictionary.
type Index struct {
	trie *patricia.Trie
}

// New indexes tokens. weights[i], when present, ranks tokens[i]; tokens
// without a weight rank last.
func New(tokens []string, weights []float64) *Index {
	trie := patricia.NewTrie()
	for i, tok := range tokens {
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		trie.Insert(patricia.Prefix(tok), w)
	}
	return &Index{trie: trie}
}

// Complete returns up to limit tokens starting with prefix, heaviest first.
func (x *Index) Complete(prefix string, limit int) []Suggestion {
	var out []Suggestion
	x.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		w, _ := item.(float64)
		out = append(out, Suggestion{Token: string(p), Weight: w})
		return nil
	})
	slices.SortFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Similar returns completions of the longest prefix of token that has any,
// never shorter than minPrefix runes. token itself is excluded.
func (x *Index) Similar(token string, minPrefix, limit int) []Suggestion {
	for n := len(token); n > 0; {
		prefix := token[:n]
		if utf8.RuneCountInString(prefix) < minPrefix {
			break
		}
		var out []Suggestion
		for _, s := range x.Complete(prefix, 0) {
			if s.Token != token {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			if limit > 0 && len(out) > limit {
				out = out[:limit]
			}
			return out
		}
		_, size := utf8.DecodeLastRuneInString(prefix)
		n -= size
	}
	return nil
}
