// Package dictionary maps tokens to dense integer ids and back.
package dictionary

import (
	"fmt"
	"math"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
)

// Dictionary is a bijection between tokens and the ids [0, Len()).
//
// A dictionary is either grown during a scan (insert mode) or supplied up
// front and validated (lookup mode). It is not safe for concurrent writers.
type Dictionary struct {
	ids      map[string]int
	tokens   []string
	supplied bool
}

// New creates an empty dictionary in insert mode. capacityHint reserves room
// for that many tokens.
func New(capacityHint int) *Dictionary {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Dictionary{
		ids:    make(map[string]int, capacityHint),
		tokens: make([]string, 0, capacityHint),
	}
}

// FromMap builds a lookup-mode dictionary from a supplied token→id mapping.
// The mapping is validated immediately and copied.
func FromMap(m map[string]int) (*Dictionary, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	d := &Dictionary{
		ids:      make(map[string]int, len(m)),
		tokens:   make([]string, len(m)),
		supplied: true,
	}
	for tok, id := range m {
		d.ids[tok] = id
		d.tokens[id] = tok
	}
	return d, nil
}

// FromTokens builds a lookup-mode dictionary where tokens[i] has id i.
func FromTokens(tokens []string) (*Dictionary, error) {
	m := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, dup := m[tok]; dup {
			return nil, fmt.Errorf("token %q listed twice: %w", tok, internalerr.ErrInvalidDictionary)
		}
		m[tok] = i
	}
	return FromMap(m)
}

// Validate checks that the ids of m are exactly {0, ..., len(m)-1}.
func Validate(m map[string]int) error {
	if len(m) == 0 {
		return nil
	}

	minID, maxID := math.MaxInt, math.MinInt
	seen := make(map[int]string, len(m))
	for tok, id := range m {
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("id %d assigned to both %q and %q: %w", id, prev, tok, internalerr.ErrInvalidDictionary)
		}
		seen[id] = tok
		minID = min(minID, id)
		maxID = max(maxID, id)
	}

	if maxID != len(m)-1 {
		return fmt.Errorf("largest id %d should equal length minus one (%d): %w", maxID, len(m)-1, internalerr.ErrInvalidDictionary)
	}
	if minID != 0 {
		return fmt.Errorf("ids should start at zero, got %d: %w", minID, internalerr.ErrInvalidDictionary)
	}
	return nil
}

// LookupOrInsert returns the id of token, assigning the next unused id if the
// token has not been seen.
func (d *Dictionary) LookupOrInsert(token string) int {
	if id, ok := d.ids[token]; ok {
		return id
	}
	id := len(d.tokens)
	d.ids[token] = id
	d.tokens = append(d.tokens, token)
	return id
}

// Lookup returns the id of token.
func (d *Dictionary) Lookup(token string) (int, bool) {
	id, ok := d.ids[token]
	return id, ok
}

// Resolve maps a corpus token to an id according to the dictionary's mode.
//
// In insert mode every token resolves. In lookup mode an absent token yields
// ErrMissingToken, or ok=false when ignoreMissing is set.
func (d *Dictionary) Resolve(token string, ignoreMissing bool) (id int, ok bool, err error) {
	if !d.supplied {
		return d.LookupOrInsert(token), true, nil
	}
	id, ok = d.ids[token]
	if ok {
		return id, true, nil
	}
	if ignoreMissing {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("%q: %w", token, internalerr.ErrMissingToken)
}

// Token returns the token with the given id.
func (d *Dictionary) Token(id int) (string, bool) {
	if id < 0 || id >= len(d.tokens) {
		return "", false
	}
	return d.tokens[id], true
}

// Len returns the number of tokens.
func (d *Dictionary) Len() int { return len(d.tokens) }

// Supplied reports whether the dictionary was supplied rather than grown.
func (d *Dictionary) Supplied() bool { return d.supplied }

// Tokens returns the tokens in id order.
func (d *Dictionary) Tokens() []string {
	out := make([]string, len(d.tokens))
	copy(out, d.tokens)
	return out
}

// Map returns a copy of the token→id mapping.
func (d *Dictionary) Map() map[string]int {
	out := make(map[string]int, len(d.ids))
	for tok, id := range d.ids {
		out[tok] = id
	}
	return out
}
