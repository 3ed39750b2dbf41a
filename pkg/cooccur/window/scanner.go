// Package window emits distance-weighted cooccurrence contributions from a
// stream of token ids using a symmetric sliding window.
package window

// EmitFunc receives one contribution between an earlier id and the id just
// pushed, weighted by the inverse of their distance.
type EmitFunc func(prev, cur int, weight float64)

const missing = -1

// Scanner keeps the ids of the last Window positions of the current document.
//
// Positions whose token could not be resolved occupy a slot but hold no id,
// so distances between the surviving tokens stay the textual distances.
//
// History grows with the document and is capped at the window, so a window
// wider than any document costs no more than the longest document seen.
type Scanner struct {
	window int
	ring   []int
	pos    int
}

// NewScanner creates a scanner for the given window size. A window of zero
// or less never emits.
func NewScanner(window int) *Scanner {
	return &Scanner{window: max(window, 0)}
}

// Reset clears the history. Call it at every document boundary.
func (s *Scanner) Reset() {
	// Slots below pos are rewritten before they are read again.
	s.pos = 0
}

// Position returns the number of positions pushed since the last Reset.
func (s *Scanner) Position() int { return s.pos }

// Push advances one position. When ok is true, id is paired with every
// resolved id at distance 1..window and each pair is passed to emit with
// weight 1/distance. When ok is false the position is consumed silently.
func (s *Scanner) Push(id int, ok bool, emit EmitFunc) {
	if s.window == 0 {
		s.pos++
		return
	}

	if ok {
		reach := min(s.window, s.pos)
		for d := 1; d <= reach; d++ {
			prev := s.ring[(s.pos-d)%s.window]
			if prev == missing {
				continue
			}
			emit(prev, id, 1/float64(d))
		}
	}

	slot := missing
	if ok {
		slot = id
	}
	// Until the ring holds window slots, pos%window == pos and the next
	// slot is at most one past the end.
	if i := s.pos % s.window; i < len(s.ring) {
		s.ring[i] = slot
	} else {
		s.ring = append(s.ring, slot)
	}
	s.pos++
}

// ScanIDs runs a whole document of ids through a fresh window. Negative ids
// mark positions whose token was not resolved.
func ScanIDs(window int, ids []int, emit EmitFunc) {
	s := NewScanner(window)
	s.ScanIDs(ids, emit)
}

// ScanIDs resets the scanner and pushes ids as one document.
func (s *Scanner) ScanIDs(ids []int, emit EmitFunc) {
	s.Reset()
	for _, id := range ids {
		s.Push(id, id >= 0, emit)
	}
}
