// Package pathgen generates candidate arbitrage routes lazily so the
// scan loop can prune against the blacklist mid-cycle instead of
// materializing the full token cross-product.
package pathgen

import (
	"github.com/cespare/xxhash/v2"

	"github.com/michaelpento.lv/flasharb/types"
)

// SkipFunc lets the caller veto a candidate before it is emitted,
// typically backed by the blacklist cache.
type SkipFunc func(*types.Path) bool

// Enumerator walks the candidate route space in a fixed order:
// triangles first (one per token pair and settlement asset, with the
// settlement as the closing hop), then every ordered token pair. The
// evaluator tries the swapped quote direction of a triangle itself,
// so one candidate per token set suffices. Iteration is deterministic
// for a given token and settlement list and restartable via Reset.
type Enumerator struct {
	tokens      []types.Token
	settlements []types.Token
	skip        SkipFunc

	phase  int // 0 = triangles, 1 = pairs, 2 = done
	ia, ib int
	is     int

	seen map[uint64]struct{}
}

// New builds an enumerator over the given universe. The settlement
// list must be a subset of tokens the engine can settle flash loans
// in; entries equal to either pair endpoint are skipped per candidate.
func New(tokens, settlements []types.Token, skip SkipFunc) *Enumerator {
	e := &Enumerator{
		tokens:      tokens,
		settlements: settlements,
		skip:        skip,
	}
	e.Reset()
	return e
}

// Reset restarts iteration from the first candidate. The emitted-set
// is cleared too, so a fresh cycle re-proposes everything that is not
// vetoed by the skip function.
func (e *Enumerator) Reset() {
	e.phase = 0
	e.ia, e.ib, e.is = 0, 0, 0
	e.seen = make(map[uint64]struct{})
}

// Next returns the next candidate path, or nil when the sequence is
// exhausted.
func (e *Enumerator) Next() *types.Path {
	for {
		p := e.advance()
		if p == nil {
			return nil
		}
		if !e.emit(p) {
			continue
		}
		if e.skip != nil && e.skip(p) {
			continue
		}
		return p
	}
}

func (e *Enumerator) advance() *types.Path {
	switch e.phase {
	case 0:
		return e.nextTriangle()
	case 1:
		return e.nextPair()
	default:
		return nil
	}
}

func (e *Enumerator) nextTriangle() *types.Path {
	n := len(e.tokens)
	for e.ia < n {
		a := e.tokens[e.ia]
		for e.ib < n {
			b := e.tokens[e.ib]
			if a.Address == b.Address {
				e.ib++
				continue
			}
			for e.is < len(e.settlements) {
				s := e.settlements[e.is]
				if s.Address == a.Address || s.Address == b.Address {
					e.is++
					continue
				}
				e.is++
				return &types.Path{Kind: types.KindTriangle, Tokens: []types.Token{a, b, s}}
			}
			e.is = 0
			e.ib++
		}
		e.ib = 0
		e.ia++
	}
	e.phase = 1
	e.ia, e.ib = 0, 0
	return e.nextPair()
}

func (e *Enumerator) nextPair() *types.Path {
	n := len(e.tokens)
	for e.ia < n {
		a := e.tokens[e.ia]
		for e.ib < n {
			b := e.tokens[e.ib]
			e.ib++
			if a.Address == b.Address {
				continue
			}
			return &types.Path{Kind: types.KindPair, Tokens: []types.Token{a, b}}
		}
		e.ib = 0
		e.ia++
	}
	e.phase = 2
	return nil
}

// emit records the candidate's identity hash and reports whether it is
// new. Duplicate token-list entries otherwise produce duplicate paths.
func (e *Enumerator) emit(p *types.Path) bool {
	h := xxhash.New()
	h.Write([]byte{byte(p.Kind)})
	for _, t := range p.Tokens {
		h.Write(t.Address.Bytes())
	}
	id := h.Sum64()
	if _, dup := e.seen[id]; dup {
		return false
	}
	e.seen[id] = struct{}{}
	return true
}
