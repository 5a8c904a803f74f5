package types

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token is one entry of the trading universe. Decimals must be known
// before any amount arithmetic; tokens with unknown decimals are
// rejected at load time and never reach the engine.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// PathKind distinguishes direct pair round trips from triangular ones.
type PathKind int

const (
	KindPair PathKind = iota
	KindTriangle
)

func (k PathKind) String() string {
	if k == KindTriangle {
		return "triangle"
	}
	return "pair"
}

// Path is an ordered hop sequence: two tokens for a pair round trip
// (A->B->A), three for a triangle (A->B->S->A). All three triangle
// tokens are distinct, and the settlement asset closing the loan is
// the last hop.
type Path struct {
	Kind   PathKind
	Tokens []Token
}

// Key returns the order-independent blacklist key of the path: the
// sorted hex addresses joined with "_", so every permutation of the
// same token set collapses to one cache entry.
func (p *Path) Key() string {
	addrs := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		addrs[i] = strings.ToLower(t.Address.Hex())
	}
	sort.Strings(addrs)
	return strings.Join(addrs, "_")
}

// Addresses returns the hop sequence including the closing leg back to
// the origin token, in execution order.
func (p *Path) Addresses() []common.Address {
	out := make([]common.Address, 0, len(p.Tokens)+1)
	for _, t := range p.Tokens {
		out = append(out, t.Address)
	}
	out = append(out, p.Tokens[0].Address)
	return out
}

// Symbols is a human-readable A->B->..->A label for logs.
func (p *Path) Symbols() string {
	parts := make([]string, 0, len(p.Tokens)+1)
	for _, t := range p.Tokens {
		parts = append(parts, t.Symbol)
	}
	parts = append(parts, p.Tokens[0].Symbol)
	return strings.Join(parts, "->")
}

// Trial is one quote request: a path, a router assignment (one router
// per leg) and a flash-loan input amount. Trials are ephemeral and
// never persisted.
type Trial struct {
	Path    *Path
	Routers []common.Address
	Amount  *big.Int
}

// QuoteResult is the decoded outcome of one call inside an aggregated
// batch. Success and payload are per call; a failed sibling never
// invalidates the rest of the batch.
type QuoteResult struct {
	Router  common.Address
	Path    []common.Address
	Success bool
	Amounts []*big.Int
}

// Out returns the final amount of the quoted chain, or nil when the
// call failed or decoded to nothing. Zero output means no liquidity.
func (q *QuoteResult) Out() *big.Int {
	if !q.Success || len(q.Amounts) == 0 {
		return nil
	}
	return q.Amounts[len(q.Amounts)-1]
}

// Outcome is the terminal record of one evaluation attempt.
type Outcome struct {
	Executed    bool
	GrossProfit *big.Int // input-token units
	GasCostWei  *big.Int // native currency
	NetProfit   float64  // common unit (USD-equivalent)
	TxHash      common.Hash
	Reason      string
}

// ScanSession carries per-cycle state through the pipeline so no
// component needs process-wide mutable counters.
type ScanSession struct {
	Cycle     uint64
	Attempted int
	Skipped   int
	Executed  int
}
