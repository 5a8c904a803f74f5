// Package blacklist keeps the persistent denylist of dead pairs,
// triangles and tokens used to prune enumeration. Every mutation is
// flushed to disk before it is acted on; a crash may cost re-testing
// but never loses a blacklist decision.
package blacklist

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/types"
)

// DefaultPromotionThreshold is the number of blacklisted triangle keys
// a token may appear in before the token itself is banned. More than
// this many references triggers the ban (3 references: no ban, 4: ban).
const DefaultPromotionThreshold = 3

type pairDocument struct {
	BlacklistedTokens []string `json:"blacklistedTokens"`
	BlacklistedPairs  []string `json:"blacklistedPairs"`
}

type triangleDocument struct {
	BlacklistedTriangles []string `json:"blacklistedTriangles"`
	BlacklistedTokens    []string `json:"blacklistedTokens"`
}

// Cache is the process-wide blacklist. It is the only mutable shared
// state between scan cycles; reads and writes are serialized.
type Cache struct {
	mu sync.Mutex

	pairFile     string
	triangleFile string

	pairKeys       map[string]struct{}
	pairTokenBans  map[string]struct{}
	triangleKeys   map[string]struct{}
	triTokenBans   map[string]struct{}
	promotionLimit int

	logger *zap.Logger
}

// Open loads the two blacklist documents, creating empty state for any
// missing file.
func Open(pairFile, triangleFile string, promotionLimit int, logger *zap.Logger) (*Cache, error) {
	if promotionLimit <= 0 {
		promotionLimit = DefaultPromotionThreshold
	}
	c := &Cache{
		pairFile:       pairFile,
		triangleFile:   triangleFile,
		pairKeys:       make(map[string]struct{}),
		pairTokenBans:  make(map[string]struct{}),
		triangleKeys:   make(map[string]struct{}),
		triTokenBans:   make(map[string]struct{}),
		promotionLimit: promotionLimit,
		logger:         logger,
	}

	var pairDoc pairDocument
	if err := readDocument(pairFile, &pairDoc); err != nil {
		return nil, err
	}
	for _, k := range pairDoc.BlacklistedPairs {
		c.pairKeys[strings.ToLower(k)] = struct{}{}
	}
	for _, t := range pairDoc.BlacklistedTokens {
		c.pairTokenBans[strings.ToLower(t)] = struct{}{}
	}

	var triDoc triangleDocument
	if err := readDocument(triangleFile, &triDoc); err != nil {
		return nil, err
	}
	for _, k := range triDoc.BlacklistedTriangles {
		c.triangleKeys[strings.ToLower(k)] = struct{}{}
	}
	for _, t := range triDoc.BlacklistedTokens {
		c.triTokenBans[strings.ToLower(t)] = struct{}{}
	}

	return c, nil
}

func readDocument(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read blacklist file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse blacklist file %s: %w", path, err)
	}
	return nil
}

// IsBlacklisted reports whether the path's key or any of its tokens is
// denylisted for the path's kind.
func (c *Cache) IsBlacklisted(p *types.Path) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := p.Key()
	switch p.Kind {
	case types.KindTriangle:
		if _, ok := c.triangleKeys[key]; ok {
			return true
		}
		for _, t := range p.Tokens {
			if _, ok := c.triTokenBans[lowerHex(t.Address)]; ok {
				return true
			}
		}
	default:
		if _, ok := c.pairKeys[key]; ok {
			return true
		}
		for _, t := range p.Tokens {
			if _, ok := c.pairTokenBans[lowerHex(t.Address)]; ok {
				return true
			}
		}
	}
	return false
}

// IsTokenBanned reports whether a single token is banned outright in
// either document, so enumeration can skip every path containing it.
func (c *Cache) IsTokenBanned(addr common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := lowerHex(addr)
	if _, ok := c.triTokenBans[key]; ok {
		return true
	}
	_, ok := c.pairTokenBans[key]
	return ok
}

// RecordFailure marks a path key dead after its full ladder was
// exhausted, persists immediately, and for triangles applies the
// token-promotion rule: a token referenced by more than promotionLimit
// blacklisted triangle keys is banned outright. The settlement asset
// closing the triangle is exempt from promotion; it appears in every
// dead triangle routed through it and banning it would prune that
// whole slice of the route space.
func (c *Cache) RecordFailure(p *types.Path) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := p.Key()
	if p.Kind != types.KindTriangle {
		c.pairKeys[key] = struct{}{}
		return c.savePairLocked()
	}

	c.triangleKeys[key] = struct{}{}
	for _, t := range p.Tokens[:len(p.Tokens)-1] {
		addr := lowerHex(t.Address)
		if _, banned := c.triTokenBans[addr]; banned {
			continue
		}
		refs := 0
		for k := range c.triangleKeys {
			if strings.Contains(k, addr) {
				refs++
			}
		}
		if refs > c.promotionLimit {
			c.triTokenBans[addr] = struct{}{}
			if c.logger != nil {
				c.logger.Info("Promoted token to outright ban",
					zap.String("token", t.Symbol),
					zap.String("address", addr),
					zap.Int("triangle_refs", refs))
			}
		}
	}
	return c.saveTriangleLocked()
}

// PairCount returns the number of blacklisted pair keys, for cycle
// summaries.
func (c *Cache) PairCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairKeys)
}

func (c *Cache) savePairLocked() error {
	doc := pairDocument{
		BlacklistedTokens: sortedKeys(c.pairTokenBans),
		BlacklistedPairs:  sortedKeys(c.pairKeys),
	}
	return writeDocument(c.pairFile, &doc)
}

func (c *Cache) saveTriangleLocked() error {
	doc := triangleDocument{
		BlacklistedTriangles: sortedKeys(c.triangleKeys),
		BlacklistedTokens:    sortedKeys(c.triTokenBans),
	}
	return writeDocument(c.triangleFile, &doc)
}

func writeDocument(path string, doc interface{}) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode blacklist: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to persist blacklist %s: %w", path, err)
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
