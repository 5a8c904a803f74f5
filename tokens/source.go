// Package tokens loads the trading universe: token symbols, addresses
// and decimal precision. Decimals are mandatory; a token whose
// precision cannot be established is dropped before it can corrupt
// amount arithmetic.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/types"
)

// priorityOrder pins the settlement and major tokens to the front of
// the universe so the cheapest, most liquid paths are enumerated
// first. Everything else follows alphabetically.
var priorityOrder = []string{"USDC", "DAI", "USDT", "WETH", "WMATIC", "WBTC"}

// listEntry is the wire shape of one token in a token-list document,
// both the remote variant and the local fallback file.
type listEntry struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals *uint8 `json:"decimals"`
	ChainID  int64  `json:"chainId,omitempty"`
}

type listDocument struct {
	Tokens []listEntry `json:"tokens"`
}

// Source fetches and caches the token universe. A remote token list
// is preferred; the local file is the fallback when the list endpoint
// is unreachable.
type Source struct {
	httpClient   *http.Client
	listURL      string
	fallbackFile string
	chainID      int64
	cache        *lru.Cache
	logger       *zap.Logger
}

// NewSource creates a token source. listURL may be empty to use the
// local file only.
func NewSource(listURL, fallbackFile string, chainID int64, logger *zap.Logger) (*Source, error) {
	cache, err := lru.New(4)
	if err != nil {
		return nil, err
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		listURL:      listURL,
		fallbackFile: fallbackFile,
		chainID:      chainID,
		cache:        cache,
		logger:       logger,
	}, nil
}

// Universe returns the full token set, ordered with priority symbols
// first. The result is cached; repeated calls within a process hit
// the cache.
func (s *Source) Universe(ctx context.Context) ([]types.Token, error) {
	if cached, ok := s.cache.Get("universe"); ok {
		return cached.([]types.Token), nil
	}

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	toks, err := s.validate(entries)
	if err != nil {
		return nil, err
	}
	orderByPriority(toks)

	s.cache.Add("universe", toks)
	return toks, nil
}

// Resolve returns the tokens matching the given symbols, failing when
// any symbol is absent from the universe.
func (s *Source) Resolve(ctx context.Context, symbols []string) ([]types.Token, error) {
	universe, err := s.Universe(ctx)
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]types.Token, len(universe))
	for _, t := range universe {
		bySymbol[strings.ToUpper(t.Symbol)] = t
	}

	out := make([]types.Token, 0, len(symbols))
	for _, sym := range symbols {
		t, ok := bySymbol[strings.ToUpper(sym)]
		if !ok {
			return nil, fmt.Errorf("token %s not present in universe", sym)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Source) load(ctx context.Context) ([]listEntry, error) {
	if s.listURL != "" {
		entries, err := s.fetchRemote(ctx)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("Token list fetch failed, using local fallback",
			zap.String("url", s.listURL),
			zap.Error(err))
	}
	return s.loadFile()
}

func (s *Source) fetchRemote(ctx context.Context) ([]listEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token list returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}

	var doc listDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse token list: %w", err)
	}
	return doc.Tokens, nil
}

func (s *Source) loadFile() ([]listEntry, error) {
	if s.fallbackFile == "" {
		return nil, fmt.Errorf("no token source available")
	}
	data, err := os.ReadFile(s.fallbackFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var doc listDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return doc.Tokens, nil
}

// validate filters the raw entries down to usable tokens. A token on
// the wrong chain is silently skipped; a token with no decimals field
// is an error in the source document, not a token to guess at.
func (s *Source) validate(entries []listEntry) ([]types.Token, error) {
	seen := make(map[common.Address]bool, len(entries))
	out := make([]types.Token, 0, len(entries))
	for _, e := range entries {
		if e.ChainID != 0 && s.chainID != 0 && e.ChainID != s.chainID {
			continue
		}
		if !common.IsHexAddress(e.Address) {
			s.logger.Warn("Skipping token with malformed address",
				zap.String("symbol", e.Symbol),
				zap.String("address", e.Address))
			continue
		}
		if e.Decimals == nil {
			return nil, fmt.Errorf("token %s (%s) has no decimals", e.Symbol, e.Address)
		}
		addr := common.HexToAddress(e.Address)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, types.Token{
			Symbol:   e.Symbol,
			Address:  addr,
			Decimals: *e.Decimals,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("token source produced an empty universe")
	}
	return out, nil
}

func orderByPriority(toks []types.Token) {
	rank := make(map[string]int, len(priorityOrder))
	for i, sym := range priorityOrder {
		rank[sym] = i
	}
	sort.SliceStable(toks, func(i, j int) bool {
		ri, iok := rank[strings.ToUpper(toks[i].Symbol)]
		rj, jok := rank[strings.ToUpper(toks[j].Symbol)]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return toks[i].Symbol < toks[j].Symbol
		}
	})
}
