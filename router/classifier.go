package router

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Family is the protocol family of a router. It decides how quote and
// execute calls are encoded; anything not explicitly classified is
// FamilyUnsupported and must never reach a batch.
type Family int

const (
	FamilyUnsupported Family = iota
	FamilyConstantProduct
	FamilyWeightedVault
	FamilyAggregator
)

func (f Family) String() string {
	switch f {
	case FamilyConstantProduct:
		return "uniswapv2"
	case FamilyWeightedVault:
		return "balancer"
	case FamilyAggregator:
		return "aggregator"
	default:
		return "unsupported"
	}
}

// Entry describes one known router.
type Entry struct {
	Address common.Address
	Name    string
	Family  Family
}

// Registry maps router addresses to protocol families. It is populated
// once at startup and read-only afterwards.
type Registry struct {
	entries map[common.Address]Entry
}

// registryFile is the YAML document shape for router lists on disk.
type registryFile struct {
	Routers []struct {
		Address string `yaml:"address"`
		Name    string `yaml:"name"`
		Family  string `yaml:"family"`
	} `yaml:"routers"`
}

func familyFromString(s string) Family {
	switch strings.ToLower(s) {
	case "uniswapv2", "constant-product":
		return FamilyConstantProduct
	case "balancer", "weighted-vault":
		return FamilyWeightedVault
	case "1inch", "aggregator":
		return FamilyAggregator
	default:
		return FamilyUnsupported
	}
}

// NewRegistry builds a registry from explicit entries.
func NewRegistry(entries []Entry) *Registry {
	m := make(map[common.Address]Entry, len(entries))
	for _, e := range entries {
		m[e.Address] = e
	}
	return &Registry{entries: m}
}

// LoadRegistry reads a router registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read router registry: %w", err)
	}
	var doc registryFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse router registry: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Routers))
	for _, r := range doc.Routers {
		if !common.IsHexAddress(r.Address) {
			return nil, fmt.Errorf("invalid router address %q in registry", r.Address)
		}
		entries = append(entries, Entry{
			Address: common.HexToAddress(r.Address),
			Name:    r.Name,
			Family:  familyFromString(r.Family),
		})
	}
	return NewRegistry(entries), nil
}

// DefaultRegistry returns the Polygon routers the engine ships with.
func DefaultRegistry() *Registry {
	return NewRegistry([]Entry{
		{common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"), "quickswap", FamilyConstantProduct},
		{common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506"), "sushiswap", FamilyConstantProduct},
		{common.HexToAddress("0xC0788A3aD43d79aa53B09c2EaCc313A787d1d607"), "apeswap", FamilyConstantProduct},
		{common.HexToAddress("0xA102072A4C07F06EC3B4900FDC4C7B80b6c57429"), "dfyn", FamilyConstantProduct},
		{common.HexToAddress("0x93bcDc45f7e62f89a8e901DC4A0E2c6C427D9F25"), "cometh", FamilyConstantProduct},
		{common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8"), "balancer-vault", FamilyWeightedVault},
		{common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582"), "1inch", FamilyAggregator},
	})
}

// Classify maps a router address to its protocol family. Unknown
// addresses classify as FamilyUnsupported so callers can exclude them.
func (r *Registry) Classify(addr common.Address) Family {
	if e, ok := r.entries[addr]; ok {
		return e.Family
	}
	return FamilyUnsupported
}

// Name returns the display name of a known router, or "unknown".
func (r *Registry) Name(addr common.Address) string {
	if e, ok := r.entries[addr]; ok {
		return e.Name
	}
	return "unknown"
}

// Supported reports whether the router can appear in a quote or
// execute batch at all.
func (r *Registry) Supported(addr common.Address) bool {
	return r.Classify(addr) != FamilyUnsupported
}

// Addresses returns all registered router addresses in insertion-
// independent but deterministic order (sorted by hex).
func (r *Registry) Addresses() []common.Address {
	out := make([]common.Address, 0, len(r.entries))
	for a := range r.entries {
		out = append(out, a)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Hex() < out[j-1].Hex(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// QuotableAddresses returns the routers whose family supports batched
// view quoting via getAmountsOut.
func (r *Registry) QuotableAddresses() []common.Address {
	all := r.Addresses()
	out := all[:0]
	for _, a := range all {
		if r.Classify(a) == FamilyConstantProduct {
			out = append(out, a)
		}
	}
	return out
}
