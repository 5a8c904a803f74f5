package router

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const routerABIJson = `[
  {
    "name": "getAmountsOut",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      {"name": "amountIn", "type": "uint256"},
      {"name": "path", "type": "address[]"}
    ],
    "outputs": [
      {"name": "amounts", "type": "uint256[]"}
    ]
  }
]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		panic(fmt.Sprintf("invalid router ABI: %v", err))
	}
	routerABI = parsed
}

// EncodedCall is a quote call ready for aggregation. Values are only
// built by EncodeQuote, so a call for an unsupported family cannot
// exist downstream.
type EncodedCall struct {
	Family   Family
	Target   common.Address
	Path     []common.Address
	CallData []byte
}

// EncodeQuote builds the view-quote call for one chained path on one
// router. Only constant-product routers expose the path-array quote
// primitive; every other family is rejected before dispatch.
func (r *Registry) EncodeQuote(routerAddr common.Address, amountIn *big.Int, path []common.Address) (EncodedCall, error) {
	family := r.Classify(routerAddr)
	switch family {
	case FamilyConstantProduct:
	case FamilyUnsupported:
		return EncodedCall{}, fmt.Errorf("router %s is unsupported", routerAddr.Hex())
	default:
		return EncodedCall{}, fmt.Errorf("router %s (%s) has no batched quote primitive", routerAddr.Hex(), family)
	}
	if len(path) < 2 {
		return EncodedCall{}, fmt.Errorf("quote path must have at least 2 tokens, got %d", len(path))
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return EncodedCall{}, fmt.Errorf("quote amount must be positive")
	}

	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return EncodedCall{}, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}
	return EncodedCall{
		Family:   family,
		Target:   routerAddr,
		Path:     path,
		CallData: data,
	}, nil
}

// DecodeAmounts unpacks a getAmountsOut return payload. Malformed data
// yields an error the caller treats as "no liquidity" for that trial.
func DecodeAmounts(data []byte) ([]*big.Int, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty return data")
	}
	vals, err := routerABI.Unpack("getAmountsOut", data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode amounts: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amounts type %T", vals[0])
	}
	return amounts, nil
}
