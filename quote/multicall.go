package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall3 is deployed at the same address on Polygon and most other
// EVM chains.
var DefaultMulticallAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

const multicallABIJson = `[
  {
    "name": "tryAggregate",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      {"name": "requireSuccess", "type": "bool"},
      {
        "name": "calls",
        "type": "tuple[]",
        "components": [
          {"name": "target", "type": "address"},
          {"name": "callData", "type": "bytes"}
        ]
      }
    ],
    "outputs": [
      {
        "name": "returnData",
        "type": "tuple[]",
        "components": [
          {"name": "success", "type": "bool"},
          {"name": "returnData", "type": "bytes"}
        ]
      }
    ]
  }
]`

var multicallABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(multicallABIJson))
	if err != nil {
		panic(fmt.Sprintf("invalid multicall ABI: %v", err))
	}
	multicallABI = parsed
}

// ContractCaller is the read-only slice of an Ethereum client the
// engine needs; *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type aggregateCall struct {
	Target   common.Address `abi:"target"`
	CallData []byte         `abi:"callData"`
}

type aggregateResult struct {
	Success    bool   `abi:"success"`
	ReturnData []byte `abi:"returnData"`
}

// tryAggregate issues one eth_call against the aggregation contract
// with requireSuccess=false, so individual call failures come back as
// per-entry flags instead of reverting the whole batch. The response
// order matches the request order; that ordering is a hard contract of
// the aggregator and everything downstream relies on it.
func tryAggregate(ctx context.Context, caller ContractCaller, multicall common.Address, calls []aggregateCall) ([]aggregateResult, error) {
	data, err := multicallABI.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack tryAggregate: %w", err)
	}

	raw, err := caller.CallContract(ctx, ethereum.CallMsg{
		To:   &multicall,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("multicall failed: %w", err)
	}

	vals, err := multicallABI.Unpack("tryAggregate", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tryAggregate response: %w", err)
	}
	out := *abi.ConvertType(vals[0], new([]aggregateResult)).(*[]aggregateResult)
	if len(out) != len(calls) {
		return nil, fmt.Errorf("aggregator returned %d results for %d calls", len(out), len(calls))
	}
	return out, nil
}
