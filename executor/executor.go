// Package executor owns the execution contract: it builds the real
// flash-loan calldata, verifies it against the chain before spending
// gas, and broadcasts at most one transaction at a time.
package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/types"
)

// arbitrageABIJson is the execution contract surface: one entry point
// per path kind. The pair entry takes its parameters as a struct, the
// triangle entry takes them flat.
const arbitrageABIJson = `[
	{
		"name": "requestFlashLoan",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "token", "type": "address"},
					{"name": "amount", "type": "uint256"},
					{"name": "routerIn", "type": "address"},
					{"name": "routerOut", "type": "address"}
				]
			}
		],
		"outputs": []
	},
	{
		"name": "executeTriangleArbitrage",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"},
			{"name": "tokenC", "type": "address"},
			{"name": "amountIn", "type": "uint256"}
		],
		"outputs": []
	}
]`

var arbitrageABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(arbitrageABIJson))
	if err != nil {
		panic(fmt.Sprintf("invalid arbitrage ABI: %v", err))
	}
	arbitrageABI = parsed
}

// Backend is the slice of an Ethereum client the executor needs;
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Executor signs and sends flash-loan transactions to the deployed
// arbitrage contract. The send path is serialized so only one
// transaction is ever in flight per signer.
type Executor struct {
	backend  Backend
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64 // 0 means estimate per trial
	tradeLog *TradeLog
	logger   *zap.Logger

	sendMu sync.Mutex
}

// New creates an executor for the given contract and signer key.
// tradeLog may be nil to disable the CSV record.
func New(backend Backend, contract common.Address, key *ecdsa.PrivateKey, chainID *big.Int, tradeLog *TradeLog, logger *zap.Logger) *Executor {
	return &Executor{
		backend:  backend,
		contract: contract,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		tradeLog: tradeLog,
		logger:   logger,
	}
}

// From returns the signer address.
func (e *Executor) From() common.Address {
	return e.from
}

// calldata builds the execution payload for a trial. Pairs need a
// router in and out; triangles carry their routing on chain and only
// need the three tokens and the loan size.
func (e *Executor) calldata(trial *types.Trial) ([]byte, error) {
	switch trial.Path.Kind {
	case types.KindPair:
		if len(trial.Routers) < 2 {
			return nil, fmt.Errorf("pair execution needs two routers, got %d", len(trial.Routers))
		}
		params := struct {
			Token     common.Address
			Amount    *big.Int
			RouterIn  common.Address
			RouterOut common.Address
		}{
			Token:     trial.Path.Tokens[0].Address,
			Amount:    trial.Amount,
			RouterIn:  trial.Routers[0],
			RouterOut: trial.Routers[1],
		}
		return arbitrageABI.Pack("requestFlashLoan", params)
	case types.KindTriangle:
		if len(trial.Path.Tokens) != 3 {
			return nil, fmt.Errorf("triangle execution needs three tokens, got %d", len(trial.Path.Tokens))
		}
		return arbitrageABI.Pack("executeTriangleArbitrage",
			trial.Path.Tokens[0].Address,
			trial.Path.Tokens[1].Address,
			trial.Path.Tokens[2].Address,
			trial.Amount)
	default:
		return nil, fmt.Errorf("unknown path kind %d", trial.Path.Kind)
	}
}

// DryRun executes the trial's real calldata as an eth_call from the
// signer address. Any revert here would have reverted on chain too,
// so the trial is rejected without spending gas.
func (e *Executor) DryRun(ctx context.Context, trial *types.Trial) error {
	data, err := e.calldata(trial)
	if err != nil {
		return err
	}
	msg := ethereum.CallMsg{
		From: e.from,
		To:   &e.contract,
		Data: data,
	}
	if _, err := e.backend.CallContract(ctx, msg, nil); err != nil {
		return fmt.Errorf("dry run reverted: %w", err)
	}
	return nil
}

// EstimateGas asks the node to estimate the trial's execution cost.
func (e *Executor) EstimateGas(ctx context.Context, trial *types.Trial) (uint64, error) {
	data, err := e.calldata(trial)
	if err != nil {
		return 0, err
	}
	msg := ethereum.CallMsg{
		From: e.from,
		To:   &e.contract,
		Data: data,
	}
	gas, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("gas estimation failed: %w", err)
	}
	return gas, nil
}

// Execute signs and broadcasts the trial, then waits for inclusion.
// The broadcast itself is never cancelled: once SendTransaction is
// called the nonce is spent, so only the inclusion wait honors ctx.
func (e *Executor) Execute(ctx context.Context, trial *types.Trial) (common.Hash, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	data, err := e.calldata(trial)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := e.gasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{From: e.from, To: &e.contract, Data: data}
		gasLimit, err = e.backend.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas estimation failed: %w", err)
		}
		// Headroom against state drift between estimate and inclusion.
		gasLimit = gasLimit + gasLimit/5
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &e.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.backend.SendTransaction(sendCtx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast: %w", err)
	}

	e.logger.Info("Transaction broadcast",
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gasLimit", gasLimit))

	receipt, err := bind.WaitMined(ctx, e.backend, signed)
	if err != nil {
		return signed.Hash(), fmt.Errorf("inclusion wait failed: %w", err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		e.record(trial, signed.Hash(), "reverted")
		return signed.Hash(), fmt.Errorf("transaction %s reverted on chain", signed.Hash().Hex())
	}

	e.record(trial, signed.Hash(), "confirmed")
	e.logger.Info("Transaction confirmed",
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gasUsed", receipt.GasUsed))
	return signed.Hash(), nil
}

func (e *Executor) record(trial *types.Trial, hash common.Hash, status string) {
	if e.tradeLog == nil {
		return
	}
	if err := e.tradeLog.Record(trial, hash, status); err != nil {
		e.logger.Error("Failed to write trade record", zap.Error(err))
	}
}
