// Package ladder walks a candidate path through an ascending sequence
// of trial amounts, prices the survivors against gas, and hands the
// first profitable trial to the executor.
package ladder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/types"
	umath "github.com/michaelpento.lv/flasharb/utils/math"
	"github.com/michaelpento.lv/flasharb/utils/metrics"
)

// Quoter prices one swap leg on one router. A nil output with a nil
// error means the leg has no liquidity at this amount.
type Quoter interface {
	QuoteLeg(ctx context.Context, router, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
}

// Verifier performs the pre-commit checks against the execution
// contract: a dry run of the real calldata, then a gas estimate.
type Verifier interface {
	DryRun(ctx context.Context, trial *types.Trial) error
	EstimateGas(ctx context.Context, trial *types.Trial) (uint64, error)
}

// GasOracle prices a gas limit in native currency and sizes a trade
// before a real estimate exists.
type GasOracle interface {
	CostWei(ctx context.Context, gasLimit uint64) (*big.Int, error)
	ArbitrageGasLimit(numHops int) uint64
}

// Executor broadcasts a verified trial and waits for inclusion.
type Executor interface {
	Execute(ctx context.Context, trial *types.Trial) (common.Hash, error)
}

// FailureRecorder receives paths whose entire ladder came up empty.
type FailureRecorder interface {
	RecordFailure(path *types.Path) error
}

// Config carries the tunable knobs of the ladder. The defaults mirror
// long-observed production values; every one can be overridden.
type Config struct {
	// Amounts are the trial flash-loan sizes in whole units of the
	// input token, ascending.
	Amounts []int64

	// MinNetProfit is the execution floor in common units after gas.
	MinNetProfit float64

	// LegRatioLimit skips a trial amount when the first leg's output
	// exceeds this multiple of the input (a quote that good is a
	// stale or broken pool, not an opportunity).
	LegRatioLimit int64

	// RoundTripRatioLimit abandons the whole ladder when a triangle
	// round trip returns more than this multiple of the input.
	RoundTripRatioLimit int64
}

// DefaultConfig returns the production ladder settings.
func DefaultConfig() Config {
	return Config{
		Amounts:             []int64{100, 250, 500, 1000, 2000},
		MinNetProfit:        1.0,
		LegRatioLimit:       5,
		RoundTripRatioLimit: 10,
	}
}

// Evaluator runs the trial ladder for one path and router assignment.
type Evaluator struct {
	cfg      Config
	quoter   Quoter
	verifier Verifier
	gas      GasOracle
	executor Executor
	recorder FailureRecorder
	metrics  *metrics.ExecutionMetrics
	logger   *zap.Logger
}

// NewEvaluator wires an evaluator. recorder may not be nil; a path
// that exhausts its ladder is always recorded. m may be nil.
func NewEvaluator(cfg Config, quoter Quoter, verifier Verifier, gas GasOracle, executor Executor, recorder FailureRecorder, m *metrics.ExecutionMetrics, logger *zap.Logger) *Evaluator {
	if len(cfg.Amounts) == 0 {
		cfg.Amounts = DefaultConfig().Amounts
	}
	if cfg.LegRatioLimit <= 0 {
		cfg.LegRatioLimit = DefaultConfig().LegRatioLimit
	}
	if cfg.RoundTripRatioLimit <= 0 {
		cfg.RoundTripRatioLimit = DefaultConfig().RoundTripRatioLimit
	}
	return &Evaluator{
		cfg:      cfg,
		quoter:   quoter,
		verifier: verifier,
		gas:      gas,
		executor: executor,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Evaluate walks the ladder for path with the given per-leg router
// assignment. Triangles that exhaust the ladder in quote order are
// retried with the intermediate and settlement hops swapped before
// the path is written off. It returns the terminal outcome of the
// attempt, or an error on infrastructure failure (network,
// persistence). Only a fully exhausted ladder blacklists the path; a
// sanity abort or a network error never does.
func (e *Evaluator) Evaluate(ctx context.Context, path *types.Path, routers []common.Address) (*types.Outcome, error) {
	if len(routers) == 0 {
		return nil, fmt.Errorf("no routers assigned for %s", path.Symbols())
	}

	outcome, err := e.walkLadder(ctx, path, routers)
	if err != nil {
		return nil, err
	}
	if outcome == nil && path.Kind == types.KindTriangle {
		outcome, err = e.walkLadder(ctx, swapMiddle(path), routers)
		if err != nil {
			return nil, err
		}
	}
	if outcome != nil {
		return outcome, nil
	}

	// RecordFailure always receives the original path, whose last
	// triangle hop is the settlement asset.
	if err := e.recorder.RecordFailure(path); err != nil {
		return nil, fmt.Errorf("failed to record exhausted path: %w", err)
	}
	if e.metrics != nil {
		e.metrics.PathsBlacklisted.Inc()
	}
	e.logger.Info("Ladder exhausted, path blacklisted",
		zap.String("path", path.Symbols()),
		zap.String("kind", path.Kind.String()))
	return &types.Outcome{Reason: "ladder exhausted"}, nil
}

// walkLadder runs the trial amounts for one hop ordering. A nil
// outcome with a nil error means every rung came up empty and the
// caller may try the next ordering or record the failure.
func (e *Evaluator) walkLadder(ctx context.Context, path *types.Path, routers []common.Address) (*types.Outcome, error) {
	origin := path.Tokens[0]
	for _, amountUnits := range e.cfg.Amounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		amount := umath.Scale(amountUnits, origin.Decimals)

		trial := &types.Trial{Path: path, Routers: routers, Amount: amount}
		gross, abort, err := e.quoteRoundTrip(ctx, trial)
		if err != nil {
			return nil, err
		}
		if abort {
			// A round trip that good is a broken pool, not an
			// opportunity. Abandon the attempt without blacklisting
			// so the path can be retried once quotes look sane.
			return &types.Outcome{Reason: "implausible round trip"}, nil
		}
		if gross == nil || gross.Sign() <= 0 {
			continue
		}

		outcome, err := e.commit(ctx, trial, gross)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}
	}
	return nil, nil
}

// swapMiddle returns the triangle with its intermediate and settlement
// hops exchanged, the second quote direction of the same token set.
func swapMiddle(p *types.Path) *types.Path {
	return &types.Path{
		Kind:   p.Kind,
		Tokens: []types.Token{p.Tokens[0], p.Tokens[2], p.Tokens[1]},
	}
}

// quoteRoundTrip prices every leg of the trial and returns the gross
// profit in input-token base units. A nil gross means this amount
// found no liquidity or tripped the leg sanity bound; abort means the
// round-trip bound tripped and the remaining ladder is pointless.
func (e *Evaluator) quoteRoundTrip(ctx context.Context, trial *types.Trial) (gross *big.Int, abort bool, err error) {
	hops := trial.Path.Addresses()
	tokens := trial.Path.Tokens

	amount := trial.Amount
	for leg := 0; leg+1 < len(hops); leg++ {
		routerAddr := trial.Routers[legRouter(leg, len(trial.Routers))]
		out, err := e.quoter.QuoteLeg(ctx, routerAddr, hops[leg], hops[leg+1], amount)
		if err != nil {
			return nil, false, err
		}
		if out == nil || out.Sign() <= 0 {
			return nil, false, nil
		}

		if leg == 0 {
			inDec := tokens[0].Decimals
			outDec := tokens[1].Decimals
			if umath.ExceedsRatio(out, outDec, amount, inDec, e.cfg.LegRatioLimit) {
				e.logger.Debug("Skipping trial on implausible first-leg quote",
					zap.String("path", trial.Path.Symbols()),
					zap.String("router", routerAddr.Hex()))
				return nil, false, nil
			}
		}
		amount = out
	}

	if trial.Path.Kind == types.KindTriangle {
		limit := umath.MulScalar(trial.Amount, e.cfg.RoundTripRatioLimit)
		if amount.Cmp(limit) > 0 {
			e.logger.Warn("Abandoning ladder on implausible round trip",
				zap.String("path", trial.Path.Symbols()))
			return nil, true, nil
		}
	}

	return new(big.Int).Sub(amount, trial.Amount), false, nil
}

// commit runs the pre-commit pipeline on a gross-profitable trial:
// dry run, gas estimate, net profit against the floor, then execution.
// A nil outcome with nil error means this amount was rejected and the
// ladder should continue.
func (e *Evaluator) commit(ctx context.Context, trial *types.Trial, gross *big.Int) (*types.Outcome, error) {
	origin := trial.Path.Tokens[0]
	grossUnits := umath.ToFloat(gross, origin.Decimals)

	// Size the trial against typical swap gas before spending RPC
	// calls on it; a quote that cannot clear the floor at the per-hop
	// heuristic never will at the real estimate.
	heuristic := e.gas.ArbitrageGasLimit(len(trial.Path.Tokens))
	heuristicCost, err := e.gas.CostWei(ctx, heuristic)
	if err != nil {
		return nil, err
	}
	if grossUnits-umath.WeiToFloat(heuristicCost) < e.cfg.MinNetProfit {
		if e.metrics != nil {
			e.metrics.BelowFloor.Inc()
		}
		e.logger.Debug("Trial below profit floor at heuristic gas",
			zap.String("path", trial.Path.Symbols()),
			zap.Float64("gross", grossUnits),
			zap.Uint64("gasLimit", heuristic))
		return nil, nil
	}

	if err := e.verifier.DryRun(ctx, trial); err != nil {
		e.logger.Debug("Dry run rejected trial",
			zap.String("path", trial.Path.Symbols()),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.DryRunRejections.Inc()
		}
		return nil, nil
	}

	gasLimit, err := e.verifier.EstimateGas(ctx, trial)
	if err != nil {
		e.logger.Debug("Gas estimation rejected trial",
			zap.String("path", trial.Path.Symbols()),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.GasEstimateErrors.Inc()
		}
		return nil, nil
	}

	gasCost, err := e.gas.CostWei(ctx, gasLimit)
	if err != nil {
		return nil, err
	}

	gasUnits := umath.WeiToFloat(gasCost)
	net := grossUnits - gasUnits
	if net < e.cfg.MinNetProfit {
		if e.metrics != nil {
			e.metrics.BelowFloor.Inc()
		}
		e.logger.Debug("Trial below profit floor",
			zap.String("path", trial.Path.Symbols()),
			zap.Float64("gross", grossUnits),
			zap.Float64("gasCost", gasUnits),
			zap.Float64("net", net))
		return nil, nil
	}

	e.logger.Info("Executing profitable trial",
		zap.String("path", trial.Path.Symbols()),
		zap.String("amount", trial.Amount.String()),
		zap.Float64("netProfit", net))

	txHash, err := e.executor.Execute(ctx, trial)
	if err != nil {
		// The opportunity may be gone but the path is not broken;
		// execution failures never blacklist.
		e.logger.Error("Execution failed",
			zap.String("path", trial.Path.Symbols()),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.ExecutionFailures.Inc()
		}
		return &types.Outcome{
			GrossProfit: gross,
			GasCostWei:  gasCost,
			NetProfit:   net,
			Reason:      fmt.Sprintf("execution failed: %v", err),
		}, nil
	}

	if e.metrics != nil {
		e.metrics.Executions.Inc()
		e.metrics.NetProfitUnits.Add(net)
	}
	return &types.Outcome{
		Executed:    true,
		GrossProfit: gross,
		GasCostWei:  gasCost,
		NetProfit:   net,
		TxHash:      txHash,
		Reason:      "executed",
	}, nil
}

// legRouter maps a leg index onto the router assignment: one router
// per leg when enough are given, otherwise the last router covers the
// remaining legs.
func legRouter(leg, n int) int {
	if leg >= n {
		return n - 1
	}
	return leg
}
