// Package quote turns many logical router quote calls into a single
// aggregated network round trip and decodes each result independently.
package quote

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/router"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/utils/metrics"
)

// Call is one logical quote request inside a batch.
type Call struct {
	Router common.Address
	Path   []common.Address
	Amount *big.Int
}

// Engine batches quote calls through the aggregation contract.
type Engine struct {
	caller    ContractCaller
	registry  *router.Registry
	multicall common.Address
	bridges   []common.Address
	metrics   *metrics.QuoteMetrics
	logger    *zap.Logger
}

// NewEngine creates a quote engine. bridges are the middle tokens used
// to fan a leg quote out into 3-token alternatives; m may be nil.
func NewEngine(caller ContractCaller, registry *router.Registry, multicall common.Address, bridges []common.Address, m *metrics.QuoteMetrics, logger *zap.Logger) *Engine {
	if multicall == (common.Address{}) {
		multicall = DefaultMulticallAddress
	}
	return &Engine{
		caller:    caller,
		registry:  registry,
		multicall: multicall,
		bridges:   bridges,
		metrics:   m,
		logger:    logger,
	}
}

// BatchQuote executes every call in one aggregated round trip and
// returns one QuoteResult per call, in call order. A call whose router
// family cannot be quoted fails the whole batch before dispatch; a
// call that reverts or decodes badly on chain only fails itself.
func (e *Engine) BatchQuote(ctx context.Context, calls []Call) ([]types.QuoteResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	encoded := make([]aggregateCall, 0, len(calls))
	for i, c := range calls {
		ec, err := e.registry.EncodeQuote(c.Router, c.Amount, c.Path)
		if err != nil {
			return nil, fmt.Errorf("call %d rejected before dispatch: %w", i, err)
		}
		encoded = append(encoded, aggregateCall{Target: ec.Target, CallData: ec.CallData})
	}

	start := time.Now()
	raw, err := tryAggregate(ctx, e.caller, e.multicall, encoded)
	if e.metrics != nil {
		e.metrics.Batches.Inc()
		e.metrics.Calls.Add(float64(len(calls)))
		e.metrics.BatchSize.Observe(float64(len(calls)))
		e.metrics.BatchLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.BatchFailures.Inc()
		}
	}
	if err != nil {
		return nil, err
	}

	results := make([]types.QuoteResult, len(calls))
	for i, r := range raw {
		qr := types.QuoteResult{Router: calls[i].Router, Path: calls[i].Path}
		if !r.Success || len(r.ReturnData) == 0 {
			if e.metrics != nil {
				e.metrics.CallFailures.Inc()
			}
			results[i] = qr
			continue
		}
		amounts, err := router.DecodeAmounts(r.ReturnData)
		if err != nil {
			// Malformed return data is no-liquidity for this trial,
			// never a batch error.
			e.logger.Debug("Discarding undecodable quote result",
				zap.String("router", e.registry.Name(calls[i].Router)),
				zap.Error(err))
			if e.metrics != nil {
				e.metrics.CallFailures.Inc()
			}
			results[i] = qr
			continue
		}
		qr.Success = true
		qr.Amounts = amounts
		results[i] = qr
	}
	return results, nil
}

// QuoteLeg quotes tokenIn->tokenOut on one router, fanning out into
// the direct path plus one bridged path per configured middle token,
// all inside one batch. The best final output wins; nil means the leg
// has no liquidity on this router.
func (e *Engine) QuoteLeg(ctx context.Context, routerAddr, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	calls := []Call{{Router: routerAddr, Path: []common.Address{tokenIn, tokenOut}, Amount: amountIn}}
	for _, bridge := range e.bridges {
		if bridge == tokenIn || bridge == tokenOut {
			continue
		}
		calls = append(calls, Call{
			Router: routerAddr,
			Path:   []common.Address{tokenIn, bridge, tokenOut},
			Amount: amountIn,
		})
	}

	results, err := e.BatchQuote(ctx, calls)
	if err != nil {
		return nil, err
	}

	var best *big.Int
	for _, r := range results {
		out := r.Out()
		if out == nil || out.Sign() <= 0 {
			continue
		}
		if best == nil || out.Cmp(best) > 0 {
			best = out
		}
	}
	return best, nil
}

// ProbeLiquidity issues one small direct quote per router and returns
// the routers that produced a non-zero output for the pair. Routers of
// non-quotable families are excluded up front.
func (e *Engine) ProbeLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, probeAmount *big.Int, routers []common.Address) ([]common.Address, error) {
	calls := make([]Call, 0, len(routers))
	kept := make([]common.Address, 0, len(routers))
	for _, r := range routers {
		if e.registry.Classify(r) != router.FamilyConstantProduct {
			continue
		}
		calls = append(calls, Call{Router: r, Path: []common.Address{tokenIn, tokenOut}, Amount: probeAmount})
		kept = append(kept, r)
	}
	if len(calls) == 0 {
		return nil, nil
	}

	results, err := e.BatchQuote(ctx, calls)
	if err != nil {
		return nil, err
	}

	liquid := make([]common.Address, 0, len(kept))
	for i, r := range results {
		if out := r.Out(); out != nil && out.Sign() > 0 {
			liquid = append(liquid, kept[i])
		}
	}
	return liquid, nil
}
