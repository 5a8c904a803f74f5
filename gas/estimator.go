package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PriceSource is the slice of an Ethereum client the estimator reads
// from; *ethclient.Client satisfies it.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimator tracks current gas prices in the background and prices
// arbitrage transactions.
type Estimator struct {
	source PriceSource
	logger *zap.Logger

	mu       sync.RWMutex
	gasPrice *big.Int

	ticker *time.Ticker
	done   chan struct{}
}

// NewEstimator creates a gas estimator and starts its refresh loop.
func NewEstimator(source PriceSource, logger *zap.Logger) *Estimator {
	e := &Estimator{
		source: source,
		logger: logger,
		ticker: time.NewTicker(time.Second),
		done:   make(chan struct{}),
	}
	go e.updateLoop()
	return e
}

func (e *Estimator) updateLoop() {
	for {
		select {
		case <-e.done:
			return
		case <-e.ticker.C:
			if err := e.update(); err != nil {
				e.logger.Error("Failed to update gas prices", zap.Error(err))
			}
		}
	}
}

func (e *Estimator) update() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	price, err := e.source.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	e.mu.Lock()
	e.gasPrice = price
	e.mu.Unlock()
	return nil
}

// GasPrice returns the current total gas price, fetching synchronously
// if the background loop has not filled the cache yet.
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	e.mu.RLock()
	cached := e.gasPrice
	e.mu.RUnlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	price, err := e.source.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	e.mu.Lock()
	e.gasPrice = price
	e.mu.Unlock()
	return new(big.Int).Set(price), nil
}

// CostWei prices a transaction of the given gas limit at the current
// gas price.
func (e *Estimator) CostWei(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	price, err := e.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return price.Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}

// ArbitrageGasLimit is a per-hop heuristic for sizing a flash-loan
// arbitrage before a real estimate exists: base transaction cost plus
// storage reads, token transfers and swap execution per hop.
func (e *Estimator) ArbitrageGasLimit(numHops int) uint64 {
	const (
		baseCost   = uint64(21000)
		costPerHop = uint64(152000)
	)
	return baseCost + costPerHop*uint64(numHops)
}

// Stop ends the refresh loop.
func (e *Estimator) Stop() {
	e.ticker.Stop()
	close(e.done)
}
