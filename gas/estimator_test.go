package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSource struct {
	price *big.Int
	err   error
	calls int
}

func (s *stubSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.price), nil
}

func TestGasPriceFetchesSynchronouslyWhenCacheEmpty(t *testing.T) {
	src := &stubSource{price: big.NewInt(30_000_000_000)}
	e := NewEstimator(src, zaptest.NewLogger(t))
	defer e.Stop()

	price, err := e.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000_000), price.Int64())
}

func TestGasPriceErrorPropagates(t *testing.T) {
	src := &stubSource{err: errors.New("node down")}
	e := NewEstimator(src, zaptest.NewLogger(t))
	defer e.Stop()

	_, err := e.GasPrice(context.Background())
	assert.Error(t, err)
}

func TestCostWei(t *testing.T) {
	src := &stubSource{price: big.NewInt(30_000_000_000)}
	e := NewEstimator(src, zaptest.NewLogger(t))
	defer e.Stop()

	cost, err := e.CostWei(context.Background(), 500_000)
	require.NoError(t, err)

	want := new(big.Int).Mul(big.NewInt(30_000_000_000), big.NewInt(500_000))
	assert.Zero(t, want.Cmp(cost))
}

func TestArbitrageGasLimitScalesWithHops(t *testing.T) {
	src := &stubSource{price: big.NewInt(1)}
	e := NewEstimator(src, zaptest.NewLogger(t))
	defer e.Stop()

	two := e.ArbitrageGasLimit(2)
	three := e.ArbitrageGasLimit(3)
	assert.Equal(t, uint64(21000+2*152000), two)
	assert.Equal(t, uint64(152000), three-two)
}

func TestGasPriceReturnsCopy(t *testing.T) {
	src := &stubSource{price: big.NewInt(100)}
	e := NewEstimator(src, zaptest.NewLogger(t))
	defer e.Stop()

	p1, err := e.GasPrice(context.Background())
	require.NoError(t, err)
	p1.SetInt64(0)

	p2, err := e.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), p2.Int64())
}
