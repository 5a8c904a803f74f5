package router

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	quickswapAddr = common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff")
	vaultAddr     = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	aggAddr       = common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582")

	tokenA = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	tokenB = common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063")
)

func TestEncodeQuoteConstantProduct(t *testing.T) {
	r := DefaultRegistry()

	ec, err := r.EncodeQuote(quickswapAddr, big.NewInt(1000), []common.Address{tokenA, tokenB})
	require.NoError(t, err)

	assert.Equal(t, FamilyConstantProduct, ec.Family)
	assert.Equal(t, quickswapAddr, ec.Target)
	assert.NotEmpty(t, ec.CallData)
	// 4-byte selector plus two ABI words plus the path array.
	assert.True(t, len(ec.CallData) > 4+32*2)
}

func TestEncodeQuoteRejectsNonQuotableFamilies(t *testing.T) {
	r := DefaultRegistry()
	path := []common.Address{tokenA, tokenB}

	_, err := r.EncodeQuote(vaultAddr, big.NewInt(1000), path)
	assert.Error(t, err)

	_, err = r.EncodeQuote(aggAddr, big.NewInt(1000), path)
	assert.Error(t, err)

	_, err = r.EncodeQuote(common.HexToAddress("0xdead"), big.NewInt(1000), path)
	assert.Error(t, err)
}

func TestEncodeQuoteInputValidation(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.EncodeQuote(quickswapAddr, big.NewInt(1000), []common.Address{tokenA})
	assert.Error(t, err)

	_, err = r.EncodeQuote(quickswapAddr, big.NewInt(0), []common.Address{tokenA, tokenB})
	assert.Error(t, err)

	_, err = r.EncodeQuote(quickswapAddr, nil, []common.Address{tokenA, tokenB})
	assert.Error(t, err)
}

func TestDecodeAmountsRoundTrip(t *testing.T) {
	want := []*big.Int{big.NewInt(1000), big.NewInt(1450), big.NewInt(997)}
	payload, err := routerABI.Methods["getAmountsOut"].Outputs.Pack(want)
	require.NoError(t, err)

	got, err := DecodeAmounts(payload)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Zero(t, want[i].Cmp(got[i]))
	}
}

func TestDecodeAmountsRejectsGarbage(t *testing.T) {
	_, err := DecodeAmounts(nil)
	assert.Error(t, err)

	_, err = DecodeAmounts([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}
