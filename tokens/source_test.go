package tokens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeTokenFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const goodList = `{
	"tokens": [
		{"symbol": "ZRX", "address": "0x5559Edb74751A0edE9DeA4DC23aeE72cCA6bE3D5", "decimals": 18, "chainId": 137},
		{"symbol": "USDC", "address": "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", "decimals": 6, "chainId": 137},
		{"symbol": "WETH", "address": "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", "decimals": 18, "chainId": 137},
		{"symbol": "MAINNET", "address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "decimals": 18, "chainId": 1}
	]
}`

func TestUniverseFromFile(t *testing.T) {
	src, err := NewSource("", writeTokenFile(t, goodList), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	universe, err := src.Universe(context.Background())
	require.NoError(t, err)

	// The mainnet entry is filtered; priority symbols lead.
	require.Len(t, universe, 3)
	assert.Equal(t, "USDC", universe[0].Symbol)
	assert.Equal(t, "WETH", universe[1].Symbol)
	assert.Equal(t, "ZRX", universe[2].Symbol)
	assert.Equal(t, uint8(6), universe[0].Decimals)
}

func TestMissingDecimalsIsFatal(t *testing.T) {
	body := `{"tokens": [{"symbol": "BAD", "address": "0x5559Edb74751A0edE9DeA4DC23aeE72cCA6bE3D5", "chainId": 137}]}`
	src, err := NewSource("", writeTokenFile(t, body), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = src.Universe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimals")
}

func TestMalformedAddressIsSkipped(t *testing.T) {
	body := `{"tokens": [
		{"symbol": "OK", "address": "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", "decimals": 6, "chainId": 137},
		{"symbol": "BROKEN", "address": "not-an-address", "decimals": 18, "chainId": 137}
	]}`
	src, err := NewSource("", writeTokenFile(t, body), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	universe, err := src.Universe(context.Background())
	require.NoError(t, err)
	require.Len(t, universe, 1)
	assert.Equal(t, "OK", universe[0].Symbol)
}

func TestRemoteListPreferred(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(goodList))
	}))
	defer server.Close()

	src, err := NewSource(server.URL, "", 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	universe, err := src.Universe(context.Background())
	require.NoError(t, err)
	assert.Len(t, universe, 3)
}

func TestRemoteFailureFallsBackToFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	src, err := NewSource(server.URL, writeTokenFile(t, goodList), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	universe, err := src.Universe(context.Background())
	require.NoError(t, err)
	assert.Len(t, universe, 3)
}

func TestUniverseIsCached(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(goodList))
	}))
	defer server.Close()

	src, err := NewSource(server.URL, "", 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = src.Universe(context.Background())
	require.NoError(t, err)
	_, err = src.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestResolve(t *testing.T) {
	src, err := NewSource("", writeTokenFile(t, goodList), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	got, err := src.Resolve(context.Background(), []string{"usdc", "WETH"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "USDC", got[0].Symbol)

	_, err = src.Resolve(context.Background(), []string{"NOPE"})
	assert.Error(t, err)
}

func TestEmptyUniverseIsError(t *testing.T) {
	src, err := NewSource("", writeTokenFile(t, `{"tokens": []}`), 137, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = src.Universe(context.Background())
	assert.Error(t, err)
}
