package blacklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flasharb/types"
)

func testToken(sym string, b byte) types.Token {
	var addr common.Address
	addr[19] = b
	return types.Token{Symbol: sym, Address: addr, Decimals: 18}
}

func pairPath(a, b types.Token) *types.Path {
	return &types.Path{Kind: types.KindPair, Tokens: []types.Token{a, b}}
}

func trianglePath(a, b, s types.Token) *types.Path {
	return &types.Path{Kind: types.KindTriangle, Tokens: []types.Token{a, b, s}}
}

func openTestCache(t *testing.T) (*Cache, string, string) {
	t.Helper()
	dir := t.TempDir()
	pairFile := filepath.Join(dir, "pairs.json")
	triFile := filepath.Join(dir, "triangles.json")
	c, err := Open(pairFile, triFile, DefaultPromotionThreshold, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, pairFile, triFile
}

func TestRecordPairFailure(t *testing.T) {
	c, pairFile, _ := openTestCache(t)
	a, b := testToken("A", 1), testToken("B", 2)
	p := pairPath(a, b)

	assert.False(t, c.IsBlacklisted(p))
	require.NoError(t, c.RecordFailure(p))
	assert.True(t, c.IsBlacklisted(p))

	// The reversed ordering collapses to the same key.
	assert.True(t, c.IsBlacklisted(pairPath(b, a)))
	assert.Equal(t, 1, c.PairCount())

	raw, err := os.ReadFile(pairFile)
	require.NoError(t, err)
	var doc pairDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.BlacklistedPairs, 1)
	assert.Equal(t, p.Key(), doc.BlacklistedPairs[0])
}

func TestPairAndTriangleDocumentsAreIndependent(t *testing.T) {
	c, _, _ := openTestCache(t)
	a, b, s := testToken("A", 1), testToken("B", 2), testToken("S", 3)

	require.NoError(t, c.RecordFailure(pairPath(a, b)))
	// The same tokens as a triangle are still fair game.
	assert.False(t, c.IsBlacklisted(trianglePath(a, b, s)))
}

func TestPersistedStateSurvivesReopen(t *testing.T) {
	c, pairFile, triFile := openTestCache(t)
	a, b, s := testToken("A", 1), testToken("B", 2), testToken("S", 3)

	require.NoError(t, c.RecordFailure(pairPath(a, b)))
	require.NoError(t, c.RecordFailure(trianglePath(a, b, s)))

	reopened, err := Open(pairFile, triFile, DefaultPromotionThreshold, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, reopened.IsBlacklisted(pairPath(a, b)))
	assert.True(t, reopened.IsBlacklisted(trianglePath(a, b, s)))
}

func TestTokenPromotionBoundary(t *testing.T) {
	c, _, _ := openTestCache(t)
	hot := testToken("HOT", 9)

	// Three distinct blacklisted triangles referencing the token: no
	// ban yet.
	for i := byte(1); i <= 3; i++ {
		tri := trianglePath(hot, testToken("X", 10+i), testToken("Y", 20+i))
		require.NoError(t, c.RecordFailure(tri))
	}
	assert.False(t, c.IsTokenBanned(hot.Address))

	// The fourth reference crosses the threshold.
	require.NoError(t, c.RecordFailure(trianglePath(hot, testToken("X4", 40), testToken("Y4", 41))))
	assert.True(t, c.IsTokenBanned(hot.Address))

	// Any triangle containing the banned token is now blacklisted,
	// including ones never individually recorded.
	fresh := trianglePath(hot, testToken("Z", 50), testToken("W", 51))
	assert.True(t, c.IsBlacklisted(fresh))
}

func TestSettlementHopIsNeverPromoted(t *testing.T) {
	c, _, _ := openTestCache(t)
	stable := testToken("USDC", 9)

	// Four dead triangles all settle through the same stable.
	for i := byte(1); i <= 4; i++ {
		tri := trianglePath(testToken("X", 10+i), testToken("Y", 20+i), stable)
		require.NoError(t, c.RecordFailure(tri))
	}

	assert.False(t, c.IsTokenBanned(stable.Address))
	// A fresh triangle through the stable is still fair game.
	fresh := trianglePath(testToken("Z", 50), testToken("W", 51), stable)
	assert.False(t, c.IsBlacklisted(fresh))
}

func TestPromotionPersistsTokenBan(t *testing.T) {
	c, pairFile, triFile := openTestCache(t)
	hot := testToken("HOT", 9)
	for i := byte(1); i <= 4; i++ {
		require.NoError(t, c.RecordFailure(trianglePath(hot, testToken("X", 10+i), testToken("Y", 20+i))))
	}
	require.True(t, c.IsTokenBanned(hot.Address))

	raw, err := os.ReadFile(triFile)
	require.NoError(t, err)
	var doc triangleDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.BlacklistedTokens, 1)
	assert.Equal(t, strings.ToLower(hot.Address.Hex()), doc.BlacklistedTokens[0])

	reopened, err := Open(pairFile, triFile, DefaultPromotionThreshold, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, reopened.IsTokenBanned(hot.Address))
}

func TestKeysAreSortedLowercase(t *testing.T) {
	c, _, _ := openTestCache(t)
	a, b := testToken("A", 0xAB), testToken("B", 0x01)

	p := pairPath(a, b)
	require.NoError(t, c.RecordFailure(p))

	key := p.Key()
	parts := strings.Split(key, "_")
	require.Len(t, parts, 2)
	assert.Equal(t, strings.ToLower(key), key)
	assert.True(t, parts[0] < parts[1])
}

func TestPersistenceFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "missing", "pairs.json"), filepath.Join(dir, "missing", "triangles.json"), 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = c.RecordFailure(pairPath(testToken("A", 1), testToken("B", 2)))
	assert.Error(t, err)
}
