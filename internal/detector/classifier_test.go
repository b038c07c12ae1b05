package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwatch/tradefeed/internal/models"
	"github.com/solwatch/tradefeed/internal/rpc"
)

const (
	testPool  = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	testMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testUser  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testVault = "DQyrAcCrDXQ7NeoqGgDCZwBvWDcYmFCjSb9JtteuvPpz"
	testSig   = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
)

func swapTx(keys []string, pre, post []int64, preTB, postTB []rpc.TokenBalance) *rpc.TransactionResult {
	accountKeys := make([]rpc.AccountKey, len(keys))
	for i, k := range keys {
		accountKeys[i] = rpc.AccountKey{Pubkey: k, Signer: i == 0}
	}
	return &rpc.TransactionResult{
		BlockTime: time.Now().Unix(),
		Meta: &rpc.TransactionMeta{
			PreBalances:       pre,
			PostBalances:      post,
			PreTokenBalances:  preTB,
			PostTokenBalances: postTB,
		},
		Transaction: &rpc.Transaction{
			Message: rpc.TransactionMessage{AccountKeys: accountKeys},
		},
	}
}

func tb(index int, owner string, amount float64) rpc.TokenBalance {
	return rpc.TokenBalance{
		AccountIndex:  index,
		Mint:          testMint,
		Owner:         owner,
		UITokenAmount: rpc.TokenAmount{UIAmount: amount, Decimals: 6},
	}
}

func testPoolRecord() models.PoolRecord {
	return models.PoolRecord{
		TokenMint:   testMint,
		PoolAddress: testPool,
	}
}

func TestClassifyBuy(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// User receives 500 tokens into a freshly created token account and
	// spends 0.05 SOL. The vault holds a million tokens so it is excluded
	// from user-side candidates.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{12_000_000_000, 5_000_000_000, 3_000_000_000},
		[]int64{11_950_000_000, 5_000_000_000, 3_000_000_000},
		[]rpc.TokenBalance{
			tb(2, testVault, 1_000_000),
		},
		[]rpc.TokenBalance{
			tb(1, testUser, 500),
			tb(2, testVault, 999_500),
		},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	require.Equal(t, RejectNone, reason)
	require.NotNil(t, trade)

	assert.Equal(t, models.SideBuy, trade.Side)
	assert.InDelta(t, 0.05, trade.SolAmount, 1e-9)
	assert.InDelta(t, 500, trade.TokenAmount, 1e-9)
	assert.InDelta(t, 0.0001, trade.Price, 1e-12)
	assert.Equal(t, testUser, trade.User)
	assert.Equal(t, testMint, trade.TokenMint)
	assert.Equal(t, testPool, trade.PoolAddress)
	assert.Equal(t, testSig, trade.Signature)
}

func TestClassifySell(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// User empties a 2000-token position and receives 0.08 SOL.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{5_000_000_000, 5_000_000_000, 3_000_000_000},
		[]int64{5_080_000_000, 5_000_000_000, 3_000_000_000},
		[]rpc.TokenBalance{
			tb(1, testUser, 2000),
			tb(2, testVault, 1_000_000),
		},
		[]rpc.TokenBalance{
			tb(1, testUser, 0),
			tb(2, testVault, 1_002_000),
		},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	require.Equal(t, RejectNone, reason)
	require.NotNil(t, trade)

	assert.Equal(t, models.SideSell, trade.Side)
	assert.InDelta(t, 0.08, trade.SolAmount, 1e-9)
	assert.InDelta(t, 2000, trade.TokenAmount, 1e-9)
	assert.InDelta(t, 0.00004, trade.Price, 1e-12)
	assert.Equal(t, testUser, trade.User)
}

func TestClassifyInvertedVaultFallback(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// Aggregator-routed swap: no user token account for the tracked mint,
	// only the pool vault moved. The vault gained tokens, so the user sold.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{5_000_000_000, 5_000_000_000, 3_000_000_000},
		[]int64{5_500_000_000, 5_000_000_000, 3_000_000_000},
		[]rpc.TokenBalance{
			tb(2, testPool, 1_000_000),
		},
		[]rpc.TokenBalance{
			tb(2, testPool, 1_000_100),
		},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	require.Equal(t, RejectNone, reason)
	require.NotNil(t, trade)

	assert.Equal(t, models.SideSell, trade.Side)
	assert.InDelta(t, 100, trade.TokenAmount, 1e-9)
	assert.InDelta(t, 0.5, trade.SolAmount, 1e-9)
}

func TestClassifyRelevance(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())
	pool := testPoolRecord()

	t.Run("pool not referenced", func(t *testing.T) {
		tx := swapTx(
			[]string{testUser, testVault},
			[]int64{1_000_000_000, 1_000_000_000},
			[]int64{900_000_000, 1_100_000_000},
			nil,
			[]rpc.TokenBalance{tb(1, testUser, 500)},
		)
		trade, reason := c.Classify(tx, pool, testSig)
		assert.Nil(t, trade)
		assert.Equal(t, RejectNotRelevant, reason)
	})

	t.Run("mint not involved", func(t *testing.T) {
		tx := swapTx(
			[]string{testUser, testPool},
			[]int64{1_000_000_000, 1_000_000_000},
			[]int64{900_000_000, 1_100_000_000},
			nil,
			nil,
		)
		trade, reason := c.Classify(tx, pool, testSig)
		assert.Nil(t, trade)
		assert.Equal(t, RejectNotRelevant, reason)
	})

	t.Run("mint via token balances only", func(t *testing.T) {
		// The mint never appears in accountKeys, only in balances.
		tx := swapTx(
			[]string{testUser, testPool, testVault},
			[]int64{1_000_000_000, 1_000_000_000, 1_000_000_000},
			[]int64{900_000_000, 1_000_000_000, 1_000_000_000},
			[]rpc.TokenBalance{tb(2, testVault, 1_000_000)},
			[]rpc.TokenBalance{
				tb(1, testUser, 500),
				tb(2, testVault, 999_500),
			},
		)
		trade, reason := c.Classify(tx, pool, testSig)
		assert.Equal(t, RejectNone, reason)
		require.NotNil(t, trade)
		assert.Equal(t, models.SideBuy, trade.Side)
	})

	t.Run("nil transaction", func(t *testing.T) {
		trade, reason := c.Classify(nil, pool, testSig)
		assert.Nil(t, trade)
		assert.Equal(t, RejectNotRelevant, reason)
	})
}

func TestClassifyNoTokenDelta(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// Relevant accounts but only dust-level token movement.
	tx := swapTx(
		[]string{testUser, testPool, testMint},
		[]int64{1_000_000_000, 1_000_000_000, 1_000_000_000},
		[]int64{900_000_000, 1_100_000_000, 1_000_000_000},
		[]rpc.TokenBalance{tb(0, testUser, 100)},
		[]rpc.TokenBalance{tb(0, testUser, 100.005)},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	assert.Nil(t, trade)
	assert.Equal(t, RejectNoTokenDelta, reason)
}

func TestClassifyNoSolDelta(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// Token movement but every lamport change is below the fee-noise floor.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{1_000_000_000, 1_000_000_000, 1_000_000_000},
		[]int64{999_995_000, 1_000_000_000, 1_000_000_000},
		[]rpc.TokenBalance{tb(1, testUser, 0)},
		[]rpc.TokenBalance{tb(1, testUser, 500)},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	assert.Nil(t, trade)
	assert.Equal(t, RejectNoSolDelta, reason)
}

func TestClassifyBelowThreshold(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.SolMaterialityFloor = 0.00001
	c := NewClassifier(cfg)

	// Material by the lowered floor, still under the minimum trade size.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{1_000_000_000, 1_000_000_000, 1_000_000_000},
		[]int64{999_950_000, 1_000_000_000, 1_000_000_000},
		[]rpc.TokenBalance{tb(1, testUser, 0)},
		[]rpc.TokenBalance{tb(1, testUser, 500)},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	assert.Nil(t, trade)
	assert.Equal(t, RejectBelowThreshold, reason)
}

func TestClassifyDirectionDisagreement(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	// The user gained tokens (buy) but their lamport balance also went up,
	// which reads as a sell on the SOL side. Token evidence wins.
	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{5_000_000_000, 5_000_000_000, 3_000_000_000},
		[]int64{5_050_000_000, 5_000_000_000, 3_000_000_000},
		[]rpc.TokenBalance{
			tb(2, testVault, 1_000_000),
		},
		[]rpc.TokenBalance{
			tb(1, testUser, 500),
			tb(2, testVault, 999_500),
		},
	)

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	require.Equal(t, RejectNone, reason)
	require.NotNil(t, trade)

	assert.Equal(t, models.SideBuy, trade.Side)
	assert.InDelta(t, 0.05, trade.SolAmount, 1e-9)
}

func TestClassifyVaultDominance(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	t.Run("dominant account treated as vault", func(t *testing.T) {
		// Vault is not owned by the pool address but its balance dwarfs
		// everything else, so the smaller mover is the user.
		tx := swapTx(
			[]string{testUser, testPool, testVault},
			[]int64{2_000_000_000, 1_000_000_000, 1_000_000_000},
			[]int64{1_900_000_000, 1_000_000_000, 1_000_000_000},
			[]rpc.TokenBalance{
				tb(1, testUser, 10),
				tb(2, testVault, 5_000_000),
			},
			[]rpc.TokenBalance{
				tb(1, testUser, 110),
				tb(2, testVault, 4_999_900),
			},
		)
		trade, reason := c.Classify(tx, testPoolRecord(), testSig)
		require.Equal(t, RejectNone, reason)
		assert.Equal(t, models.SideBuy, trade.Side)
		assert.InDelta(t, 100, trade.TokenAmount, 1e-9)
	})

	t.Run("comparable balances are all users", func(t *testing.T) {
		// Two accounts within 50x of each other: the larger mover wins.
		tx := swapTx(
			[]string{testUser, testPool, testVault},
			[]int64{2_000_000_000, 1_000_000_000, 1_000_000_000},
			[]int64{1_900_000_000, 1_000_000_000, 1_000_000_000},
			[]rpc.TokenBalance{
				tb(1, testUser, 1000),
				tb(2, testVault, 2000),
			},
			[]rpc.TokenBalance{
				tb(1, testUser, 1700),
				tb(2, testVault, 1400),
			},
		)
		trade, reason := c.Classify(tx, testPoolRecord(), testSig)
		require.Equal(t, RejectNone, reason)
		assert.InDelta(t, 700, trade.TokenAmount, 1e-9)
		assert.Equal(t, models.SideBuy, trade.Side)
	})
}

func TestClassifyTimestampFromBlockTime(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	tx := swapTx(
		[]string{testUser, testPool, testVault},
		[]int64{12_000_000_000, 5_000_000_000, 3_000_000_000},
		[]int64{11_950_000_000, 5_000_000_000, 3_000_000_000},
		[]rpc.TokenBalance{tb(2, testVault, 1_000_000)},
		[]rpc.TokenBalance{
			tb(1, testUser, 500),
			tb(2, testVault, 999_500),
		},
	)
	tx.BlockTime = 1_700_000_000

	trade, reason := c.Classify(tx, testPoolRecord(), testSig)
	require.Equal(t, RejectNone, reason)
	assert.Equal(t, time.Unix(1_700_000_000, 0), trade.Timestamp)
}
