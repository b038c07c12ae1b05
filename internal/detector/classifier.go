package detector

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/constants"
	"github.com/solwatch/tradefeed/internal/models"
	"github.com/solwatch/tradefeed/internal/rpc"
)

// RejectReason explains why a fetched transaction produced no trade.
// Rejections are designed no-ops, not errors; they surface as heartbeat
// diagnostics so liveness monitors can tell idle from dead.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectNotRelevant    RejectReason = "not_relevant"
	RejectNoTokenDelta   RejectReason = "no_token_delta"
	RejectNoSolDelta     RejectReason = "no_sol_delta"
	RejectBelowThreshold RejectReason = "below_threshold"
)

// ClassifierConfig holds the classification thresholds. The defaults are
// empirically tuned against mainnet pools, not protocol-derived.
type ClassifierConfig struct {
	// VaultMultiplier: a token account whose balance exceeds the next
	// largest candidate by this factor is treated as the pool vault.
	VaultMultiplier float64
	// TokenDustFloor: user balance changes at or below this are ignored.
	TokenDustFloor float64
	// SolMaterialityFloor: lamport deltas below this (in SOL) are fee noise.
	SolMaterialityFloor float64
	// MinTradeSOL: trades below this SOL amount are never emitted.
	MinTradeSOL float64

	Logger *logrus.Logger
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		VaultMultiplier:     50,
		TokenDustFloor:      0.01,
		SolMaterialityFloor: 0.001,
		MinTradeSOL:         0.0001,
	}
}

// Classifier decides, from a raw parsed transaction, whether it is a
// relevant swap against the tracked pool, which side it is, and how much
// moved. This is a best-effort heuristic over balance deltas, not a
// protocol-certified instruction decode; the precedence rules below are the
// authoritative contract.
type Classifier struct {
	cfg    ClassifierConfig
	logger *logrus.Logger
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.VaultMultiplier <= 0 {
		cfg.VaultMultiplier = 50
	}
	if cfg.TokenDustFloor <= 0 {
		cfg.TokenDustFloor = 0.01
	}
	if cfg.SolMaterialityFloor <= 0 {
		cfg.SolMaterialityFloor = 0.001
	}
	if cfg.MinTradeSOL <= 0 {
		cfg.MinTradeSOL = 0.0001
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Classifier{cfg: cfg, logger: logger}
}

// tokenAccount is a merged pre/post token-balance view for one account index.
type tokenAccount struct {
	index      int
	owner      string
	pre        float64
	post       float64
	newAccount bool // present only in post: freshly created token account
}

func (a *tokenAccount) delta() float64 { return a.post - a.pre }
func (a *tokenAccount) peak() float64  { return math.Max(a.pre, a.post) }

// solDelta is one account's material lamport change, in SOL.
type solDelta struct {
	index  int
	pubkey string
	amount float64 // signed
}

// Classify runs the full pipeline against one parsed transaction. It
// returns the trade event, or nil and the rejection reason.
func (c *Classifier) Classify(tx *rpc.TransactionResult, pool models.PoolRecord, signature string) (*models.TradeEvent, RejectReason) {
	if tx == nil || tx.Meta == nil || tx.Transaction == nil {
		return nil, RejectNotRelevant
	}

	keys := tx.Transaction.Message.AccountKeys

	// Step A: relevance. The pool address must be referenced AND the
	// tracked mint must appear among accounts or token balances. Either
	// alone is insufficient: pools share code paths and incidental
	// accounts, and the tracked token can ride through an unrelated pool
	// in a multi-hop route.
	if !c.relevant(tx, pool, keys) {
		return nil, RejectNotRelevant
	}

	// Step B: token delta for the tracked mint, excluding the pool vault.
	accounts := mergeTokenBalances(tx.Meta, pool.TokenMint)
	if len(accounts) == 0 {
		return nil, RejectNoTokenDelta
	}

	vaults, users := c.splitVaults(accounts, pool.PoolAddress)

	var tokenAmount float64
	var tokenSide models.Side
	var userOwner string
	lowConfidence := false

	if user := largestMove(users, c.cfg.TokenDustFloor); user != nil {
		tokenAmount = math.Abs(user.delta())
		if user.delta() > 0 {
			tokenSide = models.SideBuy
		} else {
			tokenSide = models.SideSell
		}
		userOwner = user.owner
	} else if vault := invertedVaultCandidate(vaults); vault != nil {
		// Aggregator-routed swaps often leave no direct user token
		// account. Read the vault instead and invert: the pool gaining
		// tokens means the user sold, losing means bought. Lower
		// confidence, flagged for observability.
		tokenAmount = math.Abs(vault.delta())
		if vault.delta() > 0 {
			tokenSide = models.SideSell
		} else {
			tokenSide = models.SideBuy
		}
		lowConfidence = true
	} else {
		return nil, RejectNoTokenDelta
	}

	// Step C: SOL delta across all transaction accounts, fee noise floored.
	deltas := materialSolDeltas(tx.Meta, keys, c.cfg.SolMaterialityFloor)
	solAmount, solSide, solUser := c.pickSolDelta(deltas, keys, userOwner, tokenSide)
	if solAmount == 0 {
		return nil, RejectNoSolDelta
	}

	// Step D: cross-validation. Agreement: trust the SOL-based side, which
	// usually resolves to the true signer. Disagreement: trust the token
	// side; the SOL heuristic likely locked onto a pool-owned or unrelated
	// account.
	side := solSide
	if solSide != tokenSide {
		c.logger.WithFields(logrus.Fields{
			"signature": short(signature),
			"token":     tokenSide,
			"sol":       solSide,
		}).Debug("direction signals disagree, trusting token delta")
		side = tokenSide
	}

	user := userOwner
	if user == "" {
		user = solUser
	}

	// Step E: thresholds and emission.
	if solAmount <= c.cfg.MinTradeSOL || tokenAmount <= 0 {
		return nil, RejectBelowThreshold
	}

	timestamp := time.Now()
	if tx.BlockTime > 0 {
		timestamp = time.Unix(tx.BlockTime, 0)
	}

	trade := &models.TradeEvent{
		PoolAddress: pool.PoolAddress,
		// Always the tracked mint, so downstream never sees a mismatch.
		TokenMint:   pool.TokenMint,
		SolAmount:   solAmount,
		TokenAmount: tokenAmount,
		Side:        side,
		User:        user,
		Signature:   signature,
		Timestamp:   timestamp,
		Price:       solAmount / tokenAmount,
	}

	c.logger.WithFields(logrus.Fields{
		"signature":      short(signature),
		"side":           side,
		"sol":            solAmount,
		"tokens":         tokenAmount,
		"low_confidence": lowConfidence,
	}).Debug("classified swap")

	return trade, RejectNone
}

func (c *Classifier) relevant(tx *rpc.TransactionResult, pool models.PoolRecord, keys []rpc.AccountKey) bool {
	poolSeen := false
	mintSeen := false
	for _, key := range keys {
		switch key.Pubkey {
		case pool.PoolAddress:
			poolSeen = true
		case pool.TokenMint:
			mintSeen = true
		}
	}
	if !poolSeen {
		return false
	}
	if mintSeen {
		return true
	}
	for _, tb := range tx.Meta.PreTokenBalances {
		if tb.Mint == pool.TokenMint {
			return true
		}
	}
	for _, tb := range tx.Meta.PostTokenBalances {
		if tb.Mint == pool.TokenMint {
			return true
		}
	}
	return false
}

// mergeTokenBalances merges pre- and post-balances for the tracked mint by
// account index. An account present only in post is a freshly created token
// account, typically a first-time buy.
func mergeTokenBalances(meta *rpc.TransactionMeta, mint string) []*tokenAccount {
	byIndex := make(map[int]*tokenAccount)

	for _, tb := range meta.PreTokenBalances {
		if tb.Mint != mint {
			continue
		}
		byIndex[tb.AccountIndex] = &tokenAccount{
			index: tb.AccountIndex,
			owner: tb.Owner,
			pre:   tb.UITokenAmount.UIAmount,
		}
	}
	for _, tb := range meta.PostTokenBalances {
		if tb.Mint != mint {
			continue
		}
		acc, ok := byIndex[tb.AccountIndex]
		if !ok {
			acc = &tokenAccount{
				index:      tb.AccountIndex,
				owner:      tb.Owner,
				newAccount: true,
			}
			byIndex[tb.AccountIndex] = acc
		}
		acc.post = tb.UITokenAmount.UIAmount
		if acc.owner == "" {
			acc.owner = tb.Owner
		}
	}

	accounts := make([]*tokenAccount, 0, len(byIndex))
	for _, acc := range byIndex {
		accounts = append(accounts, acc)
	}
	return accounts
}

// splitVaults separates pool-vault candidates from user accounts. The vault
// is whichever account's peak balance dwarfs the next largest by the
// configured multiplier (reserves run orders of magnitude above individual
// holdings), plus anything literally owned by the pool address.
func (c *Classifier) splitVaults(accounts []*tokenAccount, poolAddress string) (vaults, users []*tokenAccount) {
	var top, second *tokenAccount
	for _, acc := range accounts {
		if acc.owner == poolAddress {
			continue
		}
		if top == nil || acc.peak() > top.peak() {
			second = top
			top = acc
		} else if second == nil || acc.peak() > second.peak() {
			second = acc
		}
	}

	dominant := top != nil && second != nil && top.peak() >= c.cfg.VaultMultiplier*second.peak()

	for _, acc := range accounts {
		switch {
		case acc.owner == poolAddress:
			vaults = append(vaults, acc)
		case dominant && acc == top:
			vaults = append(vaults, acc)
		default:
			users = append(users, acc)
		}
	}
	return vaults, users
}

// largestMove picks the user account with the largest absolute balance
// change above the dust floor.
func largestMove(users []*tokenAccount, dustFloor float64) *tokenAccount {
	var best *tokenAccount
	for _, acc := range users {
		move := math.Abs(acc.delta())
		if move <= dustFloor {
			continue
		}
		if best == nil || move > math.Abs(best.delta()) {
			best = acc
		}
	}
	return best
}

// invertedVaultCandidate picks, among vault-like accounts with a nonzero
// balance change, the one with the smallest pre-balance.
func invertedVaultCandidate(vaults []*tokenAccount) *tokenAccount {
	var best *tokenAccount
	for _, acc := range vaults {
		if acc.delta() == 0 {
			continue
		}
		if best == nil || acc.pre < best.pre {
			best = acc
		}
	}
	return best
}

func materialSolDeltas(meta *rpc.TransactionMeta, keys []rpc.AccountKey, floor float64) []solDelta {
	n := len(meta.PreBalances)
	if len(meta.PostBalances) < n {
		n = len(meta.PostBalances)
	}

	var deltas []solDelta
	for i := 0; i < n; i++ {
		amount := float64(meta.PostBalances[i]-meta.PreBalances[i]) / constants.LamportsPerSOL
		if math.Abs(amount) < floor {
			continue
		}
		pubkey := ""
		if i < len(keys) {
			pubkey = keys[i].Pubkey
		}
		deltas = append(deltas, solDelta{index: i, pubkey: pubkey, amount: amount})
	}
	return deltas
}

// pickSolDelta resolves the SOL leg. Precedence: the owner of the user
// token account if it appears among the account keys; otherwise the delta
// whose direction matches the token-side expectation (tokens received pairs
// with SOL spent and vice versa), largest magnitude first; otherwise the
// single largest-magnitude delta overall.
func (c *Classifier) pickSolDelta(deltas []solDelta, keys []rpc.AccountKey, userOwner string, tokenSide models.Side) (amount float64, side models.Side, user string) {
	if len(deltas) == 0 {
		return 0, "", ""
	}

	sideOf := func(d solDelta) models.Side {
		if d.amount < 0 {
			return models.SideBuy // SOL spent
		}
		return models.SideSell // SOL received
	}

	if userOwner != "" {
		for _, d := range deltas {
			if d.pubkey == userOwner {
				return math.Abs(d.amount), sideOf(d), d.pubkey
			}
		}
	}

	var match *solDelta
	for i := range deltas {
		d := &deltas[i]
		if sideOf(*d) != tokenSide {
			continue
		}
		if match == nil || math.Abs(d.amount) > math.Abs(match.amount) {
			match = d
		}
	}
	if match != nil {
		return math.Abs(match.amount), sideOf(*match), match.pubkey
	}

	largest := deltas[0]
	for _, d := range deltas[1:] {
		if math.Abs(d.amount) > math.Abs(largest.amount) {
			largest = d
		}
	}
	return math.Abs(largest.amount), sideOf(largest), largest.pubkey
}
