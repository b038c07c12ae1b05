package pools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/solwatch/tradefeed/internal/constants"
	"github.com/solwatch/tradefeed/internal/models"
	"github.com/solwatch/tradefeed/internal/rpc"
)

// Raydium AMM v4 pool-state mint offsets.
const (
	baseMintOffset  = constants.RaydiumAMMBaseMintOffset
	quoteMintOffset = constants.RaydiumAMMBaseMintOffset + 32
)

type programScanner interface {
	GetProgramAccounts(ctx context.Context, programID string, filters []rpc.Filter) ([]rpc.KeyedAccount, error)
}

// OnChainScanner is the last discovery tier: a filtered program-account scan
// for a pool whose state embeds the token mint. Expensive, but works for
// pools no aggregator has indexed yet.
type OnChainScanner struct {
	Client    programScanner
	ProgramID string
	Logger    *logrus.Logger
}

func NewOnChainScanner(client programScanner, logger *logrus.Logger) *OnChainScanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &OnChainScanner{
		Client:    client,
		ProgramID: constants.ProgramAddresses["RaydiumAMM"],
		Logger:    logger,
	}
}

func (s *OnChainScanner) Name() string { return "onchain-scan" }

// Resolve scans for a pool state holding the mint on either side of the
// pair. The mint may be the base or the quote depending on pool creation
// order, so both offsets are tried.
func (s *OnChainScanner) Resolve(ctx context.Context, tokenMint string) (*models.PoolRecord, error) {
	for _, offset := range []int{baseMintOffset, quoteMintOffset} {
		mintFilter, err := rpc.MemcmpBase58(offset, tokenMint)
		if err != nil {
			return nil, fmt.Errorf("bad token mint: %w", err)
		}

		accounts, err := s.Client.GetProgramAccounts(ctx, s.ProgramID, []rpc.Filter{
			rpc.DataSizeFilter(constants.RaydiumAMMStateSize),
			mintFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("program scan at offset %d: %w", offset, err)
		}
		if len(accounts) == 0 {
			continue
		}

		if len(accounts) > 1 {
			s.Logger.WithFields(logrus.Fields{
				"token": tokenMint,
				"count": len(accounts),
			}).Debug("multiple on-chain pools, taking first")
		}

		// Decimals are informational here; classification consumes ui amounts.
		return &models.PoolRecord{
			TokenMint:     tokenMint,
			PoolAddress:   accounts[0].Pubkey,
			BaseMint:      tokenMint,
			QuoteMint:     constants.WSOLMint,
			BaseDecimals:  9,
			QuoteDecimals: 9,
		}, nil
	}

	return nil, ErrNoPool
}
