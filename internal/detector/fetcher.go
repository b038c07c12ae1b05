package detector

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/solwatch/tradefeed/internal/rpc"
)

// TransactionClient fetches parsed transactions.
type TransactionClient interface {
	GetParsedTransaction(ctx context.Context, signature string, commitment string) (*rpc.TransactionResult, error)
}

// Fetcher retrieves the full parsed transaction for a candidate signature.
// It fetches at confirmed commitment, one level above the processed-level
// log subscription, because balance-delta analysis needs settled numbers.
type Fetcher struct {
	client  TransactionClient
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// FetcherConfig holds configuration for the fetcher.
type FetcherConfig struct {
	Client     TransactionClient
	RatePerSec float64
	Burst      int
	Logger     *logrus.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Fetcher{
		client:  cfg.Client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  cfg.Logger,
	}
}

// Fetch returns the parsed transaction, or (nil, nil) when the transaction
// is unusable: not found at confirmed commitment, or executed with an error.
// Unusable transactions are never retried; the live log stream, not this
// fetch, is the redelivery mechanism.
func (f *Fetcher) Fetch(ctx context.Context, signature string) (*rpc.TransactionResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tx, err := f.client.GetParsedTransaction(ctx, signature, "confirmed")
	if err != nil {
		f.logger.WithError(err).WithField("signature", short(signature)).Debug("transaction fetch failed")
		return nil, nil
	}
	if tx == nil || tx.Meta == nil {
		f.logger.WithField("signature", short(signature)).Debug("transaction not found")
		return nil, nil
	}
	if tx.Meta.Err != nil {
		f.logger.WithField("signature", short(signature)).Debug("skipping failed transaction")
		return nil, nil
	}
	return tx, nil
}

func short(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}
