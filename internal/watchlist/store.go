// Package watchlist is a Redis-backed set of token mints queued for
// monitoring. The engine subscribes to one pool at a time; the watchlist is
// the durable source of what to watch next and what operators have queued.
package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "watchlist:index"
	entryPrefix = "watchlist:"
)

type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// ValidateMint checks that the mint is a well-formed 32-byte base58 address.
func ValidateMint(mint string) error {
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("invalid token mint")
	}
	if len(raw) != 32 {
		return fmt.Errorf("invalid token mint")
	}
	return nil
}

// Add puts a mint on the watchlist, overwriting any existing entry.
func (s *Store) Add(ctx context.Context, mint, label string) (*Entry, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	entry := &Entry{Mint: mint, Label: label, AddedAt: time.Now().UTC()}
	b, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKey(mint), b, 0)
	pipe.SAdd(ctx, indexKey, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("add watchlist entry: %w", err)
	}

	return entry, nil
}

// Get returns the entry for a mint.
func (s *Store) Get(ctx context.Context, mint string) (*Entry, error) {
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, entryKey(mint)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, fmt.Errorf("unmarshal watchlist entry: %w", err)
	}
	return &e, nil
}

// List returns every watchlist entry.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	mints, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list watchlist index: %w", err)
	}
	if len(mints) == 0 {
		return []*Entry{}, nil
	}

	keys := make([]string, 0, len(mints))
	for _, m := range mints {
		if err := ValidateMint(m); err != nil {
			continue
		}
		keys = append(keys, entryKey(m))
	}
	if len(keys) == 0 {
		return []*Entry{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget watchlist entries: %w", err)
	}

	out := make([]*Entry, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

// Remove drops a mint from the watchlist. Removing an absent mint is not an
// error.
func (s *Store) Remove(ctx context.Context, mint string) error {
	if err := ValidateMint(mint); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, entryKey(mint))
	pipe.SRem(ctx, indexKey, mint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove watchlist entry: %w", err)
	}
	return nil
}

func entryKey(mint string) string {
	return entryPrefix + mint
}
