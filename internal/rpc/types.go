package rpc

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// RPCError represents a JSON-RPC error response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// TokenAmount represents token balance information.
type TokenAmount struct {
	Amount         string  `json:"amount"`
	Decimals       int     `json:"decimals"`
	UIAmountString string  `json:"uiAmountString"`
	UIAmount       float64 `json:"uiAmount"`
}

// TokenBalance represents a pre/post token balance entry.
type TokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// TransactionMeta contains metadata about a transaction.
type TransactionMeta struct {
	Err               interface{}    `json:"err"`
	PreBalances       []int64        `json:"preBalances"`
	PostBalances      []int64        `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
	LogMessages       []string       `json:"logMessages"`
}

// AccountKey represents an account referenced by a transaction.
type AccountKey struct {
	Pubkey string `json:"pubkey"`
	Signer bool   `json:"signer"`
}

// TransactionMessage contains the transaction message.
type TransactionMessage struct {
	AccountKeys []AccountKey `json:"accountKeys"`
}

// Transaction represents a parsed transaction.
type Transaction struct {
	Message TransactionMessage `json:"message"`
}

// TransactionResult contains the full transaction data.
type TransactionResult struct {
	BlockTime   int64            `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction *Transaction     `json:"transaction"`
}

// TransactionResponse is the response from getTransaction.
type TransactionResponse struct {
	Result *TransactionResult `json:"result"`
	Error  *RPCError          `json:"error"`
}

// MemcmpFilter matches account data bytes at an offset.
type MemcmpFilter struct {
	Offset int    `json:"offset"`
	Bytes  string `json:"bytes"` // base58
}

// Filter is one getProgramAccounts filter. Exactly one field is set.
type Filter struct {
	DataSize uint64        `json:"dataSize,omitempty"`
	Memcmp   *MemcmpFilter `json:"memcmp,omitempty"`
}

// DataSizeFilter builds a dataSize filter.
func DataSizeFilter(size uint64) Filter {
	return Filter{DataSize: size}
}

// MemcmpBase58 builds a memcmp filter from a base58-encoded address,
// validating that it decodes to 32 bytes.
func MemcmpBase58(offset int, addr string) (Filter, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid base58 address %q: %w", addr, err)
	}
	if len(raw) != 32 {
		return Filter{}, fmt.Errorf("address %q is %d bytes, want 32", addr, len(raw))
	}
	return Filter{Memcmp: &MemcmpFilter{Offset: offset, Bytes: addr}}, nil
}

// KeyedAccount is one getProgramAccounts result entry.
type KeyedAccount struct {
	Pubkey string `json:"pubkey"`
}

// ProgramAccountsResponse is the response from getProgramAccounts.
type ProgramAccountsResponse struct {
	Result []KeyedAccount `json:"result"`
	Error  *RPCError      `json:"error"`
}
