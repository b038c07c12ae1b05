package watchlist

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("token not on watchlist")

// Entry is one watched token mint.
type Entry struct {
	Mint    string    `json:"mint"`
	Label   string    `json:"label,omitempty"`
	AddedAt time.Time `json:"added_at"`
}
