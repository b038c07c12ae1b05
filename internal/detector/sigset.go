package detector

import (
	"sync"

	"github.com/solwatch/tradefeed/internal/constants"
)

// SignatureSet is a bounded, insertion-ordered set used purely for duplicate
// suppression. Once capacity is exceeded the oldest entries are evicted, so
// it is best-effort, not a correctness-critical ledger: downstream consumers
// still treat repeats as idempotent.
type SignatureSet struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewSignatureSet(capacity int) *SignatureSet {
	if capacity <= 0 {
		capacity = constants.ProcessedSignatureCapacity
	}
	return &SignatureSet{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Admit records the signature and reports whether it was new. Safe for
// concurrent use: overlapping pipeline runs serialize admission here.
func (s *SignatureSet) Admit(sig string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[sig]; ok {
		return false
	}

	s.seen[sig] = struct{}{}
	s.order = append(s.order, sig)

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return true
}

// Len reports the number of tracked signatures.
func (s *SignatureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
