package detector

import (
	"strings"

	"github.com/solwatch/tradefeed/internal/constants"
)

// LogFilter is a cheap substring pre-filter over raw log lines, deciding
// whether a full transaction fetch is worth paying for. Policy: over-match.
// A missed swap cannot be recovered later; an over-matched non-swap costs
// one wasted fetch that the classifier discards.
type LogFilter struct {
	markers []string
}

func NewLogFilter(extra ...string) *LogFilter {
	markers := make([]string, 0, len(constants.SwapLogMarkers)+len(extra))
	markers = append(markers, constants.SwapLogMarkers...)
	markers = append(markers, extra...)
	return &LogFilter{markers: markers}
}

// Match reports whether the logs look like they could contain a swap.
// Deliveries with no log lines pass through: absence of logs cannot rule a
// swap out, and the fetch is cheap relative to a missed trade.
func (f *LogFilter) Match(logs []string) bool {
	if len(logs) == 0 {
		return true
	}
	for _, line := range logs {
		for _, marker := range f.markers {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
