package feed

import (
	"encoding/json"
	"math"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

// marshalTop encodes a BookTop, zeroing NaN best prices so the payload stays
// valid JSON when a side is empty.
func marshalTop(top domain.BookTop) ([]byte, error) {
	if math.IsNaN(top.BestBid) {
		top.BestBid = 0
	}
	if math.IsNaN(top.BestAsk) {
		top.BestAsk = 0
	}
	return json.Marshal(top)
}
