package archive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/handiism/audiobatch/internal/model"
)

// Order selects how successes are arranged in the archive.
type Order string

const (
	// OrderInput keeps the flat work-list order.
	OrderInput Order = "input"

	// OrderTitle sorts by title, case-insensitively.
	OrderTitle Order = "title"

	// OrderCompletion keeps the order in which items finished.
	OrderCompletion Order = "completion"
)

// ParseOrder validates an order name. Empty means OrderInput.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderInput, nil
	case OrderInput, OrderTitle, OrderCompletion:
		return o, nil
	default:
		return OrderInput, fmt.Errorf("unsupported archive order %q (input, title, completion)", s)
	}
}

// Arrange returns a copy of successes sorted according to order. Successes
// are expected in completion order, as BatchResult stores them.
func Arrange(successes []model.Outcome, order Order) []model.Outcome {
	out := make([]model.Outcome, len(successes))
	copy(out, successes)

	switch order {
	case OrderTitle:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := strings.ToLower(out[i].Item.Title), strings.ToLower(out[j].Item.Title)
			if a != b {
				return a < b
			}
			return out[i].Index < out[j].Index
		})
	case OrderCompletion:
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Index < out[j].Index
		})
	}
	return out
}
