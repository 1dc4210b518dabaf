// Package parser turns the public query path into an index query: an
// availability segment and a '+'-separated keyword list.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

type QueryPlan struct {
	Query    indexer.Query
	RawQuery string
}

// Parse builds a plan from the two path segments. Empty keywords between
// separators are dropped; a search made only of separators matches nothing.
// order is the optional "order" query parameter ("name" or "id").
func Parse(avail, search, order string, maxKeywords int) (*QueryPlan, error) {
	availability, ok := entry.ParseAvailability(avail)
	if !ok {
		return nil, fmt.Errorf("availability %q: %w", avail, apperrors.ErrInvalidInput)
	}

	plan := &QueryPlan{
		Query: indexer.Query{
			Availability: availability,
			Keywords:     make([]string, 0),
		},
		RawQuery: search,
	}
	switch order {
	case "", "name":
		plan.Query.Order = entry.ByName
	case "id":
		plan.Query.Order = entry.ByID
	default:
		return nil, fmt.Errorf("order %q: %w", order, apperrors.ErrInvalidInput)
	}

	for _, word := range strings.Split(search, "+") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		plan.Query.Keywords = append(plan.Query.Keywords, word)
	}
	if maxKeywords > 0 && len(plan.Query.Keywords) > maxKeywords {
		return nil, fmt.Errorf("%d keywords exceeds the limit of %d: %w",
			len(plan.Query.Keywords), maxKeywords, apperrors.ErrInvalidInput)
	}
	return plan, nil
}
