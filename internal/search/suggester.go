package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insightlab/stockinsight/internal/models"
)

// SearchFunc performs one symbol lookup against the backend.
type SearchFunc func(ctx context.Context, query string) ([]models.StockMatch, error)

// Suggester feeds the interactive prompt's autocomplete. Keystrokes arrive
// via Update; lookups fire only after the quiet period, and results for a
// query that is no longer the latest input are discarded.
type Suggester struct {
	search   SearchFunc
	debounce *Debouncer
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	latest  string
	matches []models.StockMatch
}

// NewSuggester wires a suggester over search with the given quiet period.
func NewSuggester(search SearchFunc, quiet time.Duration, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		search:   search,
		debounce: NewDebouncer(quiet),
		timeout:  10 * time.Second,
		logger:   logger,
	}
}

// Update records the current input and schedules a lookup. An empty query
// short-circuits: pending work is cancelled and no network call is made.
func (s *Suggester) Update(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.latest = query
	if query == "" {
		s.matches = nil
	}
	s.mu.Unlock()

	if query == "" {
		s.debounce.Stop()
		return
	}

	s.debounce.Trigger(func() { s.fetch(query) })
}

func (s *Suggester) fetch(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	matches, err := s.search(ctx, query)
	if err != nil {
		s.logger.Debug("stock search failed", zap.String("query", query), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Input moved on while the request was in flight.
	if s.latest != query {
		return
	}
	s.matches = matches
}

// Matches returns the latest fetched results.
func (s *Suggester) Matches() []models.StockMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches
}

// Suggest adapts the suggester to survey's Input.Suggest contract: record the
// partial input, return what is cached so far as "SYMBOL  Name (Market)".
func (s *Suggester) Suggest(toComplete string) []string {
	s.Update(toComplete)

	matches := s.Matches()
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Symbol+"  "+m.Name+" ("+m.Market+")")
	}
	return out
}

// Close cancels any pending lookup. Call on prompt teardown.
func (s *Suggester) Close() {
	s.debounce.Stop()
}
