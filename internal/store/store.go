// Package store holds the single shared session state for one client
// instance. The store is the only writer; everything else observes
// snapshots and dispatches intents back through the orchestrator.
package store

import (
	"sync"

	"github.com/insightlab/stockinsight/internal/models"
)

// SessionState is the mutable record backing the current session. No derived
// fields live here; readers compute display values (e.g. busy = Analyzing ||
// CheckingOut) themselves.
type SessionState struct {
	StockQuery string
	Timeframe  models.Timeframe

	Analyzing   bool
	CheckingOut bool

	CurrentInsight *models.Insight
	History        []models.InsightSummary
	HistoryTotal   int

	Err        string
	CheckoutID string
}

func initialState() SessionState {
	return SessionState{Timeframe: models.TimeframeMid}
}

// Store guards SessionState and issues run tokens. A token is stamped per
// orchestration run; results from a superseded run are dropped instead of
// overwriting a newer run's state.
type Store struct {
	mu     sync.Mutex
	state  SessionState
	runSeq uint64
}

// New creates a store in its initial state.
func New() *Store {
	return &Store{state: initialState()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginRun issues the next run token, marking any in-flight run stale.
func (s *Store) BeginRun() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runSeq++
	return s.runSeq
}

// ApplyIf mutates state only when token is still the latest issued run.
// Returns false when the mutation was dropped as stale.
func (s *Store) ApplyIf(token uint64, mutate func(*SessionState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.runSeq {
		return false
	}
	mutate(&s.state)
	return true
}

func (s *Store) set(mutate func(*SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
}

// SetStockQuery records the form's stock query input.
func (s *Store) SetStockQuery(query string) {
	s.set(func(st *SessionState) { st.StockQuery = query })
}

// SetTimeframe records the selected investment horizon.
func (s *Store) SetTimeframe(tf models.Timeframe) {
	s.set(func(st *SessionState) { st.Timeframe = tf })
}

// SetAnalyzing toggles the analysis-in-flight flag.
func (s *Store) SetAnalyzing(v bool) {
	s.set(func(st *SessionState) { st.Analyzing = v })
}

// SetCheckingOut toggles the checkout-in-flight flag.
func (s *Store) SetCheckingOut(v bool) {
	s.set(func(st *SessionState) { st.CheckingOut = v })
}

// SetCurrentInsight replaces the displayed insight.
func (s *Store) SetCurrentInsight(insight *models.Insight) {
	s.set(func(st *SessionState) { st.CurrentInsight = insight })
}

// SetHistory replaces the history page.
func (s *Store) SetHistory(items []models.InsightSummary, total int) {
	s.set(func(st *SessionState) {
		st.History = items
		st.HistoryTotal = total
	})
}

// SetError records the last user-visible error message.
func (s *Store) SetError(msg string) {
	s.set(func(st *SessionState) { st.Err = msg })
}

// ClearError clears the last error.
func (s *Store) ClearError() {
	s.set(func(st *SessionState) { st.Err = "" })
}

// SetCheckoutID records the in-flight checkout identifier, "" to clear.
func (s *Store) SetCheckoutID(id string) {
	s.set(func(st *SessionState) { st.CheckoutID = id })
}

// Reset restores every field to its initial value. Run tokens are not reset;
// a stale run must stay stale across resets.
func (s *Store) Reset() {
	s.set(func(st *SessionState) { *st = initialState() })
}
