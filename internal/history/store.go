// Package history keeps a local copy of every insight this installation has
// fetched, so past reports remain readable offline. The remote history API
// stays the source of truth; this is a cache, not a sync.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/insightlab/stockinsight/internal/models"
	"github.com/insightlab/stockinsight/pkg/sqlite"
)

// Store records fetched insights in a local SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the local insight cache at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS insights (
		id INTEGER PRIMARY KEY,
		stock_code TEXT NOT NULL,
		stock_name TEXT NOT NULL,
		market TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create insights table: %w", err)
	}
	return nil
}

// Record upserts one fetched insight. Re-fetching the same id refreshes the
// stored payload.
func (s *Store) Record(insight *models.Insight) error {
	payload, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO insights
		(id, stock_code, stock_name, market, timeframe, recommendation, risk_score, created_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stock_code = excluded.stock_code,
			stock_name = excluded.stock_name,
			market = excluded.market,
			timeframe = excluded.timeframe,
			recommendation = excluded.recommendation,
			risk_score = excluded.risk_score,
			created_at = excluded.created_at,
			payload_json = excluded.payload_json,
			fetched_at = CURRENT_TIMESTAMP
	`,
		insight.ID,
		insight.StockCode,
		insight.StockName,
		insight.Market,
		string(insight.Timeframe),
		string(insight.Recommendation),
		insight.RiskScore,
		insight.CreatedAt,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("record insight %d: %w", insight.ID, err)
	}
	return nil
}

// ListRecent returns the most recently fetched insights, newest first.
func (s *Store) ListRecent(limit int) ([]models.InsightSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, stock_code, stock_name, market, timeframe, recommendation, risk_score, created_at
		FROM insights
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var items []models.InsightSummary
	for rows.Next() {
		var item models.InsightSummary
		var timeframe, recommendation string
		if err := rows.Scan(
			&item.ID,
			&item.StockCode,
			&item.StockName,
			&item.Market,
			&timeframe,
			&recommendation,
			&item.RiskScore,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insight row: %w", err)
		}
		item.Timeframe = models.Timeframe(timeframe)
		item.Recommendation = models.Recommendation(recommendation)
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns a cached insight, or sql.ErrNoRows when never fetched.
func (s *Store) GetByID(id int64) (*models.Insight, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload_json FROM insights WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return nil, err
	}

	var insight models.Insight
	if err := json.Unmarshal([]byte(payload), &insight); err != nil {
		return nil, fmt.Errorf("unmarshal cached insight %d: %w", id, err)
	}
	return &insight, nil
}
