package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store records every successfully fetched quote so recent pricing activity
// can be inspected after the fact. It is write-behind bookkeeping: a failed
// insert is logged by the caller and never fails a snapshot request.
type Store struct {
	db *sql.DB
}

type QuoteRecord struct {
	ID            int64    `json:"id"`
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	PrevClose     float64  `json:"prev_close"`
	AnalystTarget *float64 `json:"analyst_target,omitempty"`
	FetchedAt     int64    `json:"fetched_at"`
	CreatedAt     string   `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/stockview.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_fetch (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			price REAL NOT NULL,
			prev_close REAL NOT NULL,
			analyst_target REAL,
			fetched_at INTEGER NOT NULL,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_fetch_symbol ON quote_fetch(symbol);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_fetch_fetched ON quote_fetch(fetched_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertQuote(rec QuoteRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().Format(time.RFC3339)
	}
	var target sql.NullFloat64
	if rec.AnalystTarget != nil {
		target = sql.NullFloat64{Float64: *rec.AnalystTarget, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO quote_fetch (symbol, price, prev_close, analyst_target, fetched_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Symbol, rec.Price, rec.PrevClose, target, rec.FetchedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

func (s *Store) RecentQuotes(symbol string, limit int, offset int) ([]QuoteRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(
		`SELECT id, symbol, price, prev_close, analyst_target, fetched_at, created_at
		 FROM quote_fetch WHERE symbol = ?
		 ORDER BY fetched_at DESC LIMIT ? OFFSET ?`,
		symbol, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []QuoteRecord
	for rows.Next() {
		var rec QuoteRecord
		var target sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Price, &rec.PrevClose, &target, &rec.FetchedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if target.Valid {
			v := target.Float64
			rec.AnalystTarget = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows quote: %w", err)
	}
	return out, nil
}
