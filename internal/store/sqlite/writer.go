package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"ta-engine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Writer owns the schema and the write side: candle imports and the
// strategy signal journal.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying handle for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// NewWriter opens dbPath in WAL mode and creates the schema if needed.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite writer opened", "path", dbPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles_tf (
			token      TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       INTEGER NOT NULL,
			high       INTEGER NOT NULL,
			low        INTEGER NOT NULL,
			close      INTEGER NOT NULL,
			volume     INTEGER,
			count      INTEGER,
			PRIMARY KEY (exchange, token, tf, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			strategy   TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			token      TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			go_long    INTEGER NOT NULL,
			go_short   INTEGER NOT NULL,
			stop_long  REAL,
			stop_short REAL,
			PRIMARY KEY (strategy, exchange, token, tf, ts)
		);
	`)
	return err
}

// InsertTFCandles upserts candles in a single transaction.
func (w *Writer) InsertTFCandles(ctx context.Context, candles []model.TFCandle) error {
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO candles_tf (token, exchange, tf, ts, open, high, low, close, volume, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(candles), func(stmt *sql.Stmt, i int) error {
		c := candles[i]
		_, err := stmt.ExecContext(ctx, c.Token, c.Exchange, c.TF, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Count)
		return err
	})
}

// SaveSignals journals strategy decisions that raised an entry. Decisions
// with neither side set are skipped.
func (w *Writer) SaveSignals(ctx context.Context, sigs []model.SignalResult) (int, error) {
	entries := make([]model.SignalResult, 0, len(sigs))
	for _, s := range sigs {
		if s.GoLong || s.GoShort {
			entries = append(entries, s)
		}
	}
	err := w.inTx(ctx, `
		INSERT OR REPLACE INTO signals (strategy, exchange, token, tf, ts, go_long, go_short, stop_long, stop_short)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(entries), func(stmt *sql.Stmt, i int) error {
		s := entries[i]
		_, err := stmt.ExecContext(ctx, s.Strategy, s.Exchange, s.Token, s.TF, s.TS.Unix(), s.GoLong, s.GoShort, s.StopLong, s.StopShort)
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// CountSignals returns the number of journaled signals for a strategy.
func (w *Writer) CountSignals(ctx context.Context, strategy string) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE strategy = ?`, strategy).Scan(&n)
	return n, err
}

func (w *Writer) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the writer.
func (w *Writer) Close() error {
	return w.db.Close()
}
