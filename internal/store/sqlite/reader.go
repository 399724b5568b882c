package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ta-engine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the candles_tf history.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying handle for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

const candleColumns = `token, exchange, tf, ts, open, high, low, close, volume, count`

// ReadTFCandles reads candles for exchange:token at tf newer than afterTS
// (unix seconds), oldest first.
func (r *Reader) ReadTFCandles(ctx context.Context, exchange, token string, tf int, afterTS int64) ([]model.TFCandle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+candleColumns+`
		FROM candles_tf
		WHERE exchange = ? AND token = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`, exchange, token, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_tf: %w", err)
	}
	return scanCandles(rows)
}

// ReadHistory reads the newest limit candles for exchange:token at tf,
// returned oldest first.
func (r *Reader) ReadHistory(ctx context.Context, exchange, token string, tf, limit int) ([]model.TFCandle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+candleColumns+` FROM (
			SELECT `+candleColumns+`
			FROM candles_tf
			WHERE exchange = ? AND token = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, exchange, token, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query history: %w", err)
	}
	return scanCandles(rows)
}

// ReadOHLCV is ReadHistory in column form.
func (r *Reader) ReadOHLCV(ctx context.Context, exchange, token string, tf, limit int) (model.OHLCV, error) {
	candles, err := r.ReadHistory(ctx, exchange, token, tf, limit)
	if err != nil {
		return model.OHLCV{}, err
	}
	o := model.FromCandles(candles)
	o.Exchange, o.Token, o.TF = exchange, token, tf
	return o, nil
}

// ListKeys returns every "exchange:token" key with candles at tf.
func (r *Reader) ListKeys(ctx context.Context, tf int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT exchange, token FROM candles_tf WHERE tf = ? ORDER BY exchange, token
	`, tf)
	if err != nil {
		return nil, fmt.Errorf("sqlite list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var ex, tok string
		if err := rows.Scan(&ex, &tok); err != nil {
			return nil, fmt.Errorf("sqlite scan keys: %w", err)
		}
		keys = append(keys, ex+":"+tok)
	}
	return keys, rows.Err()
}

func scanCandles(rows *sql.Rows) ([]model.TFCandle, error) {
	defer rows.Close()

	var candles []model.TFCandle
	for rows.Next() {
		var c model.TFCandle
		var tsUnix int64
		var volume, count sql.NullInt64
		if err := rows.Scan(&c.Token, &c.Exchange, &c.TF, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume, &count); err != nil {
			return nil, fmt.Errorf("sqlite scan candles_tf: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		c.Volume = volume.Int64
		c.Count = int(count.Int64)
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
