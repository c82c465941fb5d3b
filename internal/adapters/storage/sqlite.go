package storage

// sqlite.go: store del watcher.
//
//   - `wallets`: un agregado por wallet (first_seen, volumen, trades). Se actualiza
//     solo cuando el trade es nuevo, así re-escanear el mismo tape no infla nada.
//   - `trades`: tape observado, dedupe por id.
//   - `alerts`: alertas con snapshot del trade y del wallet en JSON, y label manual.
//   - `backtest_runs` / `backtest_results`: un run por uuid.
//
// Los timestamps se guardan como unix seconds (INTEGER) para comparar sin parsear.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	_ "modernc.org/sqlite"
)

var (
	_ ports.WalletStore   = (*SQLiteStorage)(nil)
	_ ports.AlertStore    = (*SQLiteStorage)(nil)
	_ ports.BacktestStore = (*SQLiteStorage)(nil)
)

// ErrNotFound indica que la fila pedida no existe.
var ErrNotFound = errors.New("not found")

const defaultHistoryLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
    address        TEXT PRIMARY KEY,
    first_seen     INTEGER NOT NULL,
    last_seen      INTEGER NOT NULL,
    total_volume   REAL    NOT NULL DEFAULT 0,
    total_trades   INTEGER NOT NULL DEFAULT 0,
    unique_markets INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    id             TEXT PRIMARY KEY,
    wallet_address TEXT    NOT NULL,
    market         TEXT    NOT NULL,
    market_title   TEXT,
    token_id       TEXT,
    timestamp      INTEGER NOT NULL,
    size           REAL    NOT NULL,
    price          REAL    NOT NULL,
    side           TEXT    NOT NULL,
    pnl            REAL
);

CREATE TABLE IF NOT EXISTS alerts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     INTEGER NOT NULL,
    wallet        TEXT    NOT NULL,
    market_title  TEXT,
    market_slug   TEXT,
    condition_id  TEXT    NOT NULL,
    token_id      TEXT,
    trade_data    TEXT    NOT NULL,
    score         REAL    NOT NULL,
    reasons       TEXT    NOT NULL,
    wallet_stats  TEXT    NOT NULL,
    current_price REAL    NOT NULL,
    label         TEXT
);

CREATE TABLE IF NOT EXISTS backtest_runs (
    id            TEXT PRIMARY KEY,
    started_at    INTEGER NOT NULL,
    train_size    INTEGER NOT NULL,
    test_size     INTEGER NOT NULL,
    valid_results INTEGER NOT NULL,
    avg_roi       REAL    NOT NULL,
    win_rate      REAL    NOT NULL,
    best          REAL    NOT NULL,
    worst         REAL    NOT NULL,
    horizon_sec   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_results (
    run_id          TEXT    NOT NULL REFERENCES backtest_runs(id),
    alert_id        INTEGER NOT NULL,
    timestamp       INTEGER NOT NULL,
    score           REAL    NOT NULL,
    alert_price     REAL    NOT NULL,
    execution_price REAL    NOT NULL,
    entry_price     REAL    NOT NULL,
    exit_price      REAL    NOT NULL,
    drift           REAL    NOT NULL,
    exit_source     TEXT    NOT NULL,
    pnl             REAL    NOT NULL,
    roi             REAL    NOT NULL,
    PRIMARY KEY (run_id, alert_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_wallet ON trades(wallet_address, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_ts     ON alerts(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_wallet ON alerts(wallet);
`

// SQLiteStorage implementa los puertos de persistencia sobre SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- wallets y trades ---

// RegisterTrade guarda el trade y actualiza el agregado del wallet en una transacción.
// Un trade ya registrado (mismo id) no modifica nada.
func (s *SQLiteStorage) RegisterTrade(ctx context.Context, trade domain.Trade, marketTitle string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RegisterTrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	ts := trade.Timestamp.Unix()
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades
			(id, wallet_address, market, market_title, token_id, timestamp, size, price, side, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Wallet, trade.Market, marketTitle, trade.TokenID,
		ts, trade.Size, trade.Price, string(trade.Side), nullFloat(trade.PnL),
	)
	if err != nil {
		return fmt.Errorf("storage.RegisterTrade: insert trade %s: %w", trade.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.RegisterTrade: rows affected %s: %w", trade.ID, err)
	}
	if n == 0 {
		return nil // duplicado
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (address, first_seen, last_seen, total_volume, total_trades, unique_markets)
		VALUES (?, ?, ?, ?, 1, 1)
		ON CONFLICT(address) DO UPDATE SET
			first_seen     = MIN(first_seen, excluded.first_seen),
			last_seen      = MAX(last_seen, excluded.last_seen),
			total_volume   = total_volume + excluded.total_volume,
			total_trades   = total_trades + 1,
			unique_markets = (SELECT COUNT(DISTINCT market) FROM trades WHERE wallet_address = ?)
	`, trade.Wallet, ts, ts, trade.Notional(), trade.Wallet); err != nil {
		return fmt.Errorf("storage.RegisterTrade: upsert wallet %s: %w", trade.Wallet, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RegisterTrade: commit: %w", err)
	}
	return nil
}

// WalletStats deriva el agregado del wallet. Un wallet desconocido devuelve
// stats vacías con solo la dirección.
func (s *SQLiteStorage) WalletStats(ctx context.Context, address string) (domain.WalletStats, error) {
	stats := domain.WalletStats{Address: address}

	var firstSeen int64
	err := s.db.QueryRowContext(ctx, `
		SELECT first_seen, total_volume, total_trades, unique_markets
		FROM wallets WHERE address = ?`, address,
	).Scan(&firstSeen, &stats.TotalVolume, &stats.TotalTrades, &stats.UniqueMarkets)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("storage.WalletStats: wallet %s: %w", address, err)
	}

	row := domain.WalletRow{FirstSeen: time.Unix(firstSeen, 0)}
	stats.AgeDays = row.AgeDays(s.now())
	if stats.TotalTrades > 0 {
		stats.AvgBetSize = stats.TotalVolume / float64(stats.TotalTrades)
	}

	var topCount int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) AS n FROM trades
		WHERE wallet_address = ?
		GROUP BY market ORDER BY n DESC LIMIT 1`, address,
	).Scan(&topCount)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("storage.WalletStats: concentration: %w", err)
	}
	if stats.TotalTrades > 0 {
		stats.MaxMarketConcentration = float64(topCount) / float64(stats.TotalTrades)
	}

	var wins, withPnL int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0), COUNT(pnl)
		FROM trades WHERE wallet_address = ?`, address,
	).Scan(&wins, &withPnL); err != nil {
		return stats, fmt.Errorf("storage.WalletStats: win rate: %w", err)
	}
	if withPnL > 0 {
		stats.WinRate = float64(wins) / float64(withPnL)
	}

	return stats, nil
}

// WalletHistory devuelve los últimos trades del wallet, más recientes primero.
func (s *SQLiteStorage) WalletHistory(ctx context.Context, address string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_address, market, COALESCE(token_id, ''), timestamp, size, price, side, pnl
		FROM trades WHERE wallet_address = ?
		ORDER BY timestamp DESC LIMIT ?`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.WalletHistory: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ts int64
		var side string
		var pnl sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.Wallet, &t.Market, &t.TokenID, &ts, &t.Size, &t.Price, &side, &pnl); err != nil {
			return nil, fmt.Errorf("storage.WalletHistory: scan row: %w", err)
		}
		t.Timestamp = time.Unix(ts, 0).UTC()
		t.Side = domain.Side(side)
		if pnl.Valid {
			v := pnl.Float64
			t.PnL = &v
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// BaselinePopulation devuelve una fila por wallet conocido.
func (s *SQLiteStorage) BaselinePopulation(ctx context.Context) ([]domain.WalletRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, first_seen, total_volume, total_trades FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("storage.BaselinePopulation: query: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletRow
	for rows.Next() {
		var r domain.WalletRow
		var firstSeen int64
		if err := rows.Scan(&r.Address, &firstSeen, &r.TotalVolume, &r.TotalTrades); err != nil {
			return nil, fmt.Errorf("storage.BaselinePopulation: scan row: %w", err)
		}
		r.FirstSeen = time.Unix(firstSeen, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- alertas ---

const alertColumns = `id, timestamp, wallet, COALESCE(market_title, ''), COALESCE(market_slug, ''),
	condition_id, COALESCE(token_id, ''), trade_data, score, reasons, wallet_stats, current_price, label`

// SaveAlert inserta la alerta y devuelve su id.
func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert domain.Alert) (int64, error) {
	tradeJSON, err := json.Marshal(alert.Trade)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveAlert: marshal trade: %w", err)
	}
	reasons := alert.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveAlert: marshal reasons: %w", err)
	}
	statsJSON, err := json.Marshal(alert.WalletStats)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveAlert: marshal wallet stats: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(timestamp, wallet, market_title, market_slug, condition_id, token_id,
			 trade_data, score, reasons, wallet_stats, current_price, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.Timestamp.Unix(), alert.Wallet, alert.MarketTitle, alert.MarketSlug,
		alert.ConditionID, alert.TokenID, string(tradeJSON), alert.Score,
		string(reasonsJSON), string(statsJSON), alert.CurrentPrice, nullLabel(alert.Label),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveAlert: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.SaveAlert: last insert id: %w", err)
	}
	return id, nil
}

// RecentAlerts devuelve las alertas desde since, más recientes primero.
func (s *SQLiteStorage) RecentAlerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	return s.queryAlerts(ctx, "storage.RecentAlerts",
		`SELECT `+alertColumns+` FROM alerts WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC`,
		since.Unix())
}

// LabeledAlerts devuelve todas las alertas con label.
func (s *SQLiteStorage) LabeledAlerts(ctx context.Context) ([]domain.Alert, error) {
	return s.queryAlerts(ctx, "storage.LabeledAlerts",
		`SELECT `+alertColumns+` FROM alerts WHERE label IS NOT NULL ORDER BY timestamp, id`)
}

// UnlabeledAlerts devuelve las alertas sin label, mayor score primero.
func (s *SQLiteStorage) UnlabeledAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.queryAlerts(ctx, "storage.UnlabeledAlerts",
		`SELECT `+alertColumns+` FROM alerts WHERE label IS NULL ORDER BY score DESC, id LIMIT ?`,
		limit)
}

// LabelAlert asigna el label manual. ErrNotFound si el id no existe.
func (s *SQLiteStorage) LabelAlert(ctx context.Context, id int64, label domain.Label) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET label = ? WHERE id = ?`, nullLabel(label), id)
	if err != nil {
		return fmt.Errorf("storage.LabelAlert: update %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.LabelAlert: alert %d: %w", id, ErrNotFound)
	}
	return nil
}

// AlertStats resume las alertas guardadas.
func (s *SQLiteStorage) AlertStats(ctx context.Context) (domain.AlertStats, error) {
	var st domain.AlertStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(score), 0),
		       COUNT(DISTINCT wallet),
		       COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0),
		       COUNT(label)
		FROM alerts`, s.now().Add(-24*time.Hour).Unix(),
	).Scan(&st.Total, &st.AvgScore, &st.UniqueWallets, &st.Last24h, &st.Labeled)
	if err != nil {
		return st, fmt.Errorf("storage.AlertStats: %w", err)
	}
	if st.Total == 0 {
		return st, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT wallet FROM alerts GROUP BY wallet ORDER BY COUNT(*) DESC, wallet LIMIT 1`,
	).Scan(&st.MostFlagged)
	if err != nil {
		return st, fmt.Errorf("storage.AlertStats: most flagged: %w", err)
	}
	return st, nil
}

func (s *SQLiteStorage) queryAlerts(ctx context.Context, op, query string, args ...any) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if errors.Is(err, errMalformedAlert) {
			slog.Warn("skipping malformed alert", "alert_id", a.ID, "op", op, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return alerts, nil
}

// errMalformedAlert marca filas cuyo JSON no decodifica; se saltan sin abortar el batch.
var errMalformedAlert = errors.New("malformed alert")

func scanAlert(rows *sql.Rows) (domain.Alert, error) {
	var a domain.Alert
	var ts int64
	var tradeJSON, reasonsJSON, statsJSON string
	var label sql.NullString

	if err := rows.Scan(&a.ID, &ts, &a.Wallet, &a.MarketTitle, &a.MarketSlug,
		&a.ConditionID, &a.TokenID, &tradeJSON, &a.Score, &reasonsJSON, &statsJSON,
		&a.CurrentPrice, &label); err != nil {
		return a, fmt.Errorf("scan row: %w", err)
	}
	a.Timestamp = time.Unix(ts, 0).UTC()
	a.Label = domain.Label(label.String)

	if err := json.Unmarshal([]byte(tradeJSON), &a.Trade); err != nil {
		return a, fmt.Errorf("alert %d trade: %w: %w", a.ID, errMalformedAlert, err)
	}
	if err := json.Unmarshal([]byte(reasonsJSON), &a.Reasons); err != nil {
		return a, fmt.Errorf("alert %d reasons: %w: %w", a.ID, errMalformedAlert, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &a.WalletStats); err != nil {
		return a, fmt.Errorf("alert %d wallet stats: %w: %w", a.ID, errMalformedAlert, err)
	}
	return a, nil
}

// --- backtest ---

// SaveBacktest persiste el run y sus resultados en una transacción.
func (s *SQLiteStorage) SaveBacktest(ctx context.Context, report domain.BacktestReport, results []domain.BacktestResult) error {
	if report.RunID == "" {
		return errors.New("storage.SaveBacktest: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, started_at, train_size, test_size, valid_results, avg_roi, win_rate, best, worst, horizon_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt.Unix(), report.TrainSize, report.TestSize,
		report.ValidResults, report.AvgROI, report.WinRate, report.Best, report.Worst,
		int64(report.Horizon/time.Second),
	); err != nil {
		return fmt.Errorf("storage.SaveBacktest: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_results
			(run_id, alert_id, timestamp, score, alert_price, execution_price, entry_price,
			 exit_price, drift, exit_source, pnl, roi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		e := r.Execution
		if _, err := stmt.ExecContext(ctx,
			report.RunID, r.AlertID, r.Timestamp.Unix(), r.Score, e.AlertPrice, e.ExecutionPrice,
			e.EntryPrice, e.ExitPrice, e.Drift, string(e.ExitSource), r.PnL, r.ROI,
		); err != nil {
			return fmt.Errorf("storage.SaveBacktest: insert result %d: %w", r.AlertID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveBacktest: commit: %w", err)
	}
	return nil
}

// BacktestRun devuelve un run guardado.
func (s *SQLiteStorage) BacktestRun(ctx context.Context, runID string) (domain.BacktestReport, error) {
	r := domain.BacktestReport{RunID: runID}
	var started, horizon int64
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, train_size, test_size, valid_results, avg_roi, win_rate, best, worst, horizon_sec
		FROM backtest_runs WHERE id = ?`, runID,
	).Scan(&started, &r.TrainSize, &r.TestSize, &r.ValidResults, &r.AvgROI, &r.WinRate, &r.Best, &r.Worst, &horizon)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("storage.BacktestRun: %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("storage.BacktestRun: %w", err)
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	r.Horizon = time.Duration(horizon) * time.Second
	return r, nil
}

// --- helpers internos ---

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullLabel(l domain.Label) sql.NullString {
	if l == domain.LabelNone {
		return sql.NullString{}
	}
	return sql.NullString{String: string(l), Valid: true}
}
