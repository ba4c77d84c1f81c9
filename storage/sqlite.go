package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"dealerwatch/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id INTEGER PRIMARY KEY,
		vin TEXT UNIQUE NOT NULL,
		stock_number TEXT,
		year INTEGER,
		make TEXT,
		model TEXT,
		trim TEXT,
		price TEXT,
		mileage INTEGER,
		exterior_color TEXT,
		interior_color TEXT,
		body_style TEXT,
		drivetrain TEXT,
		engine TEXT,
		transmission TEXT,
		photos JSON,
		detail_url TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY,
		vin TEXT NOT NULL,
		price TEXT NOT NULL,
		recorded_at DATETIME,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS change_log (
		id INTEGER PRIMARY KEY,
		vin TEXT NOT NULL,
		changed_at DATETIME,
		change_type TEXT,
		field_name TEXT,
		old_value TEXT,
		new_value TEXT,
		run_id TEXT
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT UNIQUE NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		vehicles_found INTEGER DEFAULT 0,
		vehicles_new INTEGER DEFAULT 0,
		vehicles_updated INTEGER DEFAULT 0,
		vehicles_removed INTEGER DEFAULT 0,
		errors JSON,
		summary TEXT,
		pid INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS monitor_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		enabled BOOLEAN DEFAULT FALSE,
		interval_minutes INTEGER DEFAULT 60,
		pages_to_check INTEGER DEFAULT 0,
		last_check_at DATETIME,
		last_check_result TEXT
	);

	CREATE TABLE IF NOT EXISTS system_logs (
		id INTEGER PRIMARY KEY,
		timestamp DATETIME,
		level TEXT,
		source TEXT,
		message TEXT,
		run_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_active ON vehicles(is_active);
	CREATE INDEX IF NOT EXISTS idx_price_history_vin ON price_history(vin, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_change_log_vin ON change_log(vin, changed_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_ts ON system_logs(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

const vehicleColumns = `id, vin, stock_number, year, make, model, trim, price, mileage,
	exterior_color, interior_color, body_style, drivetrain, engine, transmission,
	photos, detail_url, is_active, created_at, updated_at`

func (s *SQLiteStore) scanVehicle(row interface{ Scan(...any) error }) (*models.Vehicle, error) {
	var v models.Vehicle
	var price sql.NullString
	var mileage sql.NullInt64
	var photos sql.NullString
	err := row.Scan(&v.ID, &v.VIN, &v.StockNumber, &v.Year, &v.Make, &v.Model, &v.Trim,
		&price, &mileage, &v.ExteriorColor, &v.InteriorColor, &v.BodyStyle,
		&v.Drivetrain, &v.Engine, &v.Transmission, &photos, &v.DetailURL,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid && price.String != "" {
		if d, err := decimal.NewFromString(price.String); err == nil {
			v.Price = &d
		}
	}
	if mileage.Valid {
		m := int(mileage.Int64)
		v.Mileage = &m
	}
	if photos.Valid && photos.String != "" {
		_ = json.Unmarshal([]byte(photos.String), &v.Photos)
	}
	return &v, nil
}

func nullPrice(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.StringFixed(2)
}

func nullMileage(m *int) any {
	if m == nil {
		return nil
	}
	return *m
}

func marshalPhotos(photos []string) string {
	if photos == nil {
		photos = []string{}
	}
	b, _ := json.Marshal(photos)
	return string(b)
}

func (s *SQLiteStore) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE vin = ?`, vin)
	v, err := s.scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (s *SQLiteStore) ListActiveVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE is_active = TRUE ORDER BY vin`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := s.scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

func (s *SQLiteStore) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (vin, stock_number, year, make, model, trim, price, mileage,
			exterior_color, interior_color, body_style, drivetrain, engine, transmission,
			photos, detail_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VIN, v.StockNumber, v.Year, v.Make, v.Model, v.Trim, nullPrice(v.Price), nullMileage(v.Mileage),
		v.ExteriorColor, v.InteriorColor, v.BodyStyle, v.Drivetrain, v.Engine, v.Transmission,
		marshalPhotos(v.Photos), v.DetailURL, v.IsActive, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return err
	}
	v.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteStore) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE vehicles SET stock_number = ?, year = ?, make = ?, model = ?, trim = ?,
			price = ?, mileage = ?, exterior_color = ?, interior_color = ?, body_style = ?,
			drivetrain = ?, engine = ?, transmission = ?, photos = ?, detail_url = ?,
			is_active = ?, updated_at = ?
		WHERE vin = ?`,
		v.StockNumber, v.Year, v.Make, v.Model, v.Trim, nullPrice(v.Price), nullMileage(v.Mileage),
		v.ExteriorColor, v.InteriorColor, v.BodyStyle, v.Drivetrain, v.Engine, v.Transmission,
		marshalPhotos(v.Photos), v.DetailURL, v.IsActive, v.UpdatedAt, v.VIN)
	return err
}

func (s *SQLiteStore) CountVehicles(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM vehicles`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	var count int
	err := s.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.RunRecord) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, status, vehicles_found, vehicles_new,
			vehicles_updated, vehicles_removed, errors, summary, pid)
		VALUES (?, ?, ?, 0, 0, 0, 0, '[]', '', ?)`,
		run.RunID, run.StartedAt, run.Status, run.PID)
	if err != nil {
		return err
	}
	run.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.RunRecord) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, _ := json.Marshal(errs)
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, vehicles_found = ?, vehicles_new = ?,
			vehicles_updated = ?, vehicles_removed = ?, errors = ?, summary = ?, pid = ?
		WHERE run_id = ?`,
		run.FinishedAt, run.Status, run.VehiclesFound, run.VehiclesNew,
		run.VehiclesUpdated, run.VehiclesRemoved, string(errsJSON), run.Summary, run.PID, run.RunID)
	return err
}

func (s *SQLiteStore) scanRun(row interface{ Scan(...any) error }) (*models.RunRecord, error) {
	var run models.RunRecord
	var finished sql.NullTime
	var errs sql.NullString
	err := row.Scan(&run.ID, &run.RunID, &run.StartedAt, &finished, &run.Status,
		&run.VehiclesFound, &run.VehiclesNew, &run.VehiclesUpdated, &run.VehiclesRemoved,
		&errs, &run.Summary, &run.PID)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if errs.Valid && errs.String != "" {
		_ = json.Unmarshal([]byte(errs.String), &run.Errors)
	}
	return &run, nil
}

const runColumns = `id, run_id, started_at, finished_at, status, vehicles_found,
	vehicles_new, vehicles_updated, vehicles_removed, errors, summary, pid`

func (s *SQLiteStore) GetRunByRunID(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := s.scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) GetRunningRun(ctx context.Context) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE status = 'running' ORDER BY started_at DESC LIMIT 1`)
	run, err := s.scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (vin, price, recorded_at, source)
		VALUES (?, ?, ?, ?)`,
		entry.VIN, entry.Price.StringFixed(2), entry.RecordedAt, entry.Source)
	if err != nil {
		return err
	}
	entry.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListPriceHistory(ctx context.Context, vin string) ([]models.PriceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vin, price, recorded_at, source
		FROM price_history WHERE vin = ? ORDER BY recorded_at`, vin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var e models.PriceHistoryEntry
		var price string
		if err := rows.Scan(&e.ID, &e.VIN, &price, &e.RecordedAt, &e.Source); err != nil {
			return nil, err
		}
		e.Price, _ = decimal.NewFromString(price)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AddChangeLog(ctx context.Context, entry *models.ChangeLogEntry) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO change_log (vin, changed_at, change_type, field_name, old_value, new_value, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.VIN, entry.ChangedAt, entry.ChangeType, entry.FieldName, entry.OldValue, entry.NewValue, entry.RunID)
	if err != nil {
		return err
	}
	entry.ID, _ = result.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListChangeLog(ctx context.Context, vin string, limit, offset int) ([]models.ChangeLogEntry, int, error) {
	where := ``
	args := []any{}
	if vin != "" {
		where = ` WHERE vin = ?`
		args = append(args, vin)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vin, changed_at, change_type, field_name, old_value, new_value, run_id
		FROM change_log`+where+` ORDER BY changed_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []models.ChangeLogEntry
	for rows.Next() {
		var e models.ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.VIN, &e.ChangedAt, &e.ChangeType, &e.FieldName, &e.OldValue, &e.NewValue, &e.RunID); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *SQLiteStore) EnsureMonitorConfig(ctx context.Context, defaults models.MonitorConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO monitor_config (id, enabled, interval_minutes, pages_to_check)
		VALUES (1, ?, ?, ?)`,
		defaults.Enabled, defaults.IntervalMinutes, defaults.PagesToCheck)
	return err
}

func (s *SQLiteStore) GetMonitorConfig(ctx context.Context) (*models.MonitorConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, interval_minutes, pages_to_check, last_check_at, last_check_result
		FROM monitor_config WHERE id = 1`)

	var cfg models.MonitorConfig
	var lastCheck sql.NullTime
	var lastResult sql.NullString
	err := row.Scan(&cfg.Enabled, &cfg.IntervalMinutes, &cfg.PagesToCheck, &lastCheck, &lastResult)
	if err == sql.ErrNoRows {
		return &models.MonitorConfig{IntervalMinutes: 60}, nil
	}
	if err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		cfg.LastCheckAt = &lastCheck.Time
	}
	cfg.LastCheckResult = lastResult.String
	return &cfg, nil
}

func (s *SQLiteStore) UpdateMonitorConfig(ctx context.Context, cfg *models.MonitorConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_config (id, enabled, interval_minutes, pages_to_check)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			interval_minutes = excluded.interval_minutes,
			pages_to_check = excluded.pages_to_check`,
		cfg.Enabled, cfg.IntervalMinutes, cfg.PagesToCheck)
	return err
}

func (s *SQLiteStore) TouchMonitorCheck(ctx context.Context, at time.Time, result string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE monitor_config SET last_check_at = ?, last_check_result = ? WHERE id = 1`,
		at, result)
	return err
}

func (s *SQLiteStore) AddSystemLog(ctx context.Context, entry *models.SystemLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_logs (timestamp, level, source, message, run_id)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Level, entry.Source, entry.Message, entry.RunID)
	return err
}

func (s *SQLiteStore) ListSystemLogs(ctx context.Context, level, source string, limit, offset int) ([]models.SystemLog, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if level != "" {
		where += ` AND level = ?`
		args = append(args, level)
	}
	if source != "" {
		where += ` AND source = ?`
		args = append(args, source)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM system_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, level, source, message, run_id
		FROM system_logs`+where+` ORDER BY timestamp DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []models.SystemLog
	for rows.Next() {
		var l models.SystemLog
		var runID sql.NullString
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Source, &l.Message, &runID); err != nil {
			return nil, 0, err
		}
		l.RunID = runID.String
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

func (s *SQLiteStore) ClearSystemLogs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM system_logs`)
	return err
}
