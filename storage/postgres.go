package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dealerwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id BIGSERIAL PRIMARY KEY,
		vin TEXT UNIQUE NOT NULL,
		stock_number TEXT DEFAULT '',
		year INTEGER DEFAULT 0,
		make TEXT DEFAULT '',
		model TEXT DEFAULT '',
		trim TEXT DEFAULT '',
		price NUMERIC(12,2),
		mileage INTEGER,
		exterior_color TEXT DEFAULT '',
		interior_color TEXT DEFAULT '',
		body_style TEXT DEFAULT '',
		drivetrain TEXT DEFAULT '',
		engine TEXT DEFAULT '',
		transmission TEXT DEFAULT '',
		photos JSONB DEFAULT '[]',
		detail_url TEXT DEFAULT '',
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		vin TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		recorded_at TIMESTAMPTZ,
		source TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS change_log (
		id BIGSERIAL PRIMARY KEY,
		vin TEXT NOT NULL,
		changed_at TIMESTAMPTZ,
		change_type TEXT,
		field_name TEXT DEFAULT '',
		old_value TEXT DEFAULT '',
		new_value TEXT DEFAULT '',
		run_id TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS runs (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT UNIQUE NOT NULL,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		vehicles_found INTEGER DEFAULT 0,
		vehicles_new INTEGER DEFAULT 0,
		vehicles_updated INTEGER DEFAULT 0,
		vehicles_removed INTEGER DEFAULT 0,
		errors JSONB DEFAULT '[]',
		summary TEXT DEFAULT '',
		pid INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS monitor_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		enabled BOOLEAN DEFAULT FALSE,
		interval_minutes INTEGER DEFAULT 60,
		pages_to_check INTEGER DEFAULT 0,
		last_check_at TIMESTAMPTZ,
		last_check_result TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS system_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ,
		level TEXT,
		source TEXT DEFAULT '',
		message TEXT DEFAULT '',
		run_id TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_active ON vehicles(is_active);
	CREATE INDEX IF NOT EXISTS idx_price_history_vin ON price_history(vin, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_change_log_vin ON change_log(vin, changed_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, started_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgVehicleColumns = `id, vin, stock_number, year, make, model, trim, price::text, mileage,
	exterior_color, interior_color, body_style, drivetrain, engine, transmission,
	photos, detail_url, is_active, created_at, updated_at`

func scanPGVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	var price *string
	var photos []byte
	err := row.Scan(&v.ID, &v.VIN, &v.StockNumber, &v.Year, &v.Make, &v.Model, &v.Trim,
		&price, &v.Mileage, &v.ExteriorColor, &v.InteriorColor, &v.BodyStyle,
		&v.Drivetrain, &v.Engine, &v.Transmission, &photos, &v.DetailURL,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price != nil {
		if d, err := decimal.NewFromString(*price); err == nil {
			v.Price = &d
		}
	}
	if len(photos) > 0 {
		_ = json.Unmarshal(photos, &v.Photos)
	}
	return &v, nil
}

func pgPrice(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.StringFixed(2)
	return &s
}

func (s *PostgresStore) GetVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgVehicleColumns+` FROM vehicles WHERE vin = $1`, vin)
	v, err := scanPGVehicle(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (s *PostgresStore) ListActiveVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgVehicleColumns+` FROM vehicles WHERE is_active ORDER BY vin`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanPGVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO vehicles (vin, stock_number, year, make, model, trim, price, mileage,
			exterior_color, interior_color, body_style, drivetrain, engine, transmission,
			photos, detail_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`,
		v.VIN, v.StockNumber, v.Year, v.Make, v.Model, v.Trim, pgPrice(v.Price), v.Mileage,
		v.ExteriorColor, v.InteriorColor, v.BodyStyle, v.Drivetrain, v.Engine, v.Transmission,
		marshalPhotos(v.Photos), v.DetailURL, v.IsActive, v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID)
}

func (s *PostgresStore) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE vehicles SET stock_number = $2, year = $3, make = $4, model = $5, trim = $6,
			price = $7::numeric, mileage = $8, exterior_color = $9, interior_color = $10,
			body_style = $11, drivetrain = $12, engine = $13, transmission = $14,
			photos = $15, detail_url = $16, is_active = $17, updated_at = $18
		WHERE vin = $1`,
		v.VIN, v.StockNumber, v.Year, v.Make, v.Model, v.Trim, pgPrice(v.Price), v.Mileage,
		v.ExteriorColor, v.InteriorColor, v.BodyStyle, v.Drivetrain, v.Engine, v.Transmission,
		marshalPhotos(v.Photos), v.DetailURL, v.IsActive, v.UpdatedAt)
	return err
}

func (s *PostgresStore) CountVehicles(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM vehicles`
	if activeOnly {
		query += ` WHERE is_active`
	}
	var count int
	err := s.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.RunRecord) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO runs (run_id, started_at, status, pid)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		run.RunID, run.StartedAt, run.Status, run.PID,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.RunRecord) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, _ := json.Marshal(errs)
	_, err := s.pool.Exec(ctx, `
		UPDATE runs SET finished_at = $2, status = $3, vehicles_found = $4, vehicles_new = $5,
			vehicles_updated = $6, vehicles_removed = $7, errors = $8, summary = $9, pid = $10
		WHERE run_id = $1`,
		run.RunID, run.FinishedAt, run.Status, run.VehiclesFound, run.VehiclesNew,
		run.VehiclesUpdated, run.VehiclesRemoved, errsJSON, run.Summary, run.PID)
	return err
}

const pgRunColumns = `id, run_id, started_at, finished_at, status, vehicles_found,
	vehicles_new, vehicles_updated, vehicles_removed, errors, summary, pid`

func scanPGRun(row pgx.Row) (*models.RunRecord, error) {
	var run models.RunRecord
	var errs []byte
	err := row.Scan(&run.ID, &run.RunID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.VehiclesFound, &run.VehiclesNew, &run.VehiclesUpdated, &run.VehiclesRemoved,
		&errs, &run.Summary, &run.PID)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		_ = json.Unmarshal(errs, &run.Errors)
	}
	return &run, nil
}

func (s *PostgresStore) GetRunByRunID(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE run_id = $1`, runID)
	run, err := scanPGRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) GetRunningRun(ctx context.Context) (*models.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgRunColumns+` FROM runs WHERE status = 'running' ORDER BY started_at DESC LIMIT 1`)
	run, err := scanPGRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgRunColumns+` FROM runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanPGRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

func (s *PostgresStore) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO price_history (vin, price, recorded_at, source)
		VALUES ($1, $2::numeric, $3, $4)
		RETURNING id`,
		entry.VIN, entry.Price.StringFixed(2), entry.RecordedAt, entry.Source,
	).Scan(&entry.ID)
}

func (s *PostgresStore) ListPriceHistory(ctx context.Context, vin string) ([]models.PriceHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, vin, price::text, recorded_at, source
		FROM price_history WHERE vin = $1 ORDER BY recorded_at`, vin)
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

func (s *PostgresStore) AddChangeLog(ctx context.Context, entry *models.ChangeLogEntry) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO change_log (vin, changed_at, change_type, field_name, old_value, new_value, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		entry.VIN, entry.ChangedAt, entry.ChangeType, entry.FieldName, entry.OldValue, entry.NewValue, entry.RunID,
	).Scan(&entry.ID)
}

func (s *PostgresStore) ListChangeLog(ctx context.Context, vin string, limit, offset int) ([]models.ChangeLogEntry, int, error) {
	where := ``
	args := []any{}
	if vin != "" {
		where = ` WHERE vin = $1`
		args = append(args, vin)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM change_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, vin, changed_at, change_type, field_name, old_value, new_value, run_id
		FROM change_log` + where + ` ORDER BY changed_at DESC`
	if vin != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) EnsureMonitorConfig(ctx context.Context, defaults models.MonitorConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_config (id, enabled, interval_minutes, pages_to_check)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		defaults.Enabled, defaults.IntervalMinutes, defaults.PagesToCheck)
	return err
}

func (s *PostgresStore) GetMonitorConfig(ctx context.Context) (*models.MonitorConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT enabled, interval_minutes, pages_to_check, last_check_at, last_check_result
		FROM monitor_config WHERE id = 1`)

	var cfg models.MonitorConfig
	err := row.Scan(&cfg.Enabled, &cfg.IntervalMinutes, &cfg.PagesToCheck, &cfg.LastCheckAt, &cfg.LastCheckResult)
	if err == pgx.ErrNoRows {
		return &models.MonitorConfig{IntervalMinutes: 60}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *PostgresStore) UpdateMonitorConfig(ctx context.Context, cfg *models.MonitorConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_config (id, enabled, interval_minutes, pages_to_check)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			interval_minutes = EXCLUDED.interval_minutes,
			pages_to_check = EXCLUDED.pages_to_check`,
		cfg.Enabled, cfg.IntervalMinutes, cfg.PagesToCheck)
	return err
}

func (s *PostgresStore) TouchMonitorCheck(ctx context.Context, at time.Time, result string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE monitor_config SET last_check_at = $1, last_check_result = $2 WHERE id = 1`,
		at, result)
	return err
}

func (s *PostgresStore) AddSystemLog(ctx context.Context, entry *models.SystemLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_logs (timestamp, level, source, message, run_id)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.Timestamp, entry.Level, entry.Source, entry.Message, entry.RunID)
	return err
}

func (s *PostgresStore) ListSystemLogs(ctx context.Context, level, source string, limit, offset int) ([]models.SystemLog, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if level != "" {
		n++
		where += fmt.Sprintf(` AND level = $%d`, n)
		args = append(args, level)
	}
	if source != "" {
		n++
		where += fmt.Sprintf(` AND source = $%d`, n)
		args = append(args, source)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, timestamp, level, source, message, run_id
		FROM system_logs%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []models.SystemLog
	for rows.Next() {
		var l models.SystemLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Source, &l.Message, &l.RunID); err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

func (s *PostgresStore) ClearSystemLogs(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE system_logs`)
	return err
}
