package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"driverpay.service/internal/core/model"
)

// PostgresStore is the concrete Store implementation for a PostgreSQL database.
type PostgresStore struct {
	DB *sql.DB
}

// NewPostgresStore create new instance
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drivers (
            driver_id        BIGINT PRIMARY KEY,
            on_shift         BOOLEAN NOT NULL DEFAULT FALSE,
            shift_opened_at  TIMESTAMPTZ,
            shift_closed_at  TIMESTAMPTZ,
            mode             TEXT NOT NULL DEFAULT 'SUMMARY',
            off_line         BOOLEAN NOT NULL DEFAULT FALSE,
            ready_for_report BOOLEAN NOT NULL DEFAULT FALSE,
            last_activity_at TIMESTAMPTZ,
            reminder_sent    BOOLEAN NOT NULL DEFAULT FALSE
        )`,
		`CREATE TABLE IF NOT EXISTS entries (
            id           BIGSERIAL PRIMARY KEY,
            driver_id    BIGINT NOT NULL,
            chat_id      BIGINT NOT NULL,
            thread_id    BIGINT NOT NULL,
            text         TEXT NOT NULL,
            submitted_at TIMESTAMPTZ NOT NULL,
            processed    BOOLEAN NOT NULL DEFAULT FALSE,
            committed_at TIMESTAMPTZ,
            earned       NUMERIC(12,2) NOT NULL DEFAULT 0,
            cash         NUMERIC(12,2) NOT NULL DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS entries_driver_idx ON entries (driver_id, committed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetDriver fetches one driver record, (nil, nil) when the driver is unknown.
func (r *PostgresStore) GetDriver(ctx context.Context, driverID int64) (*model.DriverState, error) {
	query := `SELECT driver_id, on_shift, shift_opened_at, shift_closed_at, mode,
                     off_line, ready_for_report, last_activity_at, reminder_sent
              FROM drivers WHERE driver_id = $1`

	d := &model.DriverState{}
	row := r.DB.QueryRowContext(ctx, query, driverID)
	err := row.Scan(&d.DriverID, &d.OnShift, &d.ShiftOpenedAt, &d.ShiftClosedAt, &d.Mode,
		&d.OffLine, &d.ReadyForReport, &d.LastActivityAt, &d.ReminderSent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// PutDriver persists the fully materialized driver record.
func (r *PostgresStore) PutDriver(ctx context.Context, d *model.DriverState) error {
	query := `INSERT INTO drivers (driver_id, on_shift, shift_opened_at, shift_closed_at, mode,
                                   off_line, ready_for_report, last_activity_at, reminder_sent)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
              ON CONFLICT (driver_id) DO UPDATE SET
                  on_shift = EXCLUDED.on_shift,
                  shift_opened_at = EXCLUDED.shift_opened_at,
                  shift_closed_at = EXCLUDED.shift_closed_at,
                  mode = EXCLUDED.mode,
                  off_line = EXCLUDED.off_line,
                  ready_for_report = EXCLUDED.ready_for_report,
                  last_activity_at = EXCLUDED.last_activity_at,
                  reminder_sent = EXCLUDED.reminder_sent`

	_, err := r.DB.ExecContext(ctx, query, d.DriverID, d.OnShift, d.ShiftOpenedAt, d.ShiftClosedAt,
		d.Mode, d.OffLine, d.ReadyForReport, d.LastActivityAt, d.ReminderSent)
	return err
}

// ListDrivers returns every known driver record.
func (r *PostgresStore) ListDrivers(ctx context.Context) ([]*model.DriverState, error) {
	query := `SELECT driver_id, on_shift, shift_opened_at, shift_closed_at, mode,
                     off_line, ready_for_report, last_activity_at, reminder_sent
              FROM drivers ORDER BY driver_id`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DriverState
	for rows.Next() {
		d := &model.DriverState{}
		if err := rows.Scan(&d.DriverID, &d.OnShift, &d.ShiftOpenedAt, &d.ShiftClosedAt, &d.Mode,
			&d.OffLine, &d.ReadyForReport, &d.LastActivityAt, &d.ReminderSent); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateEntry inserts a new entry and returns its assigned id.
func (r *PostgresStore) CreateEntry(ctx context.Context, e *model.Entry) (int64, error) {
	query := `INSERT INTO entries (driver_id, chat_id, thread_id, text, submitted_at,
                                   processed, committed_at, earned, cash)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	var id int64
	err := r.DB.QueryRowContext(ctx, query, e.DriverID, e.ChatID, e.ThreadID, e.Text, e.SubmittedAt,
		e.Processed, e.CommittedAt, e.Earned, e.Cash).Scan(&id)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// GetEntry fetches a complete entry by id, (nil, nil) when it does not exist.
func (r *PostgresStore) GetEntry(ctx context.Context, id int64) (*model.Entry, error) {
	query := `SELECT id, driver_id, chat_id, thread_id, text, submitted_at,
                     processed, committed_at, earned, cash
              FROM entries WHERE id = $1`

	e := &model.Entry{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.DriverID, &e.ChatID, &e.ThreadID,
		&e.Text, &e.SubmittedAt, &e.Processed, &e.CommittedAt, &e.Earned, &e.Cash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEntry persists the fully materialized entry.
func (r *PostgresStore) UpdateEntry(ctx context.Context, e *model.Entry) error {
	query := `UPDATE entries
              SET processed = $1,
                  committed_at = $2,
                  earned = $3,
                  cash = $4
              WHERE id = $5`

	_, err := r.DB.ExecContext(ctx, query, e.Processed, e.CommittedAt, e.Earned, e.Cash, e.ID)
	return err
}

// EntriesInRange returns processed entries committed within [from, to].
func (r *PostgresStore) EntriesInRange(ctx context.Context, driverID int64, from, to time.Time) ([]*model.Entry, error) {
	query := `SELECT id, driver_id, chat_id, thread_id, text, submitted_at,
                     processed, committed_at, earned, cash
              FROM entries
              WHERE driver_id = $1 AND processed AND committed_at BETWEEN $2 AND $3
              ORDER BY id`

	return r.queryEntries(ctx, query, driverID, from, to)
}

// ListDriverEntries returns every entry of the driver, committed or pending.
func (r *PostgresStore) ListDriverEntries(ctx context.Context, driverID int64) ([]*model.Entry, error) {
	query := `SELECT id, driver_id, chat_id, thread_id, text, submitted_at,
                     processed, committed_at, earned, cash
              FROM entries WHERE driver_id = $1 ORDER BY id`

	return r.queryEntries(ctx, query, driverID)
}

// DriverTotals sums earned and cash over the driver's processed entries.
func (r *PostgresStore) DriverTotals(ctx context.Context, driverID int64) (decimal.Decimal, decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(earned), 0), COALESCE(SUM(cash), 0)
              FROM entries WHERE driver_id = $1 AND processed`

	var earned, cash decimal.Decimal
	err := r.DB.QueryRowContext(ctx, query, driverID).Scan(&earned, &cash)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return earned, cash, nil
}

func (r *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]*model.Entry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Entry
	for rows.Next() {
		e := &model.Entry{}
		if err := rows.Scan(&e.ID, &e.DriverID, &e.ChatID, &e.ThreadID, &e.Text, &e.SubmittedAt,
			&e.Processed, &e.CommittedAt, &e.Earned, &e.Cash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
