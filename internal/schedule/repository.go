package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists schedule windows.
type Repository interface {
	// Replace atomically swaps a thermostat's windows: every existing
	// window for the thermostat is deleted and the given set inserted,
	// all in one transaction.
	Replace(ctx context.Context, thermostatID string, windows []Window) error

	// ListByThermostat returns a thermostat's windows ordered by start
	// day and time.
	ListByThermostat(ctx context.Context, thermostatID string) ([]Window, error)

	// ListByDay returns every window whose start or end falls on the
	// given canonical day, across all thermostats.
	ListByDay(ctx context.Context, day int) ([]Window, error)

	// ActiveAt returns the window covering the given canonical day and
	// HH:MM clock time for a thermostat, or ErrNoActiveWindow.
	ActiveAt(ctx context.Context, thermostatID string, day int, clock string) (Window, error)
}

// SQLiteRepository is the SQLite-backed Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a schedule repository on the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const windowColumns = `id, thermostat_id, user_id, name, value, frame,
	start_day, start_time, end_day, end_time, timezone, created_at`

func (r *SQLiteRepository) Replace(ctx context.Context, thermostatID string, windows []Window) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schedule replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedule_windows WHERE thermostat_id = ?`, thermostatID); err != nil {
		return fmt.Errorf("clearing windows for %s: %w", thermostatID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_windows (thermostat_id, user_id, name, value, frame,
			start_day, start_time, end_day, end_time, timezone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing window insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			thermostatID, w.UserID, w.Name, w.Value, w.Frame,
			w.StartDay, w.StartTime, w.EndDay, w.EndTime, w.Timezone,
			w.CreatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting window %s %s: %w", w.Name, w.StartTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schedule replace: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByThermostat(ctx context.Context, thermostatID string) ([]Window, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE thermostat_id = ?
		ORDER BY start_day, start_time`, thermostatID)
	if err != nil {
		return nil, fmt.Errorf("listing windows for %s: %w", thermostatID, err)
	}
	defer rows.Close()

	return collectWindows(rows)
}

func (r *SQLiteRepository) ListByDay(ctx context.Context, day int) ([]Window, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE start_day = ? OR end_day = ?
		ORDER BY thermostat_id, start_time`, day, day)
	if err != nil {
		return nil, fmt.Errorf("listing windows for day %d: %w", day, err)
	}
	defer rows.Close()

	return collectWindows(rows)
}

func (r *SQLiteRepository) ActiveAt(ctx context.Context, thermostatID string, day int, clock string) (Window, error) {
	// A window that crosses midnight (end day after start day, or
	// wrapping past Saturday) covers the query when the query sits on
	// either boundary day on the right side of the boundary time.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+windowColumns+`
		FROM schedule_windows
		WHERE thermostat_id = ? AND (start_day = ? OR end_day = ?)
		ORDER BY start_day, start_time`, thermostatID, day, day)
	if err != nil {
		return Window{}, fmt.Errorf("querying active window for %s: %w", thermostatID, err)
	}
	defer rows.Close()

	candidates, err := collectWindows(rows)
	if err != nil {
		return Window{}, err
	}
	for _, w := range candidates {
		if w.covers(day, clock) {
			return w, nil
		}
	}
	return Window{}, ErrNoActiveWindow
}

// covers reports whether the window is active at the given canonical day
// and HH:MM clock time. HH:MM strings compare correctly as text.
func (w Window) covers(day int, clock string) bool {
	if w.StartDay == w.EndDay {
		return day == w.StartDay && clock >= w.StartTime && clock < w.EndTime
	}
	if day == w.StartDay {
		return clock >= w.StartTime
	}
	if day == w.EndDay {
		return clock < w.EndTime
	}
	return false
}

func collectWindows(rows *sql.Rows) ([]Window, error) {
	var windows []Window
	for rows.Next() {
		var w Window
		var createdAt string
		if err := rows.Scan(&w.ID, &w.ThermostatID, &w.UserID, &w.Name, &w.Value, &w.Frame,
			&w.StartDay, &w.StartTime, &w.EndDay, &w.EndTime, &w.Timezone, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning window row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			w.CreatedAt = t
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating window rows: %w", err)
	}
	return windows, nil
}
