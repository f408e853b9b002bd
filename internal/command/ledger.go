package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one issued command: the ledger entry written when a frame is
// encoded, before it is handed to the transport.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ThermostatID string    `json:"thermostat_id"`

	// Name is the attribute the command writes (set_temp, mode, ...),
	// "offset" for the compound offset register, or "settings" for a bulk
	// block.
	Name  string `json:"name"`
	Value int    `json:"value"`

	// Frame is the full wire frame in hex, exactly as transmitted.
	Frame string `json:"frame"`

	// ChannelTag records which request path produced the command.
	ChannelTag string `json:"channel_tag,omitempty"`

	// Executed flips to true when the device acknowledges the command.
	Executed bool `json:"executed"`

	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which ledger records List returns.
type Filter struct {
	ThermostatID string // optional: filter by device
	Name         string // optional: filter by command name
	Limit        int    // default 50, max 200
	Offset       int    // pagination offset
}

// Ledger defines the command ledger operations.
//
// Append-only: records are inserted and their executed flag flipped,
// nothing is ever deleted here.
type Ledger interface {
	Append(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	MarkExecuted(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a new SQLite-backed command ledger.
func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

// Append inserts a new command record. ID and CreatedAt are generated if
// empty. Each insert is a single statement, so concurrent appends never
// interleave with executed-flag updates on other records.
func (l *SQLiteLedger) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "cmd-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO commands (id, user_id, thermostat_id, name, value, frame, channel_tag, executed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ThermostatID, rec.Name, rec.Value, rec.Frame,
		nullableString(rec.ChannelTag), boolToInt(rec.Executed),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}
	return nil
}

// GetByID retrieves one command record.
func (l *SQLiteLedger) GetByID(ctx context.Context, id string) (*Record, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, user_id, thermostat_id, name, value, frame, channel_tag, executed, created_at
		 FROM commands WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying command by id: %w", err)
	}
	return rec, nil
}

// MarkExecuted flips the executed flag. The flip is one UPDATE statement,
// atomic per record; marking an already-executed record is a no-op.
func (l *SQLiteLedger) MarkExecuted(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE commands SET executed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking command executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns command records matching the filter, most recent first.
func (l *SQLiteLedger) List(ctx context.Context, filter Filter) ([]Record, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for ledger queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.ThermostatID != "" {
		conditions = append(conditions, "thermostat_id = ?")
		args = append(args, filter.ThermostatID)
	}
	if filter.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, filter.Name)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE clause is assembled from parameterised conditions only.
	query := fmt.Sprintf(
		`SELECT id, user_id, thermostat_id, name, value, frame, channel_tag, executed, created_at
		 FROM commands %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, where)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning command row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec        Record
		channelTag sql.NullString
		executed   int
		createdAt  string
	)

	err := row.Scan(&rec.ID, &rec.UserID, &rec.ThermostatID, &rec.Name, &rec.Value,
		&rec.Frame, &channelTag, &executed, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.ChannelTag = channelTag.String
	rec.Executed = executed != 0

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

// nullableString returns nil for empty strings, used for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
