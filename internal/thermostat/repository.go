package thermostat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations the command core needs.
// The abstraction keeps the dispatcher testable without a database.
type Repository interface {
	// GetByID retrieves a thermostat by its unique identifier.
	// Returns ErrNotFound if the thermostat does not exist.
	GetByID(ctx context.Context, id string) (*Thermostat, error)

	// GetEndpoint resolves the thermostat's current network endpoint.
	// Called once per dispatch attempt; devices may roam between calls.
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)

	// ListByProperty retrieves all thermostats of a property.
	ListByProperty(ctx context.Context, propertyID string) ([]Thermostat, error)

	// Create inserts a new thermostat.
	// Returns ErrExists on a duplicate ID or MAC address.
	Create(ctx context.Context, t *Thermostat) error

	// UpdateMode records the last commanded mode, keeping the previous
	// mode for property-wide restore.
	UpdateMode(ctx context.Context, id string, mode int) error

	// UpdateSettings replaces the stored settings snapshot.
	UpdateSettings(ctx context.Context, id string, s Settings) error

	// UpdateEndpoint records a roamed device's new address.
	UpdateEndpoint(ctx context.Context, id string, ep Endpoint) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const thermostatColumns = `id, mac_address, room_name, property_id, kind, parent_id,
	mode, previous_mode, force_off, ip_address, port, timezone, settings,
	created_at, updated_at`

// GetByID retrieves a thermostat by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Thermostat, error) {
	query := `SELECT ` + thermostatColumns + ` FROM thermostats WHERE id = ?`

	t, err := scanThermostat(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying thermostat by id: %w", err)
	}
	return t, nil
}

// GetEndpoint resolves the thermostat's current network endpoint.
func (r *SQLiteRepository) GetEndpoint(ctx context.Context, id string) (Endpoint, error) {
	var ep Endpoint
	err := r.db.QueryRowContext(ctx,
		`SELECT ip_address, port FROM thermostats WHERE id = ?`, id,
	).Scan(&ep.IPAddress, &ep.Port)
	if errors.Is(err, sql.ErrNoRows) {
		return Endpoint{}, ErrNotFound
	}
	if err != nil {
		return Endpoint{}, fmt.Errorf("querying thermostat endpoint: %w", err)
	}
	return ep, nil
}

// ListByProperty retrieves all thermostats of a property, ordered by room name.
func (r *SQLiteRepository) ListByProperty(ctx context.Context, propertyID string) ([]Thermostat, error) {
	query := `SELECT ` + thermostatColumns + ` FROM thermostats WHERE property_id = ? ORDER BY room_name`

	rows, err := r.db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("querying thermostats by property: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []Thermostat
	for rows.Next() {
		t, err := scanThermostat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thermostat row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thermostat rows: %w", err)
	}
	return out, nil
}

// Create inserts a new thermostat.
func (r *SQLiteRepository) Create(ctx context.Context, t *Thermostat) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO thermostats (`+thermostatColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MACAddress, t.RoomName, t.PropertyID, string(t.Kind), t.ParentID,
		t.Mode, t.PreviousMode, boolToInt(t.ForceOff),
		t.Endpoint.IPAddress, t.Endpoint.Port, t.Timezone, string(settingsJSON),
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("inserting thermostat: %w", err)
	}
	return nil
}

// UpdateMode records the last commanded mode.
func (r *SQLiteRepository) UpdateMode(ctx context.Context, id string, mode int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE thermostats
		 SET previous_mode = mode, mode = ?, updated_at = ?
		 WHERE id = ?`,
		mode, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating thermostat mode: %w", err)
	}
	return requireRow(res)
}

// UpdateSettings replaces the stored settings snapshot.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, id string, s Settings) error {
	settingsJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE thermostats SET settings = ?, updated_at = ? WHERE id = ?`,
		string(settingsJSON), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating thermostat settings: %w", err)
	}
	return requireRow(res)
}

// UpdateEndpoint records a roamed device's new address.
func (r *SQLiteRepository) UpdateEndpoint(ctx context.Context, id string, ep Endpoint) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE thermostats SET ip_address = ?, port = ?, updated_at = ? WHERE id = ?`,
		ep.IPAddress, ep.Port, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating thermostat endpoint: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowScanner abstracts sql.Row and sql.Rows for scanThermostat.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThermostat(row rowScanner) (*Thermostat, error) {
	var (
		t            Thermostat
		kind         string
		parentID     sql.NullString
		forceOff     int
		settingsJSON string
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&t.ID, &t.MACAddress, &t.RoomName, &t.PropertyID, &kind, &parentID,
		&t.Mode, &t.PreviousMode, &forceOff,
		&t.Endpoint.IPAddress, &t.Endpoint.Port, &t.Timezone, &settingsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Kind = Kind(kind)
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	t.ForceOff = forceOff != 0

	if settingsJSON != "" {
		if err := json.Unmarshal([]byte(settingsJSON), &t.Settings); err != nil {
			return nil, fmt.Errorf("unmarshalling settings: %w", err)
		}
	}
	if t.Settings == nil {
		t.Settings = Settings{}
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}
