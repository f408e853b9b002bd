package command

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the commands table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE commands (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			thermostat_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value INTEGER NOT NULL DEFAULT 0,
			frame TEXT NOT NULL,
			channel_tag TEXT,
			executed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_commands_thermostat_id ON commands(thermostat_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(thermostatID, name string) *Record {
	return &Record{
		UserID:       "user-1",
		ThermostatID: thermostatID,
		Name:         name,
		Value:        22,
		Frame:        "F1F2A10A16000000A1FEFF",
		ChannelTag:   "app",
	}
}

func TestLedgerAppendAndGet(t *testing.T) {
	ledger := NewSQLiteLedger(setupTestDB(t))
	ctx := context.Background()

	rec := testRecord("th-1", "set_temp")
	if err := ledger.Append(ctx, rec); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Append() did not assign an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("Append() did not assign CreatedAt")
	}

	got, err := ledger.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if got.Frame != rec.Frame || got.Name != "set_temp" || got.Value != 22 {
		t.Errorf("GetByID() = %+v, want %+v", got, rec)
	}
	if got.Executed {
		t.Error("fresh record must not be executed")
	}
}

func TestLedgerGetNotFound(t *testing.T) {
	ledger := NewSQLiteLedger(setupTestDB(t))

	if _, err := ledger.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestLedgerMarkExecuted(t *testing.T) {
	ledger := NewSQLiteLedger(setupTestDB(t))
	ctx := context.Background()

	rec := testRecord("th-1", "mode")
	if err := ledger.Append(ctx, rec); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	if err := ledger.MarkExecuted(ctx, rec.ID); err != nil {
		t.Fatalf("MarkExecuted() unexpected error: %v", err)
	}

	got, err := ledger.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if !got.Executed {
		t.Error("Executed = false after MarkExecuted")
	}

	// Marking twice is a harmless no-op.
	if err := ledger.MarkExecuted(ctx, rec.ID); err != nil {
		t.Errorf("MarkExecuted() second call unexpected error: %v", err)
	}

	if err := ledger.MarkExecuted(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkExecuted() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestLedgerList(t *testing.T) {
	ledger := NewSQLiteLedger(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"set_temp", "mode", "differential"} {
		rec := testRecord("th-1", name)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := ledger.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%s) unexpected error: %v", name, err)
		}
	}
	other := testRecord("th-2", "mode")
	if err := ledger.Append(ctx, other); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	got, err := ledger.List(ctx, Filter{ThermostatID: "th-1"})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Most recent first.
	if got[0].Name != "differential" {
		t.Errorf("first record = %s, want differential", got[0].Name)
	}

	got, err = ledger.List(ctx, Filter{ThermostatID: "th-1", Name: "mode"})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "mode" {
		t.Errorf("List(name=mode) = %+v, want one mode record", got)
	}

	got, err = ledger.List(ctx, Filter{ThermostatID: "th-1", Limit: 2})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(limit=2) len = %d, want 2", len(got))
	}
}
