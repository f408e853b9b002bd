package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/thermlink/thermlink-core/internal/schedule"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("THERMLINK_CONFIG")
	defer os.Setenv("THERMLINK_CONFIG", originalEnv)

	os.Setenv("THERMLINK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site
  operating_timezone: "UTC"
  fallback_timezone: "UTC"

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

gateway:
  host: "127.0.0.1"
  port: 9000

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 60

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("THERMLINK_CONFIG")
	defer os.Setenv("THERMLINK_CONFIG", originalEnv)
	os.Setenv("THERMLINK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("THERMLINK_CONFIG")
	defer os.Setenv("THERMLINK_CONFIG", originalEnv)

	os.Unsetenv("THERMLINK_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("THERMLINK_CONFIG")
	defer os.Setenv("THERMLINK_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("THERMLINK_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// =============================================================================
// Window Scheduler Tests
// =============================================================================

// fakeWindowRepo serves a fixed set of windows.
type fakeWindowRepo struct {
	windows []schedule.Window
}

func (r *fakeWindowRepo) Replace(_ context.Context, _ string, _ []schedule.Window) error {
	return nil
}

func (r *fakeWindowRepo) ListByThermostat(_ context.Context, _ string) ([]schedule.Window, error) {
	return r.windows, nil
}

func (r *fakeWindowRepo) ListByDay(_ context.Context, day int) ([]schedule.Window, error) {
	var out []schedule.Window
	for _, w := range r.windows {
		if w.StartDay == day || w.EndDay == day {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeWindowRepo) ActiveAt(_ context.Context, _ string, _ int, _ string) (schedule.Window, error) {
	return schedule.Window{}, schedule.ErrNoActiveWindow
}

// fakeDeliverer records delivered windows.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []int64
}

func (d *fakeDeliverer) DeliverWindow(_ context.Context, w schedule.Window) (bool, error) {
	d.mu.Lock()
	d.delivered = append(d.delivered, w.ID)
	d.mu.Unlock()
	return false, nil
}

func (d *fakeDeliverer) ids() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, len(d.delivered))
	copy(out, d.delivered)
	return out
}

// nopLogger satisfies dispatch.Logger for scheduler tests.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestDeliverDueWindows(t *testing.T) {
	repo := &fakeWindowRepo{
		windows: []schedule.Window{
			{ID: 1, ThermostatID: "th-1", Name: "set_temp", StartDay: 3, StartTime: "16:30", EndDay: 3, EndTime: "18:00"},
			{ID: 2, ThermostatID: "th-2", Name: "mode", StartDay: 3, StartTime: "07:00", EndDay: 3, EndTime: "09:00"},
			{ID: 3, ThermostatID: "th-3", Name: "mode", StartDay: 4, StartTime: "16:30", EndDay: 4, EndTime: "17:00"},
		},
	}
	deliverer := &fakeDeliverer{}

	deliverDueWindows(context.Background(), repo, deliverer, 3, "16:30", nopLogger{})

	deadline := time.Now().Add(2 * time.Second)
	for {
		ids := deliverer.ids()
		if len(ids) == 1 && ids[0] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivered = %v, want [1]", ids)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeliverDueWindows_NoneDue(t *testing.T) {
	repo := &fakeWindowRepo{
		windows: []schedule.Window{
			{ID: 1, ThermostatID: "th-1", Name: "set_temp", StartDay: 3, StartTime: "16:30", EndDay: 3, EndTime: "18:00"},
		},
	}
	deliverer := &fakeDeliverer{}

	deliverDueWindows(context.Background(), repo, deliverer, 3, "16:31", nopLogger{})

	time.Sleep(50 * time.Millisecond)
	if ids := deliverer.ids(); len(ids) != 0 {
		t.Errorf("delivered = %v, want none", ids)
	}
}

// TestDeliverDueWindows_EndDayOnly verifies a window listed for its end
// day does not fire again at its start time.
func TestDeliverDueWindows_EndDayOnly(t *testing.T) {
	// Midnight-crossing window: starts Saturday, ends Sunday.
	repo := &fakeWindowRepo{
		windows: []schedule.Window{
			{ID: 7, ThermostatID: "th-1", Name: "mode", StartDay: 6, StartTime: "23:30", EndDay: 0, EndTime: "01:30"},
		},
	}
	deliverer := &fakeDeliverer{}

	// Sunday 23:30: the window is listed for day 0 (its end day) but its
	// start day is Saturday, so nothing is due.
	deliverDueWindows(context.Background(), repo, deliverer, 0, "23:30", nopLogger{})

	time.Sleep(50 * time.Millisecond)
	if ids := deliverer.ids(); len(ids) != 0 {
		t.Errorf("delivered = %v, want none", ids)
	}
}
