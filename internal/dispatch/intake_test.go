package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
	"github.com/thermlink/thermlink-core/internal/protocol"
	"github.com/thermlink/thermlink-core/internal/schedule"
)

// fakeBus captures subscriptions and lets tests inject messages.
type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []string // "topic payload"
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	b.published = append(b.published, topic+" "+string(payload))
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	b.handlers[topic] = handler
	b.mu.Unlock()
	return nil
}

// inject delivers a message to the handler whose subscription pattern
// matches the topic's shape. Patterns used here are exact enough that
// prefix matching on the first two segments suffices.
func (b *fakeBus) inject(t *testing.T, pattern, topic string, payload string) error {
	t.Helper()
	b.mu.Lock()
	handler, ok := b.handlers[pattern]
	b.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for pattern %s", pattern)
	}
	return handler(topic, []byte(payload))
}

// memWindowRepo records Replace calls in memory.
type memWindowRepo struct {
	mu       sync.Mutex
	replaced map[string][]schedule.Window
}

func newMemWindowRepo() *memWindowRepo {
	return &memWindowRepo{replaced: make(map[string][]schedule.Window)}
}

func (r *memWindowRepo) Replace(_ context.Context, thermostatID string, windows []schedule.Window) error {
	r.mu.Lock()
	r.replaced[thermostatID] = windows
	r.mu.Unlock()
	return nil
}

func (r *memWindowRepo) ListByThermostat(_ context.Context, thermostatID string) ([]schedule.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaced[thermostatID], nil
}

func (r *memWindowRepo) ListByDay(_ context.Context, _ int) ([]schedule.Window, error) {
	return nil, nil
}

func (r *memWindowRepo) ActiveAt(_ context.Context, _ string, _ int, _ string) (schedule.Window, error) {
	return schedule.Window{}, schedule.ErrNoActiveWindow
}

// newTestIntake wires an Intake over the in-memory service stack.
func newTestIntake(t *testing.T) (*Intake, *fakeBus, *fakeGateway, *memWindowRepo) {
	t.Helper()

	svc, gw, repo, _ := newTestService(t)
	createThermostat(t, repo, standaloneUnit("th-1", "AA:BB:CC:00:00:01"))

	normalizer, err := schedule.NewNormalizer("Etc/GMT-2", "UTC")
	if err != nil {
		t.Fatalf("NewNormalizer() unexpected error: %v", err)
	}

	bus := newFakeBus()
	windows := newMemWindowRepo()
	in := NewIntake(bus, svc, normalizer, windows, nil)
	if err := in.Start(); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	return in, bus, gw, windows
}

func TestIntakeChangeSet(t *testing.T) {
	_, bus, gw, _ := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllChangeSets(), "thermlink/changeset/th-1",
		`{"user_id":"user-1","attributes":{"set_temp":22}}`)
	if err != nil {
		t.Fatalf("handler unexpected error: %v", err)
	}

	waitForDeliveries(t, gw, 1)

	want := protocol.EncodeIndividual(10, 22).Hex()
	got := gw.snapshot()[0]
	if !strings.HasSuffix(got, want) {
		t.Errorf("delivered = %q, want frame %q", got, want)
	}
}

func TestIntakeChangeSetSettings(t *testing.T) {
	_, bus, gw, _ := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllChangeSets(), "thermlink/changeset/th-1",
		`{"user_id":"user-1","settings":true,"attributes":{"set_temp":22,"mode":1}}`)
	if err != nil {
		t.Fatalf("handler unexpected error: %v", err)
	}

	waitForDeliveries(t, gw, 1)

	// One aggregate settings frame, not individual commands.
	frameHex := strings.Fields(gw.snapshot()[0])[1]
	if len(frameHex) != protocol.SettingsFrameLen*2 {
		t.Errorf("frame length = %d hex chars, want %d", len(frameHex), protocol.SettingsFrameLen*2)
	}
}

func TestIntakeChangeSetEmptyAttributes(t *testing.T) {
	_, bus, _, _ := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllChangeSets(), "thermlink/changeset/th-1",
		`{"user_id":"user-1","attributes":{}}`)
	if err == nil {
		t.Error("handler should reject a change-set without attributes")
	}
}

func TestIntakeChangeSetBadPayload(t *testing.T) {
	_, bus, _, _ := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllChangeSets(), "thermlink/changeset/th-1", `{not json`)
	if err == nil {
		t.Error("handler should reject malformed JSON")
	}
}

func TestIntakeSchedule(t *testing.T) {
	_, bus, _, windows := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllScheduleSets(), "thermlink/schedule/th-1/set",
		`{"user_id":"user-1","timezone":"UTC","windows":[
			{"command":"set_temp","value":21,"day":3,"start_hour":14,"start_minute":30,"end_day":3,"end_hour":16,"end_minute":0}
		]}`)
	if err != nil {
		t.Fatalf("handler unexpected error: %v", err)
	}

	got, _ := windows.ListByThermostat(context.Background(), "th-1")
	if len(got) != 1 {
		t.Fatalf("stored windows = %d, want 1", len(got))
	}

	w := got[0]
	if w.Name != "set_temp" || w.Value != 21 {
		t.Errorf("window command = %s/%d, want set_temp/21", w.Name, w.Value)
	}
	// UTC 14:30 in a fixed UTC+2 operating zone.
	if w.StartDay != 3 || w.StartTime != "16:30" {
		t.Errorf("window start = day %d %s, want day 3 16:30", w.StartDay, w.StartTime)
	}
	if w.Frame != protocol.EncodeIndividual(10, 21).Hex() {
		t.Errorf("window frame = %s, want %s", w.Frame, protocol.EncodeIndividual(10, 21).Hex())
	}
}

func TestIntakeScheduleOffset(t *testing.T) {
	_, bus, _, windows := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllScheduleSets(), "thermlink/schedule/th-1/set",
		`{"user_id":"user-1","timezone":"UTC","windows":[
			{"offset_sign":1,"offset_value":3,"day":1,"start_hour":8,"start_minute":0,"end_day":1,"end_hour":10,"end_minute":0}
		]}`)
	if err != nil {
		t.Fatalf("handler unexpected error: %v", err)
	}

	got, _ := windows.ListByThermostat(context.Background(), "th-1")
	if len(got) != 1 {
		t.Fatalf("stored windows = %d, want 1", len(got))
	}
	if got[0].Name != protocol.OffsetName {
		t.Errorf("window name = %s, want %s", got[0].Name, protocol.OffsetName)
	}
	if got[0].Value != 0x83 {
		t.Errorf("window value = %#x, want 0x83", got[0].Value)
	}
}

func TestIntakeScheduleUnknownCommand(t *testing.T) {
	_, bus, _, windows := newTestIntake(t)

	err := bus.inject(t, mqtt.Topics{}.AllScheduleSets(), "thermlink/schedule/th-1/set",
		`{"user_id":"user-1","timezone":"UTC","windows":[
			{"command":"nonsense","value":1,"day":1,"start_hour":8,"start_minute":0,"end_day":1,"end_hour":10,"end_minute":0}
		]}`)
	if err == nil {
		t.Error("handler should reject an unknown command")
	}

	if got, _ := windows.ListByThermostat(context.Background(), "th-1"); len(got) != 0 {
		t.Errorf("stored windows = %d, want 0 after rejected message", len(got))
	}
}

func TestTopicSegment(t *testing.T) {
	tests := []struct {
		topic string
		n     int
		want  string
	}{
		{"thermlink/changeset/th-1", 2, "th-1"},
		{"thermlink/schedule/th-1/set", 2, "th-1"},
		{"thermlink/changeset", 2, ""},
		{"thermlink", 0, "thermlink"},
		{"a/b", -1, ""},
	}
	for _, tt := range tests {
		if got := topicSegment(tt.topic, tt.n); got != tt.want {
			t.Errorf("topicSegment(%q, %d) = %q, want %q", tt.topic, tt.n, got, tt.want)
		}
	}
}
