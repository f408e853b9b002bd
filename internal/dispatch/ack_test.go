package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
	"github.com/thermlink/thermlink-core/internal/protocol"
)

func TestAckListenerMarksExecuted(t *testing.T) {
	ledger := setupLedger(t)
	bus := newFakeBus()

	rec := &command.Record{
		UserID:       "user-1",
		ThermostatID: "th-1",
		Name:         "set_temp",
		Value:        22,
		Frame:        "F1F2A10A16000000A1FEFF",
	}
	if err := ledger.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	listener := NewAckListener(bus, ledger, nil)
	if err := listener.Start(); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	err := bus.inject(t, mqtt.Topics{}.AllCommandAcks(),
		mqtt.Topics{}.CommandAck("th-1"),
		`{"command_id":"`+rec.ID+`","thermostat_id":"th-1"}`)
	if err != nil {
		t.Fatalf("handler unexpected error: %v", err)
	}

	got, err := ledger.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() unexpected error: %v", err)
	}
	if !got.Executed {
		t.Error("record should be executed after ack")
	}
}

func TestAckListenerUnknownCommand(t *testing.T) {
	ledger := setupLedger(t)
	bus := newFakeBus()

	listener := NewAckListener(bus, ledger, nil)
	if err := listener.Start(); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	// Late acks for pruned records must not error.
	err := bus.inject(t, mqtt.Topics{}.AllCommandAcks(),
		mqtt.Topics{}.CommandAck("th-1"),
		`{"command_id":"cmd-gone"}`)
	if err != nil {
		t.Errorf("handler error = %v, want nil for unknown command", err)
	}
}

func TestAckListenerBadPayload(t *testing.T) {
	ledger := setupLedger(t)
	bus := newFakeBus()

	listener := NewAckListener(bus, ledger, nil)
	if err := listener.Start(); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	if err := bus.inject(t, mqtt.Topics{}.AllCommandAcks(),
		mqtt.Topics{}.CommandAck("th-1"), `{not json`); err == nil {
		t.Error("handler should reject malformed JSON")
	}

	if err := bus.inject(t, mqtt.Topics{}.AllCommandAcks(),
		mqtt.Topics{}.CommandAck("th-1"), `{"thermostat_id":"th-1"}`); err == nil {
		t.Error("handler should reject an ack without command_id")
	}
}

func TestEventsDispatched(t *testing.T) {
	bus := newFakeBus()
	events := NewEvents(bus, nil)

	events.Dispatched(&command.Record{
		ID:           "cmd-1a2b3c4d",
		UserID:       "user-1",
		ThermostatID: "th-1",
		Name:         "mode",
		Value:        1,
		Frame:        protocol.EncodeIndividual(20, 1).Hex(),
		ChannelTag:   "app",
	})

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.published) != 1 {
		t.Fatalf("published = %d messages, want 1", len(bus.published))
	}

	topic, payload, _ := strings.Cut(bus.published[0], " ")
	if topic != "thermlink/command/th-1/dispatched" {
		t.Errorf("topic = %q, want thermlink/command/th-1/dispatched", topic)
	}

	var evt CommandEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if evt.CommandID != "cmd-1a2b3c4d" || evt.Name != "mode" || evt.Value != 1 {
		t.Errorf("event = %+v, want command cmd-1a2b3c4d mode/1", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Error("event timestamp should be set")
	}
}

func TestEventsNilSafe(t *testing.T) {
	var events *Events
	events.Dispatched(&command.Record{ID: "cmd-x"})
	events.Resent(&command.Record{ID: "cmd-x"})

	events = NewEvents(nil, nil)
	events.Dispatched(&command.Record{ID: "cmd-x"})
}
