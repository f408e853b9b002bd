package dispatch

import (
	"encoding/json"
	"time"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
)

// Bus is the slice of the MQTT client the dispatcher uses.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// eventQoS: lifecycle events are at-least-once; duplicates are harmless
// because consumers key on command_id.
const eventQoS byte = 1

// CommandEvent is the payload published for command lifecycle events.
type CommandEvent struct {
	CommandID    string    `json:"command_id"`
	ThermostatID string    `json:"thermostat_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Value        int       `json:"value"`
	Frame        string    `json:"frame"`
	ChannelTag   string    `json:"channel_tag,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Events publishes command lifecycle events to the bus. A nil *Events
// is valid and publishes nothing, so wiring the bus stays optional.
type Events struct {
	bus    Bus
	logger Logger
}

// NewEvents creates an event publisher on the given bus.
func NewEvents(bus Bus, logger Logger) *Events {
	return &Events{bus: bus, logger: logger}
}

// Dispatched announces that a command frame was handed to the gateway.
func (e *Events) Dispatched(rec *command.Record) {
	if e == nil || e.bus == nil {
		return
	}
	e.publish(mqtt.Topics{}.CommandDispatched(rec.ThermostatID), rec)
}

// Resent announces that a resend check re-delivered a command.
func (e *Events) Resent(rec *command.Record) {
	if e == nil || e.bus == nil {
		return
	}
	e.publish(mqtt.Topics{}.CommandResent(rec.ThermostatID), rec)
}

func (e *Events) publish(topic string, rec *command.Record) {
	payload, err := json.Marshal(CommandEvent{
		CommandID:    rec.ID,
		ThermostatID: rec.ThermostatID,
		UserID:       rec.UserID,
		Name:         rec.Name,
		Value:        rec.Value,
		Frame:        rec.Frame,
		ChannelTag:   rec.ChannelTag,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(topic, payload, eventQoS, false); err != nil && e.logger != nil {
		e.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
