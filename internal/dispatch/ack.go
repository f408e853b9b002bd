package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
)

// ackTimeout bounds the ledger update for one acknowledgement.
const ackTimeout = 5 * time.Second

// Ack is the payload a device relay publishes when a unit confirms a
// command.
type Ack struct {
	CommandID    string `json:"command_id"`
	ThermostatID string `json:"thermostat_id,omitempty"`
}

// AckListener flips ledger records to executed when device
// acknowledgements arrive on the bus. It is the external
// acknowledgement path the resend check relies on.
type AckListener struct {
	bus    Bus
	ledger command.Ledger
	logger Logger
}

// NewAckListener creates a listener; call Start to subscribe.
func NewAckListener(bus Bus, ledger command.Ledger, logger Logger) *AckListener {
	return &AckListener{bus: bus, ledger: ledger, logger: logger}
}

// Start subscribes to all acknowledgement topics.
func (a *AckListener) Start() error {
	topic := mqtt.Topics{}.AllCommandAcks()
	if err := a.bus.Subscribe(topic, eventQoS, a.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// handle processes one acknowledgement message.
func (a *AckListener) handle(topic string, payload []byte) error {
	var ack Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack on %s: %w", topic, err)
	}
	if ack.CommandID == "" {
		return fmt.Errorf("ack on %s has no command_id", topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	if err := a.ledger.MarkExecuted(ctx, ack.CommandID); err != nil {
		// Late acks for pruned records are expected; log and move on.
		if a.logger != nil {
			a.logger.Warn("ack for unknown command", "command_id", ack.CommandID, "error", err)
		}
		return nil
	}

	if a.logger != nil {
		a.logger.Debug("command acknowledged", "command_id", ack.CommandID)
	}
	return nil
}
