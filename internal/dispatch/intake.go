package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thermlink/thermlink-core/internal/infrastructure/mqtt"
	"github.com/thermlink/thermlink-core/internal/protocol"
	"github.com/thermlink/thermlink-core/internal/schedule"
	"github.com/thermlink/thermlink-core/internal/thermostat"
)

// intakeTimeout bounds the pipeline run for one inbound message.
const intakeTimeout = 30 * time.Second

// ChangeSetMessage is the payload external surfaces publish on the
// change-set topic. Attributes use register names; a true Settings flag
// routes the change-set through the aggregate settings frame instead of
// individual commands.
type ChangeSetMessage struct {
	UserID     string         `json:"user_id"`
	Channel    string         `json:"channel,omitempty"`
	Settings   bool           `json:"settings,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

// ScheduleEntry is one window in a schedule replacement, expressed in
// the caller's timezone.
type ScheduleEntry struct {
	Command string `json:"command"`
	Value   int    `json:"value"`

	// OffsetSign/OffsetValue carry the compound temperature-offset pair;
	// when OffsetValue is set, Command and Value are ignored.
	OffsetSign  int  `json:"offset_sign,omitempty"`
	OffsetValue *int `json:"offset_value,omitempty"`

	Day         int `json:"day"`
	EndDay      int `json:"end_day"`
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// ScheduleMessage replaces a thermostat's whole weekly schedule.
type ScheduleMessage struct {
	UserID   string          `json:"user_id"`
	Timezone string          `json:"timezone"`
	Windows  []ScheduleEntry `json:"windows"`
}

// Intake feeds the dispatch pipeline from the bus: change-sets from
// apps and relays, and schedule replacements from the scheduling
// surface. The thermostat id comes from the topic.
type Intake struct {
	bus        Bus
	svc        *Service
	normalizer *schedule.Normalizer
	windows    schedule.Repository
	logger     Logger
}

// NewIntake creates an intake; call Start to subscribe.
func NewIntake(bus Bus, svc *Service, normalizer *schedule.Normalizer, windows schedule.Repository, logger Logger) *Intake {
	return &Intake{bus: bus, svc: svc, normalizer: normalizer, windows: windows, logger: logger}
}

// Start subscribes to the change-set and schedule topics.
func (in *Intake) Start() error {
	topics := mqtt.Topics{}
	if err := in.bus.Subscribe(topics.AllChangeSets(), eventQoS, in.handleChangeSet); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.AllChangeSets(), err)
	}
	if err := in.bus.Subscribe(topics.AllScheduleSets(), eventQoS, in.handleSchedule); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topics.AllScheduleSets(), err)
	}
	return nil
}

// handleChangeSet decodes and executes one inbound change-set.
func (in *Intake) handleChangeSet(topic string, payload []byte) error {
	thermostatID := topicSegment(topic, 2)
	if thermostatID == "" {
		return fmt.Errorf("change-set topic %s has no thermostat id", topic)
	}

	var msg ChangeSetMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding change-set on %s: %w", topic, err)
	}
	if len(msg.Attributes) == 0 {
		return fmt.Errorf("change-set on %s has no attributes", topic)
	}

	cs := thermostat.ChangeSet{
		ThermostatID: thermostatID,
		UserID:       msg.UserID,
		ChannelTag:   msg.Channel,
		Attributes:   msg.Attributes,
	}
	if cs.ChannelTag == "" {
		cs.ChannelTag = "bus"
	}

	ctx, cancel := context.WithTimeout(context.Background(), intakeTimeout)
	defer cancel()

	var err error
	if msg.Settings {
		_, err = in.svc.ExecuteSettings(ctx, cs)
	} else {
		_, err = in.svc.Execute(ctx, cs)
	}
	if err != nil {
		return fmt.Errorf("executing change-set for %s: %w", thermostatID, err)
	}

	if in.logger != nil {
		in.logger.Info("change-set executed",
			"thermostat_id", thermostatID,
			"attributes", len(msg.Attributes),
			"settings", msg.Settings,
		)
	}
	return nil
}

// handleSchedule plans and stores a replacement weekly schedule.
func (in *Intake) handleSchedule(topic string, payload []byte) error {
	thermostatID := topicSegment(topic, 2)
	if thermostatID == "" {
		return fmt.Errorf("schedule topic %s has no thermostat id", topic)
	}

	var msg ScheduleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding schedule on %s: %w", topic, err)
	}

	now := time.Now()
	planned := make([]schedule.Window, 0, len(msg.Windows))
	for i, entry := range msg.Windows {
		req := schedule.Request{
			ThermostatID: thermostatID,
			UserID:       msg.UserID,
			CommandName:  entry.Command,
			CommandValue: entry.Value,
			Day:          entry.Day,
			EndDay:       entry.EndDay,
			StartHour:    entry.StartHour,
			StartMinute:  entry.StartMinute,
			EndHour:      entry.EndHour,
			EndMinute:    entry.EndMinute,
			Timezone:     msg.Timezone,
		}
		if entry.OffsetValue != nil {
			req.Offset = &protocol.OffsetValue{
				Sign:      entry.OffsetSign != 0,
				Magnitude: *entry.OffsetValue,
			}
		}

		w, err := in.normalizer.Plan(now, req)
		if err != nil {
			return fmt.Errorf("planning schedule window %d for %s: %w", i, thermostatID, err)
		}
		planned = append(planned, w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), intakeTimeout)
	defer cancel()

	if err := in.windows.Replace(ctx, thermostatID, planned); err != nil {
		return fmt.Errorf("replacing schedule for %s: %w", thermostatID, err)
	}

	if in.logger != nil {
		in.logger.Info("schedule replaced",
			"thermostat_id", thermostatID,
			"windows", len(planned),
		)
	}
	return nil
}

// topicSegment returns the n-th slash-separated segment of a topic, or
// "" when out of range.
func topicSegment(topic string, n int) string {
	parts := strings.Split(topic, "/")
	if n < 0 || n >= len(parts) {
		return ""
	}
	return parts[n]
}
