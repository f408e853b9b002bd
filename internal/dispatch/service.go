package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/protocol"
	"github.com/thermlink/thermlink-core/internal/schedule"
	"github.com/thermlink/thermlink-core/internal/thermostat"
)

// defaultStaggerUnit spaces the frames of one change-set so a unit's
// single-threaded controller is not flooded.
const defaultStaggerUnit = time.Second

// Attribute names with dispatch-order significance.
const (
	attrSetTemp    = "set_temp"
	attrMode       = "mode"
	attrOffsetTemp = "offset_temp"
	attrOffsetSign = "offset_sign"

	// cascadeRegister is the master-side relay register driven by the
	// slave/master mode combination.
	cascadeRegister = "relay_opera"

	// settingsName is the ledger name for aggregate settings frames.
	settingsName = "settings"
)

// MetricsWriter receives per-dispatch delivery metrics. The InfluxDB
// client satisfies it; nil disables telemetry.
type MetricsWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// Service turns change-sets into ordered, staggered command dispatches.
type Service struct {
	thermostats thermostat.Repository
	ledger      command.Ledger
	dispatcher  *Dispatcher
	events      *Events
	metrics     MetricsWriter
	logger      Logger

	staggerUnit time.Duration
}

// ServiceConfig wires a Service. Events, Metrics and Logger are
// optional.
type ServiceConfig struct {
	Thermostats thermostat.Repository
	Ledger      command.Ledger
	Dispatcher  *Dispatcher
	Events      *Events
	Metrics     MetricsWriter
	Logger      Logger

	// StaggerUnit is the delay granularity between frames of one
	// change-set. Default: 1 second.
	StaggerUnit time.Duration
}

// NewService creates the dispatch service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.StaggerUnit == 0 {
		cfg.StaggerUnit = defaultStaggerUnit
	}
	return &Service{
		thermostats: cfg.Thermostats,
		ledger:      cfg.Ledger,
		dispatcher:  cfg.Dispatcher,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		staggerUnit: cfg.StaggerUnit,
	}
}

// plannedCommand is one attribute resolved to a frame, before delay
// assignment.
type plannedCommand struct {
	name  string
	value int
	frame protocol.Frame
}

// Execute encodes a change-set into individual command frames, records
// each in the ledger and hands them to the dispatcher with staggered
// delays. Returns the ledger records in submission order.
//
// Ordering within the change-set: when both set_temp and mode are
// present they go first, set_temp then mode; every other attribute
// follows in descending name order. The descending sort is the
// documented tie-break, kept stable so devices always see batches in
// the same sequence.
func (s *Service) Execute(ctx context.Context, cs thermostat.ChangeSet) ([]*command.Record, error) {
	t, err := s.thermostats.GetByID(ctx, cs.ThermostatID)
	if err != nil {
		return nil, fmt.Errorf("resolving thermostat %s: %w", cs.ThermostatID, err)
	}

	planned, err := planCommands(cs)
	if err != nil {
		return nil, err
	}

	records := make([]*command.Record, 0, len(planned))
	delay := time.Duration(0)
	pairFirst := cs.Has(attrSetTemp) && cs.Has(attrMode)

	for i, pc := range planned {
		rec := &command.Record{
			UserID:       cs.UserID,
			ThermostatID: cs.ThermostatID,
			Name:         pc.name,
			Value:        pc.value,
			Frame:        pc.frame.Hex(),
			ChannelTag:   cs.ChannelTag,
		}
		if err := s.ledger.Append(ctx, rec); err != nil {
			return records, fmt.Errorf("recording %s command: %w", pc.name, err)
		}

		if err := s.dispatcher.SendAfter(t.Endpoint, pc.frame, delay); err != nil {
			return records, err
		}
		records = append(records, rec)
		s.announce(rec)

		// The pair ships back to back; everything after is spaced two
		// units apart.
		if pairFirst && i == 0 {
			delay += s.staggerUnit
		} else {
			delay += 2 * s.staggerUnit
		}
	}

	if mode, ok := cs.Int(attrMode); ok {
		if err := s.thermostats.UpdateMode(ctx, cs.ThermostatID, mode); err != nil {
			return records, fmt.Errorf("storing mode for %s: %w", cs.ThermostatID, err)
		}
		if t.Kind == thermostat.KindSlave {
			rec, err := s.cascade(ctx, t, cs, mode, delay)
			if err != nil {
				return records, err
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// planCommands resolves a change-set's attributes into frames in
// dispatch order.
func planCommands(cs thermostat.ChangeSet) ([]plannedCommand, error) {
	names := make([]string, 0, len(cs.Attributes))
	for name := range cs.Attributes {
		if name == attrOffsetSign {
			continue // consumed by the offset_temp compound
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if cs.Has(attrSetTemp) && cs.Has(attrMode) {
		ordered := []string{attrSetTemp, attrMode}
		for _, name := range names {
			if name != attrSetTemp && name != attrMode {
				ordered = append(ordered, name)
			}
		}
		names = ordered
	}

	planned := make([]plannedCommand, 0, len(names))
	for _, name := range names {
		value, ok := cs.Int(name)
		if !ok {
			return nil, fmt.Errorf("attribute %s is not numeric", name)
		}

		if name == attrOffsetTemp {
			sign, _ := cs.Int(attrOffsetSign)
			ov := protocol.OffsetValue{Sign: sign != 0, Magnitude: value}
			planned = append(planned, plannedCommand{
				name:  protocol.OffsetName,
				value: int(ov.Encode()),
				frame: protocol.EncodeOffset(ov),
			})
			continue
		}

		code, err := protocol.Registers.Resolve(name)
		if err != nil {
			return nil, err
		}
		planned = append(planned, plannedCommand{
			name:  name,
			value: value,
			frame: protocol.EncodeIndividual(code, value),
		})
	}
	return planned, nil
}

// cascadeValue is the fixed (slave on, master on) combination table for
// the master's relay register. Four enumerated outcomes, not arithmetic.
func cascadeValue(slaveOn, masterOn bool) int {
	switch {
	case slaveOn && masterOn:
		return 3
	case slaveOn && !masterOn:
		return 2
	case !slaveOn && masterOn:
		return 1
	default:
		return 0
	}
}

// cascade sends the composite relay command to a slave's master after a
// slave mode change.
func (s *Service) cascade(ctx context.Context, slave *thermostat.Thermostat, cs thermostat.ChangeSet, slaveMode int, delay time.Duration) (*command.Record, error) {
	if slave.ParentID == nil || *slave.ParentID == "" {
		return nil, fmt.Errorf("slave %s: %w", slave.ID, thermostat.ErrNoParent)
	}

	master, err := s.thermostats.GetByID(ctx, *slave.ParentID)
	if err != nil {
		return nil, fmt.Errorf("resolving master %s: %w", *slave.ParentID, err)
	}

	value := cascadeValue(slaveMode != 0, master.Mode != 0)
	code, err := protocol.Registers.Resolve(cascadeRegister)
	if err != nil {
		return nil, err
	}
	frame := protocol.EncodeIndividual(code, value)

	rec := &command.Record{
		UserID:       cs.UserID,
		ThermostatID: master.ID,
		Name:         cascadeRegister,
		Value:        value,
		Frame:        frame.Hex(),
		ChannelTag:   cs.ChannelTag,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording cascade command: %w", err)
	}
	if err := s.dispatcher.SendAfter(master.Endpoint, frame, delay); err != nil {
		return nil, err
	}
	s.announce(rec)

	if s.logger != nil {
		s.logger.Info("mode cascaded to master",
			"slave_id", slave.ID, "master_id", master.ID, "value", value)
	}
	return rec, nil
}

// ExecuteSettings merges a change-set into the device's stored settings
// snapshot and ships one aggregate settings frame instead of individual
// commands.
func (s *Service) ExecuteSettings(ctx context.Context, cs thermostat.ChangeSet) (*command.Record, error) {
	t, err := s.thermostats.GetByID(ctx, cs.ThermostatID)
	if err != nil {
		return nil, fmt.Errorf("resolving thermostat %s: %w", cs.ThermostatID, err)
	}

	merged := thermostat.ApplyChangeSet(t.Settings, cs)
	frame, err := protocol.EncodeSettings(thermostat.SettingsBlockValues(merged))
	if err != nil {
		return nil, fmt.Errorf("encoding settings block: %w", err)
	}

	rec := &command.Record{
		UserID:       cs.UserID,
		ThermostatID: cs.ThermostatID,
		Name:         settingsName,
		Frame:        frame.Hex(),
		ChannelTag:   cs.ChannelTag,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording settings command: %w", err)
	}

	if err := s.dispatcher.Send(ctx, t.Endpoint, frame); err != nil {
		return rec, err
	}
	s.announce(rec)

	if err := s.thermostats.UpdateSettings(ctx, cs.ThermostatID, merged); err != nil {
		return rec, fmt.Errorf("storing settings for %s: %w", cs.ThermostatID, err)
	}
	return rec, nil
}

// DeliverWindow dispatches a stored schedule window's frame, then runs
// the resend check against the new ledger record. It blocks for the
// recheck interval, so scheduled flows run it in their own goroutine.
// Reports whether a resend happened.
func (s *Service) DeliverWindow(ctx context.Context, w schedule.Window) (bool, error) {
	ep, err := s.thermostats.GetEndpoint(ctx, w.ThermostatID)
	if err != nil {
		return false, fmt.Errorf("resolving endpoint for %s: %w", w.ThermostatID, err)
	}
	frame, err := protocol.FrameFromHex(w.Frame)
	if err != nil {
		return false, fmt.Errorf("decoding window frame: %w", err)
	}

	rec := &command.Record{
		UserID:       w.UserID,
		ThermostatID: w.ThermostatID,
		Name:         w.Name,
		Value:        w.Value,
		Frame:        w.Frame,
		ChannelTag:   "schedule",
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return false, fmt.Errorf("recording scheduled command: %w", err)
	}

	if err := s.dispatcher.Send(ctx, ep, frame); err != nil {
		return false, err
	}
	s.announce(rec)

	resent, err := s.dispatcher.CheckAndResend(ctx, rec.ID, ep)
	if err != nil {
		return false, err
	}
	if resent {
		s.events.Resent(rec)
		s.record(rec, "command_resent")
	}
	return resent, nil
}

// announce publishes the dispatched event and telemetry for a record.
func (s *Service) announce(rec *command.Record) {
	s.events.Dispatched(rec)
	s.record(rec, "command_dispatched")
}

// record writes one delivery metric point.
func (s *Service) record(rec *command.Record, measurement string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WritePoint(measurement,
		map[string]string{
			"thermostat_id": rec.ThermostatID,
			"name":          rec.Name,
			"channel":       rec.ChannelTag,
		},
		map[string]interface{}{
			"value": rec.Value,
		})
}
