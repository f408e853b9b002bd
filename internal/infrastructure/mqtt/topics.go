package mqtt

import "fmt"

// Topic prefixes for the ThermLink MQTT bus.
//
// All topics use the flat scheme: thermlink/{category}/{id}[/{event}]
const (
	// TopicPrefix is the base for all ThermLink topics.
	TopicPrefix = "thermlink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "thermlink/system"
)

// Topics provides builders for ThermLink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	ackTopic := topics.CommandAck("th-living")
//	// Returns: "thermlink/ack/th-living"
type Topics struct{}

// =============================================================================
// Command Lifecycle Topics
// =============================================================================

// CommandDispatched returns the topic announcing a command frame handed
// to the gateway for a thermostat.
//
// Example: thermlink/command/th-living/dispatched
func (Topics) CommandDispatched(thermostatID string) string {
	return fmt.Sprintf("%s/command/%s/dispatched", TopicPrefix, thermostatID)
}

// CommandResent returns the topic announcing that a resend check
// re-delivered a command.
//
// Example: thermlink/command/th-living/resent
func (Topics) CommandResent(thermostatID string) string {
	return fmt.Sprintf("%s/command/%s/resent", TopicPrefix, thermostatID)
}

// CommandAck returns the topic a device relay publishes on when a unit
// confirms a command.
//
// Example: thermlink/ack/th-living
func (Topics) CommandAck(thermostatID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, thermostatID)
}

// =============================================================================
// Intake Topics
// =============================================================================

// ChangeSet returns the topic external surfaces publish change-sets on.
//
// Example: thermlink/changeset/th-living
func (Topics) ChangeSet(thermostatID string) string {
	return fmt.Sprintf("%s/changeset/%s", TopicPrefix, thermostatID)
}

// ScheduleSet returns the topic carrying replacement schedule windows
// for a thermostat.
//
// Example: thermlink/schedule/th-living/set
func (Topics) ScheduleSet(thermostatID string) string {
	return fmt.Sprintf("%s/schedule/%s/set", TopicPrefix, thermostatID)
}

// =============================================================================
// State Topics
// =============================================================================

// ThermostatState returns the topic for a unit's reported register state.
//
// Example: thermlink/state/th-living
func (Topics) ThermostatState(thermostatID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, thermostatID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: thermlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCommandAcks returns a pattern matching every acknowledgement.
//
// Pattern: thermlink/ack/+
func (Topics) AllCommandAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefix)
}

// AllChangeSets returns a pattern matching change-sets for every
// thermostat.
//
// Pattern: thermlink/changeset/+
func (Topics) AllChangeSets() string {
	return fmt.Sprintf("%s/changeset/+", TopicPrefix)
}

// AllScheduleSets returns a pattern matching schedule replacements for
// every thermostat.
//
// Pattern: thermlink/schedule/+/set
func (Topics) AllScheduleSets() string {
	return fmt.Sprintf("%s/schedule/+/set", TopicPrefix)
}

// AllCommandEvents returns a pattern matching all command lifecycle
// events.
//
// Pattern: thermlink/command/+/+
func (Topics) AllCommandEvents() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllThermostatStates returns a pattern matching all state updates.
//
// Pattern: thermlink/state/+
func (Topics) AllThermostatStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all ThermLink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: thermlink/#
func (Topics) AllTopics() string {
	return "thermlink/#"
}
