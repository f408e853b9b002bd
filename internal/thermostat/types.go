package thermostat

import (
	"fmt"
	"time"

	"github.com/thermlink/thermlink-core/internal/protocol"
)

// Kind classifies how a thermostat participates in a property.
type Kind string

// Kind constants.
const (
	// KindStandalone is an ordinary room unit with no dependencies.
	KindStandalone Kind = "standalone"

	// KindMaster is a heat-pump unit; slaves derive their heat from it.
	KindMaster Kind = "master"

	// KindSlave is a dependent unit bound to a master via ParentID.
	KindSlave Kind = "slave"
)

// Legacy numeric type identifiers from the first protocol generation.
// They survive in provisioning payloads from older mobile clients.
const (
	legacyTypeMaster = 5
	legacyTypeSlave  = 7
)

// Valid reports whether the kind is one of the recognised values.
func (k Kind) Valid() bool {
	switch k {
	case KindStandalone, KindMaster, KindSlave:
		return true
	}
	return false
}

// KindFromTypeID maps a legacy numeric thermostat type to a Kind.
// Unrecognised ids are standalone units.
func KindFromTypeID(id int) Kind {
	switch id {
	case legacyTypeMaster:
		return KindMaster
	case legacyTypeSlave:
		return KindSlave
	default:
		return KindStandalone
	}
}

// Endpoint is the current network location of a thermostat behind the
// gateway. Devices roam, so the endpoint is resolved once per dispatch.
type Endpoint struct {
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
}

// Addr renders the endpoint in "ip:port" form, the address tag used on the
// gateway wire.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.IPAddress, e.Port)
}

// Settings is a thermostat's attribute snapshot, keyed by protocol
// attribute name. It backs bulk settings frames and partial updates.
type Settings map[string]int

// Clone returns an independent copy of the settings snapshot.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Thermostat represents one networked thermostat device.
type Thermostat struct {
	ID         string  `json:"id"`
	MACAddress string  `json:"mac_address"`
	RoomName   string  `json:"room_name"`
	PropertyID string  `json:"property_id"`
	Kind       Kind    `json:"kind"`
	ParentID   *string `json:"parent_id,omitempty"`

	// Mode mirrors the device's last commanded operating mode; it is kept
	// current so the master cascade can combine slave and master modes.
	Mode         int  `json:"mode"`
	PreviousMode int  `json:"previous_mode"`
	ForceOff     bool `json:"force_off"`

	Endpoint Endpoint `json:"endpoint"`
	Timezone string   `json:"timezone"`
	Settings Settings `json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChangeSet is the inbound contract from the API layer: a range-validated
// mapping of attribute name to new value for one device. The core never
// mutates a change-set after receipt.
type ChangeSet struct {
	ThermostatID string
	UserID       string

	// ChannelTag records which request path produced the change-set
	// (app, scheduler, property-wide switch, ...). Audit only.
	ChannelTag string

	// Attributes holds the new values. Booleans and decimals are accepted
	// and coerced to the protocol's integer domain on read.
	Attributes map[string]any
}

// Has reports whether the change-set carries the attribute.
func (c ChangeSet) Has(name string) bool {
	_, ok := c.Attributes[name]
	return ok
}

// Int returns the attribute coerced to the protocol's integer domain.
// Booleans map to 0/1, decimals are truncated. The second return is false
// when the attribute is absent or not numeric.
func (c ChangeSet) Int(name string) (int, bool) {
	v, ok := c.Attributes[name]
	if !ok {
		return 0, false
	}
	return coerceInt(v)
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ApplyChangeSet copies every attribute the register catalog knows from the
// change-set onto a copy of the settings snapshot. Unknown attributes are
// ignored; the original snapshot is untouched.
//
// The copy is driven by the catalog tables, so new protocol attributes need
// no code here.
func ApplyChangeSet(s Settings, cs ChangeSet) Settings {
	out := s.Clone()
	for name := range cs.Attributes {
		if !protocol.Registers.Has(name) && !protocol.SettingsOffsets.Has(name) {
			continue
		}
		if v, ok := cs.Int(name); ok {
			out[name] = v
		}
	}
	return out
}

// SettingsBlockValues filters a settings snapshot down to the attributes
// that live in the bulk settings block, the input EncodeSettings expects.
func SettingsBlockValues(s Settings) map[string]int {
	out := make(map[string]int)
	for name, v := range s {
		if protocol.SettingsOffsets.Has(name) {
			out[name] = v
		}
	}
	return out
}
