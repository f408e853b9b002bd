package protocol

import (
	"fmt"
	"sort"
)

// RegisterOffsetTemp is the compound temperature-offset register. Its value
// is not a plain byte but a sign/magnitude pair (see OffsetValue), so it is
// deliberately absent from the name catalog and handled by EncodeOffset.
const RegisterOffsetTemp byte = 14

// OffsetName is the ledger name used for commands on RegisterOffsetTemp.
// The offset register is driven by the offset_sign/offset_temp attribute
// pair rather than a single catalog attribute.
const OffsetName = "offset"

// Catalog is a static bidirectional mapping between attribute names and
// protocol codes. Codes are unique within a catalog, so reverse lookup
// returns the single matching name.
//
// Catalogs are immutable after construction and safe for concurrent use.
type Catalog struct {
	byName   map[string]byte
	byCode   map[byte]string
	notFound error
}

// newCatalog builds a catalog from a name→code table. Duplicate codes are a
// protocol-definition bug, caught at process start.
func newCatalog(notFound error, entries map[string]byte) *Catalog {
	byCode := make(map[byte]string, len(entries))
	for name, code := range entries {
		if prev, ok := byCode[code]; ok {
			panic(fmt.Sprintf("protocol: code %d assigned to both %q and %q", code, prev, name))
		}
		byCode[code] = name
	}
	return &Catalog{byName: entries, byCode: byCode, notFound: notFound}
}

// Resolve returns the protocol code for an attribute name.
func (c *Catalog) Resolve(name string) (byte, error) {
	code, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", c.notFound, name)
	}
	return code, nil
}

// ReverseResolve returns the attribute name for a protocol code.
func (c *Catalog) ReverseResolve(code byte) (string, error) {
	name, ok := c.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: code %d", c.notFound, code)
	}
	return name, nil
}

// Has reports whether the catalog contains the attribute name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Names returns all attribute names in the catalog, sorted ascending.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// Registers maps attribute names to individual register codes.
//
// Attribute names (including their historical spellings) are part of the
// inbound API contract and must not be "corrected" here.
var Registers = newCatalog(ErrUnknownRegister, map[string]byte{
	"room_temp":                     0,
	"floor_temp":                    1,
	"comp_temp":                     2,
	"target_temp":                   3,
	"relay_status":                  4,
	"signal_strength":               5,
	"set_temp":                      10,
	"sched_temp":                    11,
	"max_temp":                      12,
	"min_temp":                      13,
	"temp_limiter":                  15,
	"mode":                          20,
	"sensors_mode":                  21,
	"temp_measurement":              22,
	"relay_opera":                   23,
	"relay_limit":                   24,
	"sensitivity":                   25,
	"differential":                  26,
	"cool_heat_mode":                27,
	"boiler_duration":               28,
	"home_router_mac_address":       29,
	"bathroom_on_low_heat":          30,
	"bathroom_delay_stby_low_heat":  31,
	"bathroom_on_med_heat":          32,
	"bathroom_delay_stby_med_heat":  33,
	"bathroom_on_high_heat":         34,
	"bathroom_delay_stby_high_heat": 35,
	"cool_room_check":               36,
	"boost":                         37,
	"ligth_intensity":               38,
	"enab_vibration":                39,
	"enab_matrix":                   40,
	"enab_hart_beep_led":            41,
	"enab_lock":                     42,
	"last_command":                  50,
	"last_operation":                51,
	"last_operation_value":          52,
	"restore_default":               53,
	"encription_code":               54,
	"indor_sensor":                  100,
	"floor_sensor":                  101,
	"commu_status":                  102,
	"cool_heat":                     201,
	"fan_speed":                     202,
})

// SettingsOffsets maps attribute names to byte offsets within the 29-byte
// settings block.
var SettingsOffsets = newCatalog(ErrUnknownOffset, map[string]byte{
	"mode":                          3,
	"sensors_mode":                  4,
	"temp_measurement":              5,
	"relay_opera":                   6,
	"relay_limit":                   7,
	"sensitivity":                   8,
	"differential":                  9,
	"cool_heat_mode":                10,
	"boiler_duration":               11,
	"home_router_mac_address":       12,
	"bathroom_on_low_heat":          13,
	"bathroom_delay_stby_low_heat":  14,
	"bathroom_on_med_heat":          15,
	"bathroom_delay_stby_med_heat":  16,
	"bathroom_on_high_heat":         17,
	"bathroom_delay_stby_high_heat": 18,
	"cool_room_check":               19,
	"boost":                         20,
	"ligth_intensity":               21,
	"enab_vibration":                22,
	"enab_matrix":                   23,
	"enab_hart_beep_led":            24,
	"enab_lock":                     25,
})
