// Package thermostat holds the thermostat device model and its SQLite
// repository.
//
// A thermostat is identified by ID, carries its current network endpoint
// (devices roam, so the endpoint is re-read per dispatch), a settings
// snapshot keyed by protocol attribute name, and a Kind. Kind is an
// explicit enumeration:
//
//   - Standalone: an ordinary room unit.
//   - Master: a heat-pump unit that other units depend on.
//   - Slave: a dependent unit bound to a master via ParentID. Mode changes
//     on a slave trigger a derived composite command to its master.
//
// Change-sets arrive from the API layer already range-validated. Applying
// a change-set onto a settings snapshot is generic: every key known to the
// register catalog is copied, nothing else — there is no per-field code.
package thermostat
