// Package protocol implements the ThermLink thermostat wire protocol.
//
// Thermostats are controlled through fixed-length binary frames. Two frame
// layouts exist per protocol generation:
//
//   - Individual command: 11 bytes, one register/value pair per frame.
//   - Settings block: 29 bytes, many attributes at fixed byte offsets,
//     used for bulk configuration.
//
// Both layouts share the two-byte header F1 F2, a command byte (A1 for
// individual writes, B1 for a read-all request, 03 for settings blocks),
// an additive modulo-256 checksum, and the two-byte footer FE FF.
//
// The package also carries the register catalog: the static bidirectional
// mapping from attribute names (set_temp, mode, differential, ...) to
// protocol register codes and settings-block byte offsets. The catalog is
// fixed at process start and versioned with the protocol generation; there
// are no mutation operations.
//
// Encoding is pure and side-effect free. Range validation of attribute
// values is the caller's concern; the encoder truncates values to a single
// byte and never fails on numeric input.
package protocol
