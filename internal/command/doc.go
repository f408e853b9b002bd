// Package command is the append-only ledger of issued thermostat commands.
//
// Every encoded frame handed to the dispatcher gets one ledger record:
// who asked for it, which device, which attribute, the exact frame in hex,
// and whether the device has acknowledged it. The executed flag is the only
// mutable field; it is flipped by the acknowledgement path or inspected by
// the resend check. Records are never deleted by the core — the ledger is
// the audit trail and the source of truth for resend decisions.
package command
