// Package schedule implements weekly recurring command windows.
//
// A window says "between day/time A and day/time B, hold this command on
// this thermostat". Callers express windows in their own timezone; devices
// run in one fixed operating timezone. The Normalizer converts a caller's
// (day-of-week, hour, minute, timezone) into the canonical operating-zone
// day and clock time, correcting for day-boundary shifts: a Saturday 23:30
// window requested from a zone two hours behind the operating zone is
// canonically a Sunday 01:30 window.
//
// Day numbering is 0=Sunday..6=Saturday everywhere.
//
// Windows for a device are superseded wholesale: a new scheduling request
// first deletes all existing windows for that device, then inserts the
// fresh set. Windows are never merged.
package schedule
