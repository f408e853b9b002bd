package schedule

import (
	"fmt"
	"time"

	"github.com/thermlink/thermlink-core/internal/protocol"
)

// Window is one stored schedule entry: a command held on a thermostat
// between two canonical day/time boundaries.
type Window struct {
	ID           int64  `json:"id"`
	ThermostatID string `json:"thermostat_id"`
	UserID       string `json:"user_id"`

	// Name and Value identify the scheduled command; Frame is its
	// pre-encoded wire form, ready for dispatch when the window fires.
	Name  string `json:"name"`
	Value int    `json:"value"`
	Frame string `json:"frame"`

	// Canonical boundaries in the operating timezone.
	StartDay  int    `json:"start_day"` // 0=Sunday..6=Saturday
	StartTime string `json:"start_time"`
	EndDay    int    `json:"end_day"`
	EndTime   string `json:"end_time"`

	// Timezone is the caller's original zone, kept for audit and display
	// only; delivery decisions use the canonical boundaries.
	Timezone string `json:"timezone"`

	CreatedAt time.Time `json:"created_at"`
}

// Request is one inbound scheduling entry, expressed in the caller's
// timezone. The API layer validates ranges before the core sees it.
type Request struct {
	ThermostatID string
	UserID       string

	CommandName  string
	CommandValue int

	// Offset carries the compound sign/magnitude pair when the scheduled
	// command targets the temperature-offset register; CommandName and
	// CommandValue are ignored in that case.
	Offset *protocol.OffsetValue

	Day         int // 0=Sunday..6=Saturday, caller-local
	EndDay      int
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int

	Timezone string
}

// Plan normalizes a request's boundaries and encodes its command frame,
// producing the Window to store. Deterministic given now.
func (n *Normalizer) Plan(now time.Time, req Request) (Window, error) {
	c, err := n.NormalizeWindow(now,
		req.Day, req.StartHour, req.StartMinute,
		req.EndDay, req.EndHour, req.EndMinute,
		req.Timezone)
	if err != nil {
		return Window{}, err
	}

	var (
		frame protocol.Frame
		name  string
		value int
	)
	if req.Offset != nil {
		frame = protocol.EncodeOffset(*req.Offset)
		name = protocol.OffsetName
		value = int(req.Offset.Encode())
	} else {
		code, err := protocol.Registers.Resolve(req.CommandName)
		if err != nil {
			return Window{}, fmt.Errorf("planning schedule window: %w", err)
		}
		frame = protocol.EncodeIndividual(code, req.CommandValue)
		name = req.CommandName
		value = req.CommandValue
	}

	return Window{
		ThermostatID: req.ThermostatID,
		UserID:       req.UserID,
		Name:         name,
		Value:        value,
		Frame:        frame.Hex(),
		StartDay:     c.StartDay,
		StartTime:    c.StartTime,
		EndDay:       c.EndDay,
		EndTime:      c.EndTime,
		Timezone:     req.Timezone,
	}, nil
}
