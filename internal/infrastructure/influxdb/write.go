package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandMetric records a command lifecycle event for a thermostat.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - thermostatID: Unique identifier for the unit (e.g., "th-living")
//   - event: Lifecycle event (e.g., "dispatched", "resent", "acknowledged")
//   - name: The command name (e.g., "set_temp", "mode")
//
// Example:
//
//	client.WriteCommandMetric("th-living", "dispatched", "set_temp")
func (c *Client) WriteCommandMetric(thermostatID string, event string, name string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_events",
		map[string]string{
			"thermostat_id": thermostatID,
			"event":         event,
			"command":       name,
		},
		map[string]interface{}{
			"count": int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRegisterMetric records a register value reported by a thermostat.
//
// Used for tracking reported temperature, mode, and other register state
// over time.
//
// Parameters:
//   - thermostatID: Unit identifier
//   - register: Register name (e.g., "set_temp", "internal_temp", "mode")
//   - value: The register value
func (c *Client) WriteRegisterMetric(thermostatID string, register string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"register_state",
		map[string]string{
			"thermostat_id": thermostatID,
			"register":      register,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeliveryMetric records gateway delivery statistics.
//
// Parameters:
//   - gatewayAddr: The gateway address frames are relayed through
//   - framesTx: Cumulative frames transmitted
//   - errorsTotal: Cumulative delivery errors
func (c *Client) WriteDeliveryMetric(gatewayAddr string, framesTx uint64, errorsTotal uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_delivery",
		map[string]string{
			"gateway": gatewayAddr,
		},
		map[string]interface{}{
			"frames_tx":    int64(framesTx),    // #nosec G115 -- counter fits int64
			"errors_total": int64(errorsTotal), // #nosec G115 -- counter fits int64
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
