// Package mqtt provides MQTT client connectivity for ThermLink Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// ThermLink uses MQTT as the message bus between the command core and
// the device relays: the core announces command lifecycle events, and
// relays publish acknowledgements that flip ledger records to executed.
//
//	ThermLink Core ↔ MQTT Broker ↔ Device Relays
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all command acknowledgements
//	err = client.Subscribe(mqtt.Topics{}.AllCommandAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Announce a dispatched command
//	topic := mqtt.Topics{}.CommandDispatched("th-living")
//	client.Publish(topic, payload, 1, false)
package mqtt
