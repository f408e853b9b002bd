package dispatch

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/thermlink/thermlink-core/internal/protocol"
	"github.com/thermlink/thermlink-core/internal/thermostat"
)

// Default timeouts for gateway communication.
const (
	// defaultConnectTimeout is the maximum time to wait for a gateway
	// connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for a single frame write.
	defaultWriteTimeout = 5 * time.Second
)

// wireDelimiter separates the address tag, payload and trailer inside
// one gateway message.
const wireDelimiter = "|||"

// wireTrailer marks a forward-to-device message.
const wireTrailer = "send"

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Gateway delivers one frame to one device endpoint.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Deliver(ctx context.Context, ep thermostat.Endpoint, frame protocol.Frame) error
}

// GatewayConfig holds gateway connection configuration.
type GatewayConfig struct {
	// Address is the gateway process's host:port.
	Address string

	// ConnectTimeout is the maximum time to wait for a connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// WriteTimeout is the timeout for writing one message.
	// Default: 5 seconds.
	WriteTimeout time.Duration
}

// GatewayStats holds operational statistics.
type GatewayStats struct {
	FramesTx     uint64
	ErrorsTotal  uint64
	LastActivity time.Time
}

// TCPGateway writes frames to the gateway process over TCP, one
// connection per delivery. Devices roam, so the target ip:port is part
// of each message rather than the connection.
type TCPGateway struct {
	cfg    GatewayConfig
	logger Logger

	framesTx     atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64 // Unix timestamp
}

// Ensure TCPGateway implements Gateway.
var _ Gateway = (*TCPGateway)(nil)

// NewTCPGateway creates a gateway client. No connection is made until
// the first Deliver.
func NewTCPGateway(cfg GatewayConfig) *TCPGateway {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &TCPGateway{cfg: cfg}
}

// SetLogger sets the logger for this gateway.
func (g *TCPGateway) SetLogger(logger Logger) {
	g.logger = logger
}

// Deliver dials the gateway, writes one framed message and closes the
// connection. The message is the hex-rendered frame tagged with the
// device's ip:port:
//
//	<ip:port>|||<frame hex>|||send
func (g *TCPGateway) Deliver(ctx context.Context, ep thermostat.Endpoint, frame protocol.Frame) error {
	dialCtx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", g.cfg.Address)
	if err != nil {
		g.errorsTotal.Add(1)
		return fmt.Errorf("%w: dial %s: %w", ErrDeliveryFailed, g.cfg.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(g.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		g.errorsTotal.Add(1)
		return fmt.Errorf("%w: set deadline: %w", ErrDeliveryFailed, err)
	}

	msg := ep.Addr() + wireDelimiter + frame.Hex() + wireDelimiter + wireTrailer
	if _, err := conn.Write([]byte(msg)); err != nil {
		g.errorsTotal.Add(1)
		return fmt.Errorf("%w: write to %s: %w", ErrDeliveryFailed, ep.Addr(), err)
	}

	g.framesTx.Add(1)
	g.lastActivity.Store(time.Now().Unix())

	if g.logger != nil {
		g.logger.Debug("frame delivered", "endpoint", ep.Addr(), "frame", frame.Hex())
	}
	return nil
}

// Stats returns current operational statistics.
func (g *TCPGateway) Stats() GatewayStats {
	return GatewayStats{
		FramesTx:     g.framesTx.Load(),
		ErrorsTotal:  g.errorsTotal.Load(),
		LastActivity: time.Unix(g.lastActivity.Load(), 0),
	}
}
