package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/thermlink/thermlink-core/internal/command"
	"github.com/thermlink/thermlink-core/internal/protocol"
	"github.com/thermlink/thermlink-core/internal/thermostat"
)

// defaultRecheckWait is the fixed wait before a resend check reads the
// ledger.
const defaultRecheckWait = 5 * time.Second

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// delayedSend is one queued frame awaiting its due time.
type delayedSend struct {
	due      time.Time
	seq      uint64 // submission order, tie-break for equal due times
	endpoint thermostat.Endpoint
	frame    protocol.Frame
}

// sendQueue is a min-heap ordered by (due, seq).
type sendQueue []delayedSend

func (q sendQueue) Len() int { return len(q) }

func (q sendQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q sendQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *sendQueue) Push(x any) { *q = append(*q, x.(delayedSend)) }

func (q *sendQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Dispatcher sends frames through a Gateway, immediately or after a
// delay. A single worker drains the delay queue, so delayed sends with
// equal delays go out in submission order.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Dispatcher struct {
	gw     Gateway
	ledger command.Ledger
	logger Logger

	recheckWait time.Duration

	mu    sync.Mutex
	queue sendQueue
	seq   uint64
	wake  chan struct{}

	done *closeOnce
	wg   sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecheckWait overrides the fixed wait used by CheckAndResend.
func WithRecheckWait(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.recheckWait = d }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l Logger) Option {
	return func(dp *Dispatcher) { dp.logger = l }
}

// NewDispatcher creates a Dispatcher and starts its delay-queue worker.
// Call Close to stop it.
func NewDispatcher(gw Gateway, ledger command.Ledger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gw:          gw,
		ledger:      ledger,
		recheckWait: defaultRecheckWait,
		wake:        make(chan struct{}, 1),
		done:        newCloseOnce(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.worker()
	return d
}

// Send delivers a frame immediately, blocking until the gateway write
// completes or fails.
func (d *Dispatcher) Send(ctx context.Context, ep thermostat.Endpoint, frame protocol.Frame) error {
	if d.isClosed() {
		return ErrClosed
	}
	return d.gw.Deliver(ctx, ep, frame)
}

// SendAfter schedules a frame for delivery once delay elapses. It never
// blocks the caller. Frames queued with equal delays are delivered in
// the order they were submitted.
func (d *Dispatcher) SendAfter(ep thermostat.Endpoint, frame protocol.Frame, delay time.Duration) error {
	if d.isClosed() {
		return ErrClosed
	}

	d.mu.Lock()
	d.seq++
	heap.Push(&d.queue, delayedSend{
		due:      time.Now().Add(delay),
		seq:      d.seq,
		endpoint: ep,
		frame:    frame,
	})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// CheckAndResend waits the configured recheck interval, then reloads
// the ledger record; if it is still unexecuted the frame is delivered
// once more. Reports whether a resend happened. At most one resend per
// call — there is no retry loop.
func (d *Dispatcher) CheckAndResend(ctx context.Context, commandID string, ep thermostat.Endpoint) (bool, error) {
	timer := time.NewTimer(d.recheckWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-d.done.Done():
		return false, ErrClosed
	case <-timer.C:
	}

	rec, err := d.ledger.GetByID(ctx, commandID)
	if err != nil {
		return false, err
	}
	if rec.Executed {
		return false, nil
	}

	frame, err := protocol.FrameFromHex(rec.Frame)
	if err != nil {
		return false, err
	}
	if err := d.gw.Deliver(ctx, ep, frame); err != nil {
		return false, err
	}

	if d.logger != nil {
		d.logger.Info("command resent",
			"command_id", commandID,
			"thermostat_id", rec.ThermostatID,
			"endpoint", ep.Addr())
	}
	return true, nil
}

// worker drains the delay queue, sleeping until the earliest due time
// or until a new send is queued.
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		var wait time.Duration
		if len(d.queue) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(d.queue[0].due)
		}
		d.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-d.done.Done():
				timer.Stop()
				return
			case <-d.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 || d.queue[0].due.After(time.Now()) {
				d.mu.Unlock()
				break
			}
			item := heap.Pop(&d.queue).(delayedSend)
			d.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout+defaultWriteTimeout)
			if err := d.gw.Deliver(ctx, item.endpoint, item.frame); err != nil && d.logger != nil {
				d.logger.Error("delayed delivery failed",
					"endpoint", item.endpoint.Addr(), "error", err)
			}
			cancel()
		}
	}
}

// isClosed returns true if the dispatcher has been closed.
func (d *Dispatcher) isClosed() bool {
	select {
	case <-d.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the delay-queue worker. Frames still queued are dropped;
// a queued frame that never went out stays unexecuted in the ledger and
// surfaces through the next resend check. Safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.done.Close()
	d.wg.Wait()
	return nil
}
