package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
)

// State of a relay connection. Transitions only move forward.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotWritable is returned when a frame is queued on a closing or closed connection.
var ErrNotWritable = stderrors.New("relay connection is closing or closed")

// Options tune a single relay connection.
type Options struct {
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	SendQueueSize int
	ReadLimit     int64
	// PublishRate caps outbound frames per second. Zero disables the limit.
	PublishRate  float64
	PublishBurst int
	// MessageBuffer sizes the inbound message channel.
	MessageBuffer int
	Dialer        *websocket.Dialer
	Header        http.Header
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = constants.DefaultDialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = constants.DefaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = constants.DefaultPingInterval
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = constants.DefaultSendQueueSize
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = constants.DefaultReadLimit
	}
	if o.MessageBuffer <= 0 {
		o.MessageBuffer = constants.DefaultInboxBufferSize
	}
	if o.PublishBurst <= 0 {
		o.PublishBurst = 1
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

type outbound struct {
	label string
	data  []byte
}

// Conn is one websocket to one relay. A reader goroutine decodes inbound
// frames onto Messages and a writer goroutine drains the send queue.
type Conn struct {
	url  string
	opts Options
	log  *zap.Logger

	state   atomic.Int32
	sendq   chan outbound
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	msgs       chan Message
	emitMu     sync.RWMutex
	msgsClosed bool

	closeOnce         sync.Once
	transportReported atomic.Bool
	closeReason       atomic.Value
	done              chan struct{}
}

// Dial starts connecting to url in the background and returns immediately.
// Frames queued before the handshake completes are flushed once it does.
// The caller must drain Messages until it is closed.
func Dial(ctx context.Context, url string, opts Options) *Conn {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.PublishRate > 0 {
		limit = rate.Limit(opts.PublishRate)
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		url:     url,
		opts:    opts,
		log:     logger.ForRelay("relay", url),
		sendq:   make(chan outbound, opts.SendQueueSize),
		limiter: rate.NewLimiter(limit, opts.PublishBurst),
		ctx:     connCtx,
		cancel:  cancel,
		msgs:    make(chan Message, opts.MessageBuffer),
		done:    make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	go c.run()
	return c
}

// URL returns the relay address.
func (c *Conn) URL() string { return c.url }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Messages returns the inbound message channel. It is closed after the Closed message.
func (c *Conn) Messages() <-chan Message { return c.msgs }

// Done is closed once the connection reached its final state.
func (c *Conn) Done() <-chan struct{} { return c.done }

/* ------------------------------------------------------------------ *
|  Outbound verbs                                                     |
* -------------------------------------------------------------------*/

// Publish queues ["EVENT", evt].
func (c *Conn) Publish(evt *nostr.Event) error {
	data, err := encodeEvent(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return c.enqueue(LabelEvent, data)
}

// Subscribe queues ["REQ", subID, filters...].
func (c *Conn) Subscribe(subID string, filters ...nostr.Filter) error {
	data, err := encodeReq(subID, filters)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.enqueue(LabelReq, data)
}

// Unsubscribe queues ["CLOSE", subID].
func (c *Conn) Unsubscribe(subID string) error {
	data, err := encodeClose(subID)
	if err != nil {
		return fmt.Errorf("encode close: %w", err)
	}
	return c.enqueue(LabelClose, data)
}

// enqueue never blocks. A full queue drops the frame and reports a transport error.
func (c *Conn) enqueue(label string, data []byte) error {
	switch c.State() {
	case StateClosing, StateClosed:
		return ErrNotWritable
	}

	select {
	case c.sendq <- outbound{label: label, data: data}:
		return nil
	default:
		metrics.SendQueueDrops.Inc()
		err := errors.TransportError(c.url, "enqueue", fmt.Errorf("send queue full, %s frame dropped", label))
		c.tryEmit(TransportError{Origin: c.origin(), Err: err})
		return err
	}
}

// Close sends a polite close frame and tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeWith("closed by client")
}

func (c *Conn) closeWith(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason.Store(reason)
		for {
			cur := c.state.Load()
			if State(cur) == StateClosed {
				break
			}
			if c.state.CompareAndSwap(cur, int32(StateClosing)) {
				break
			}
		}
		c.cancel()
	})
}

/* ------------------------------------------------------------------ *
|  Lifecycle                                                          |
* -------------------------------------------------------------------*/

func (c *Conn) run() {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.opts.DialTimeout)
	ws, resp, err := c.opts.Dialer.DialContext(dialCtx, c.url, c.opts.Header)
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if c.ctx.Err() != nil {
			// aborted by Close, not a relay failure
			c.finish(c.reason())
			return
		}
		metrics.RelayDialFailures.Inc()
		c.reportTransport("dial", err)
		c.finish("dial failed")
		return
	}

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		// closed while the handshake was in flight
		_ = ws.Close()
		c.finish(c.reason())
		return
	}
	metrics.RelaysOpen.Inc()
	c.log.Debug("Relay connection open")
	c.emit(Opened{Origin: c.origin()})

	pongWait := c.opts.PingInterval * constants.PongWaitFactor
	ws.SetReadLimit(c.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ws)
	}()

	c.readLoop(ws, pongWait)

	// reader is gone; make sure the writer stops too
	c.cancel()
	<-writerDone
	_ = ws.Close()
	metrics.RelaysOpen.Dec()
	c.finish(c.reason())
}

func (c *Conn) readLoop(ws *websocket.Conn, pongWait time.Duration) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.reportTransport("read", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		msg := decodeFrame(c.url, raw)
		if perr, ok := msg.(ProtocolError); ok {
			metrics.ProtocolErrors.Inc()
			errors.Log(c.log, perr.Err)
		} else {
			metrics.RelayFramesReceived.WithLabelValues(frameLabel(msg)).Inc()
		}
		c.emit(msg)
	}
}

func (c *Conn) writeLoop(ws *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.politeClose(ws)
			return

		case frame := <-c.sendq:
			if err := c.limiter.Wait(c.ctx); err != nil {
				c.politeClose(ws)
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, frame.data); err != nil {
				c.reportTransport("write", err)
				_ = ws.Close()
				return
			}
			metrics.RelayFramesSent.WithLabelValues(frame.label).Inc()

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.reportTransport("ping", err)
				_ = ws.Close()
				return
			}
		}
	}
}

// politeClose sends a close frame and gives the relay a moment to answer
// before the socket is torn down.
func (c *Conn) politeClose(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.reason())
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(constants.CloseGracePeriod))
	time.AfterFunc(constants.CloseGracePeriod, func() { _ = ws.Close() })
}

func (c *Conn) reportTransport(op string, cause error) {
	if !c.transportReported.CompareAndSwap(false, true) {
		return
	}
	metrics.TransportErrors.Inc()
	err := errors.TransportError(c.url, op, cause)
	errors.Log(c.log, err)
	c.closeReason.Store(fmt.Sprintf("%s failed: %v", op, cause))
	c.emit(TransportError{Origin: c.origin(), Err: err})
}

func (c *Conn) finish(reason string) {
	c.state.Store(int32(StateClosed))
	c.cancel()
	c.log.Debug("Relay connection closed", zap.String("reason", reason))
	c.emit(Closed{Origin: c.origin(), Reason: reason})

	c.emitMu.Lock()
	c.msgsClosed = true
	close(c.msgs)
	c.emitMu.Unlock()
	close(c.done)
}

/* ------------------------------------------------------------------ *
|  Helpers                                                            |
* -------------------------------------------------------------------*/

// emit blocks until the consumer accepts m. Used by the connection's own goroutines.
func (c *Conn) emit(m Message) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.msgsClosed {
		return
	}
	c.msgs <- m
}

// tryEmit is used from caller goroutines, which must never block.
func (c *Conn) tryEmit(m Message) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.msgsClosed {
		return
	}
	select {
	case c.msgs <- m:
	default:
		c.log.Warn("Message channel full, dropping notification")
	}
}

func (c *Conn) origin() Origin { return Origin{URL: c.url} }

func (c *Conn) reason() string {
	if r, ok := c.closeReason.Load().(string); ok {
		return r
	}
	return "connection closed"
}

func frameLabel(m Message) string {
	switch m.(type) {
	case EventReceived:
		return LabelEvent
	case EndOfStoredEvents:
		return LabelEOSE
	case Ack:
		return LabelOK
	case Notice:
		return LabelNotice
	case SubscriptionClosed:
		return LabelClosed
	default:
		return "other"
	}
}
