package relay

import (
	"github.com/nbd-wtf/go-nostr"
)

// Message is one inbound notification from a relay connection. The set of
// implementations is closed: Opened, EventReceived, EndOfStoredEvents, Ack,
// Notice, SubscriptionClosed, Closed, TransportError and ProtocolError.
type Message interface {
	RelayURL() string
	message()
}

// Origin identifies the relay a message came from.
type Origin struct {
	URL string
}

func (o Origin) RelayURL() string { return o.URL }
func (Origin) message()           {}

// Opened is emitted once the websocket handshake completed.
type Opened struct {
	Origin
}

// EventReceived carries ["EVENT", subID, event].
type EventReceived struct {
	Origin
	SubID string
	Event *nostr.Event
}

// EndOfStoredEvents carries ["EOSE", subID].
type EndOfStoredEvents struct {
	Origin
	SubID string
}

// Ack carries ["OK", eventID, accepted, reason].
type Ack struct {
	Origin
	EventID  string
	Accepted bool
	Reason   string
}

// Notice carries ["NOTICE", text].
type Notice struct {
	Origin
	Text string
}

// SubscriptionClosed carries ["CLOSED", subID, reason].
type SubscriptionClosed struct {
	Origin
	SubID  string
	Reason string
}

// Closed is always the last message of a connection.
type Closed struct {
	Origin
	Reason string
}

// TransportError reports a socket level failure, after which a Closed message
// follows, or a frame dropped on a full send queue, after which the connection stays open.
type TransportError struct {
	Origin
	Err error
}

// ProtocolError reports an inbound frame that was discarded. The connection stays open.
type ProtocolError struct {
	Origin
	Err error
	Raw []byte
}
