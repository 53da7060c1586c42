package client

import (
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/event"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/relay"
)

// forward copies one connection's messages into the shared inbox. After the
// client is cancelled it keeps draining so the connection can finish.
func (c *Client) forward(conn *relay.Conn) {
	defer c.forwarders.Done()
	for m := range conn.Messages() {
		select {
		case c.inbox <- m:
		case <-c.ctx.Done():
		}
	}
}

// dispatch is the only goroutine that handles relay messages.
func (c *Client) dispatch() {
	defer close(c.dispatchDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

func (c *Client) handle(m relay.Message) {
	url := m.RelayURL()
	switch msg := m.(type) {
	case relay.Opened:
		c.log.Info("Relay connected", zap.String("relay", url))

	case relay.EventReceived:
		c.handleEvent(url, msg)

	case relay.EndOfStoredEvents:
		c.handleEOSE(url, msg.SubID)

	case relay.Ack:
		c.handleAck(url, msg)

	case relay.Notice:
		c.log.Info("Relay notice", zap.String("relay", url), zap.String("notice", msg.Text))

	case relay.SubscriptionClosed:
		c.st.unwatch(msg.SubID)
		c.log.Info("Subscription closed by relay",
			zap.String("relay", url),
			zap.String("sub_id", msg.SubID),
			zap.String("reason", msg.Reason),
		)

	case relay.TransportError:
		// already logged and counted by the connection
		c.log.Debug("Relay transport failure", zap.String("relay", url), zap.Error(msg.Err))

	case relay.ProtocolError:
		c.log.Debug("Relay sent a malformed frame", zap.String("relay", url), zap.Error(msg.Err))

	case relay.Closed:
		c.log.Info("Relay disconnected", zap.String("relay", url), zap.String("reason", msg.Reason))
	}
}

func (c *Client) handleEvent(url string, msg relay.EventReceived) {
	evt := msg.Event
	if c.opts.VerifySignatures {
		if err := event.Verify(evt); err != nil {
			metrics.InvalidEvents.Inc()
			if appErr, ok := errors.As(err); ok {
				appErr.WithRelay(url)
			}
			errors.Log(c.log, err)
			return
		}
	} else if len(evt.ID) != 64 {
		metrics.InvalidEvents.Inc()
		c.log.Debug("Dropping event without id", zap.String("relay", url))
		return
	}

	if !c.st.firstSighting(evt.ID) {
		metrics.IncrementDuplicates()
		return
	}

	kind := event.Kind(evt.Kind).String()
	c.log.Debug("Event received",
		zap.String("relay", url),
		zap.String("sub_id", msg.SubID),
		zap.String("event_id", evt.ID),
		zap.String("kind", kind),
	)
	c.processor.Process(evt)
	metrics.IncrementDelivered(kind)
}

func (c *Client) handleEOSE(url, subID string) {
	if c.opts.OnEOSE != nil {
		defer c.opts.OnEOSE(url, subID)
	}
	if !c.st.takeEOSE(subID) {
		return
	}
	metrics.EOSEAutoCloses.Inc()
	metrics.ActiveSubscriptions.Dec()

	conn := c.conn(url)
	if conn == nil {
		return
	}
	if err := conn.Unsubscribe(subID); err != nil {
		c.log.Debug("Failed to queue close after EOSE",
			zap.String("relay", url),
			zap.String("sub_id", subID),
			zap.Error(err),
		)
		return
	}
	c.log.Debug("Closed subscription after EOSE", zap.String("relay", url), zap.String("sub_id", subID))
}

func (c *Client) handleAck(url string, msg relay.Ack) {
	c.st.ack(msg.EventID, url, msg.Accepted, msg.Reason)
	if msg.Accepted {
		metrics.PublishAcks.WithLabelValues("accepted").Inc()
		c.log.Debug("Event accepted", zap.String("relay", url), zap.String("event_id", msg.EventID))
		return
	}
	metrics.PublishAcks.WithLabelValues("rejected").Inc()
	errors.Log(c.log, errors.RelayRejection(url, msg.EventID, msg.Reason))
}
