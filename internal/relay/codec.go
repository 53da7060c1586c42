package relay

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/filter"
)

// Frame labels
const (
	LabelEvent  = "EVENT"
	LabelReq    = "REQ"
	LabelClose  = "CLOSE"
	LabelEOSE   = "EOSE"
	LabelOK     = "OK"
	LabelNotice = "NOTICE"
	LabelClosed = "CLOSED"
)

// encodeEvent builds ["EVENT", event].
func encodeEvent(evt *nostr.Event) ([]byte, error) {
	return json.Marshal([]interface{}{LabelEvent, evt})
}

// encodeReq builds ["REQ", subID, filter...].
func encodeReq(subID string, filters []nostr.Filter) ([]byte, error) {
	frame := make([]interface{}, 0, len(filters)+2)
	frame = append(frame, LabelReq, subID)
	for _, f := range filters {
		raw, err := filter.Encode(f)
		if err != nil {
			return nil, err
		}
		frame = append(frame, raw)
	}
	return json.Marshal(frame)
}

// encodeClose builds ["CLOSE", subID].
func encodeClose(subID string) ([]byte, error) {
	return json.Marshal([]interface{}{LabelClose, subID})
}

// decodeFrame turns an inbound text frame into a typed message. Anything that
// does not fit the protocol becomes a ProtocolError.
func decodeFrame(url string, raw []byte) Message {
	origin := Origin{URL: url}
	fail := func(reason string) Message {
		return ProtocolError{Origin: origin, Err: errors.ProtocolError(url, reason), Raw: raw}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return fail("malformed JSON")
	}
	if len(arr) < 2 {
		return fail(fmt.Sprintf("short frame of %d elements", len(arr)))
	}

	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return fail("label is not a string")
	}

	switch label {
	case LabelEvent:
		if len(arr) < 3 {
			return fail("EVENT without event")
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return fail("EVENT subscription id is not a string")
		}
		evt := &nostr.Event{}
		if err := json.Unmarshal(arr[2], evt); err != nil {
			return fail("EVENT payload: " + err.Error())
		}
		return EventReceived{Origin: origin, SubID: subID, Event: evt}

	case LabelEOSE:
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return fail("EOSE subscription id is not a string")
		}
		return EndOfStoredEvents{Origin: origin, SubID: subID}

	case LabelOK:
		if len(arr) < 3 {
			return fail("OK without status")
		}
		ack := Ack{Origin: origin}
		if err := json.Unmarshal(arr[1], &ack.EventID); err != nil {
			return fail("OK event id is not a string")
		}
		if err := json.Unmarshal(arr[2], &ack.Accepted); err != nil {
			return fail("OK status is not a boolean")
		}
		if len(arr) > 3 {
			_ = json.Unmarshal(arr[3], &ack.Reason)
		}
		return ack

	case LabelNotice:
		var text string
		if err := json.Unmarshal(arr[1], &text); err != nil {
			return fail("NOTICE text is not a string")
		}
		return Notice{Origin: origin, Text: text}

	case LabelClosed:
		closed := SubscriptionClosed{Origin: origin}
		if err := json.Unmarshal(arr[1], &closed.SubID); err != nil {
			return fail("CLOSED subscription id is not a string")
		}
		if len(arr) > 2 {
			_ = json.Unmarshal(arr[2], &closed.Reason)
		}
		return closed

	default:
		return fail(fmt.Sprintf("unknown label %q", label))
	}
}
