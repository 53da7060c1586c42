package relay

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrames(t *testing.T) {
	req, err := encodeReq("abc", []nostr.Filter{{Kinds: []int{1}}, {Limit: 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `["REQ","abc",{"kinds":[1]},{"limit":5}]`, string(req))

	closeFrame, err := encodeClose("abc")
	require.NoError(t, err)
	assert.JSONEq(t, `["CLOSE","abc"]`, string(closeFrame))
}

func TestDecodeOptionalFields(t *testing.T) {
	ack, ok := decodeFrame("wss://r", []byte(`["OK","e1",true]`)).(Ack)
	require.True(t, ok)
	assert.True(t, ack.Accepted)
	assert.Empty(t, ack.Reason)

	closed, ok := decodeFrame("wss://r", []byte(`["CLOSED","s1"]`)).(SubscriptionClosed)
	require.True(t, ok)
	assert.Equal(t, "s1", closed.SubID)
}

func TestDecodeRejects(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`[]`,
		`["EOSE"]`,
		`[1,"x"]`,
		`["EVENT","s"]`,
		`["OK","e1","yes"]`,
		`["NOTICE",7]`,
		`["AUTH","challenge"]`,
	} {
		_, ok := decodeFrame("wss://r", []byte(raw)).(ProtocolError)
		assert.Truef(t, ok, "expected protocol error for %s", raw)
	}
}
