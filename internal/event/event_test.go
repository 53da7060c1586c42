package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/keys"
)

func testKeys(t *testing.T) *keys.KeyPair {
	t.Helper()
	kp, err := keys.FromHex("0000000000000000000000000000000000000000000000000000000000000003")
	require.NoError(t, err)
	return kp
}

func TestTextNoteIntegrity(t *testing.T) {
	kp := testKeys(t)

	evt, err := CreateTextNoteEvent(Post{Msg: "hello"}, kp)
	require.NoError(t, err)

	assert.Equal(t, int(KindTextNote), evt.Kind)
	assert.Equal(t, kp.PublicKey(), evt.PubKey)
	assert.Empty(t, evt.Tags)

	canonical, err := json.Marshal([]any{0, evt.PubKey, evt.CreatedAt, evt.Kind, []any{}, evt.Content})
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	assert.Equal(t, hex.EncodeToString(sum[:]), evt.ID)

	require.NoError(t, Verify(evt))
}

func TestVerifyRejectsTampering(t *testing.T) {
	kp := testKeys(t)

	tests := map[string]func(e *nostr.Event){
		"content": func(e *nostr.Event) { e.Content = "goodbye" },
		"id":      func(e *nostr.Event) { e.ID = e.ID[:63] + flip(e.ID[63]) },
		"sig":     func(e *nostr.Event) { e.Sig = e.Sig[:127] + flip(e.Sig[127]) },
		"pubkey":  func(e *nostr.Event) { e.PubKey = "nope" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			evt, err := CreateTextNoteEvent(Post{Msg: "hello"}, kp)
			require.NoError(t, err)
			mutate(evt)

			err = Verify(evt)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

func TestReplyAndRepostTags(t *testing.T) {
	kp := testKeys(t)
	post := Post{
		Msg:     "agreed",
		ReplyTo: &ReplyTo{RootID: "root1", ReplyToID: "parent1", RelayURL: "wss://r.example"},
		Repost:  &RepostID{ID: "quoted1", RelayURL: "wss://q.example"},
	}

	evt, err := CreateTextNoteEvent(post, kp)
	require.NoError(t, err)

	assert.Equal(t, nostr.Tags{
		{"e", "root1", "wss://r.example", "root"},
		{"e", "parent1", "wss://r.example", "reply"},
		{"e", "quoted1", "wss://q.example", "mention"},
	}, evt.Tags)

	parsed := ParsePost(evt)
	assert.Equal(t, post.Msg, parsed.Msg)
	require.NotNil(t, parsed.ReplyTo)
	assert.Equal(t, *post.ReplyTo, *parsed.ReplyTo)
	require.NotNil(t, parsed.Repost)
	assert.Equal(t, *post.Repost, *parsed.Repost)
}

func TestReplyWithoutRootOmitsRootTag(t *testing.T) {
	evt, err := CreateTextNoteEvent(Post{
		Msg:     "hi",
		ReplyTo: &ReplyTo{ReplyToID: "parent1", RelayURL: "wss://r.example"},
	}, testKeys(t))
	require.NoError(t, err)

	require.Len(t, evt.Tags, 1)
	assert.Equal(t, "reply", evt.Tags[0][3])
}

func TestParsePostPositionalTags(t *testing.T) {
	evt := &nostr.Event{Kind: 1, Tags: nostr.Tags{{"e", "root1"}, {"p", "x"}, {"e", "parent1"}}}

	post := ParsePost(evt)
	require.NotNil(t, post.ReplyTo)
	assert.Equal(t, "root1", post.ReplyTo.RootID)
	assert.Equal(t, "parent1", post.ReplyTo.ReplyToID)
	assert.Nil(t, post.Repost)
}

func TestReactionEvent(t *testing.T) {
	kp := testKeys(t)

	like, err := CreateReactionEvent("target1", "author1", true, kp)
	require.NoError(t, err)
	assert.Equal(t, "+", like.Content)
	assert.Equal(t, nostr.Tags{{"e", "target1"}, {"p", "author1"}}, like.Tags)

	target, positive := ParseReaction(like)
	assert.Equal(t, "target1", target)
	assert.True(t, positive)

	dislike, err := CreateReactionEvent("target1", "author1", false, kp)
	require.NoError(t, err)
	_, positive = ParseReaction(dislike)
	assert.False(t, positive)
}

func TestContactListEvent(t *testing.T) {
	kp := testKeys(t)
	friend := kp.PublicKey()
	contacts := []ContactListEntry{
		{Pubkey: friend, RelayURL: "wss://r.example", Petname: "me"},
		{Pubkey: friend},
	}

	evt, err := CreateContactListEvent(contacts, kp)
	require.NoError(t, err)
	assert.Equal(t, int(KindContactList), evt.Kind)
	assert.Equal(t, "", evt.Content)
	assert.Equal(t, nostr.Tag{"p", friend, "wss://r.example", "me"}, evt.Tags[0])

	// duplicates collapse to the first entry
	assert.Equal(t, contacts[:1], ParseContacts(evt))
}

func TestMetadataEvent(t *testing.T) {
	kp := testKeys(t)
	meta := Metadata{Name: "kai", About: "nostr dev", Lud16: "kai@example.com"}

	evt, err := CreateMetadataEvent(meta, kp)
	require.NoError(t, err)
	assert.Equal(t, int(KindMetadata), evt.Kind)
	assert.JSONEq(t, `{"name":"kai","about":"nostr dev","lud16":"kai@example.com"}`, evt.Content)
	require.NoError(t, Verify(evt))

	parsed, err := ParseMetadata(evt)
	require.NoError(t, err)
	assert.Equal(t, meta, parsed)
}

func TestSignWithoutKeys(t *testing.T) {
	_, err := CreateTextNoteEvent(Post{Msg: "x"}, nil)
	require.Error(t, err)
}

func TestZeroKeyPairFailsInsteadOfPanicking(t *testing.T) {
	evt, err := CreateTextNoteEvent(Post{Msg: "hello"}, &keys.KeyPair{})
	require.Error(t, err)
	assert.Nil(t, evt)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "reaction", KindReaction.String())
	assert.Equal(t, "kind_42", Kind(42).String())
	assert.True(t, KindContactList.Known())
	assert.False(t, Kind(42).Known())
}
