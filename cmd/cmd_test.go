package main

import (
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/event"
)

var (
	alice = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
)

func TestMergeContactsKeepsOrderAndSkipsKnown(t *testing.T) {
	current := []event.ContactListEntry{{Pubkey: alice, Petname: "al"}}
	merged := mergeContacts(current, []string{alice, bob, bob})

	assert.Equal(t, []event.ContactListEntry{
		{Pubkey: alice, Petname: "al"},
		{Pubkey: bob},
	}, merged)
	assert.Len(t, current, 1)
}

func TestCollectorLatest(t *testing.T) {
	c := &collector{}
	c.Process(&nostr.Event{ID: "1", PubKey: alice, Kind: 0, CreatedAt: 10})
	c.Process(&nostr.Event{ID: "2", PubKey: alice, Kind: 0, CreatedAt: 30})
	c.Process(&nostr.Event{ID: "3", PubKey: alice, Kind: 0, CreatedAt: 20})
	c.Process(&nostr.Event{ID: "4", PubKey: bob, Kind: 0, CreatedAt: 40})

	assert.Equal(t, "2", c.latest(0, alice).ID)
	assert.Nil(t, c.latest(3, alice))
	assert.Len(t, c.all(), 4)
}

func TestAckLine(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "no answer", ackLine(client.AckStatus{Pending: true}))
	assert.Equal(t, "accepted 03:04:05", ackLine(client.AckStatus{Accepted: true, At: at}))
	assert.Equal(t, "rejected: blocked: spam", ackLine(client.AckStatus{Reason: "blocked: spam"}))
}

func TestCheckHex(t *testing.T) {
	assert.NoError(t, checkHex("pubkey", alice))
	assert.Error(t, checkHex("pubkey", "abc"))
}

func TestSkipConfigCommands(t *testing.T) {
	assert.True(t, skipConfig["version"])
	assert.True(t, skipConfig["keygen"])
	assert.False(t, skipConfig["start"])
}
