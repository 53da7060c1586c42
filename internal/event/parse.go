package event

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// ParsePost reads the reply and repost references of a text note. Unmarked
// "e" tags follow the positional convention: first is root, last is the parent.
func ParsePost(evt *nostr.Event) Post {
	post := Post{Msg: evt.Content}

	var (
		root, reply, mention nostr.Tag
		positional           []nostr.Tag
	)
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		switch marker(tag) {
		case MarkerRoot:
			root = tag
		case MarkerReply:
			reply = tag
		case MarkerMention:
			mention = tag
		default:
			positional = append(positional, tag)
		}
	}

	if root == nil && reply == nil && len(positional) > 0 {
		reply = positional[len(positional)-1]
		if len(positional) > 1 {
			root = positional[0]
		}
	}
	if reply == nil && root != nil {
		reply = root
	}
	if reply != nil {
		r := &ReplyTo{ReplyToID: reply[1], RelayURL: relayHint(reply)}
		if root != nil {
			r.RootID = root[1]
		}
		post.ReplyTo = r
	}
	if mention != nil {
		post.Repost = &RepostID{ID: mention[1], RelayURL: relayHint(mention)}
	}
	return post
}

// ParseMetadata decodes the profile JSON carried in a kind 0 content.
func ParseMetadata(evt *nostr.Event) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal([]byte(evt.Content), &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata of %s: %w", evt.ID, err)
	}
	return m, nil
}

// ParseContacts returns the "p" tags of a kind 3 event. Duplicate pubkeys keep the first entry.
func ParseContacts(evt *nostr.Event) []ContactListEntry {
	seen := make(map[string]struct{}, len(evt.Tags))
	contacts := make([]ContactListEntry, 0, len(evt.Tags))
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != "p" || !nostr.IsValid32ByteHex(tag[1]) {
			continue
		}
		if _, dup := seen[tag[1]]; dup {
			continue
		}
		seen[tag[1]] = struct{}{}
		c := ContactListEntry{Pubkey: tag[1]}
		if len(tag) > 2 {
			c.RelayURL = tag[2]
		}
		if len(tag) > 3 {
			c.Petname = tag[3]
		}
		contacts = append(contacts, c)
	}
	return contacts
}

// ParseReaction returns the reacted-to event id (the last "e" tag) and whether it is a like.
func ParseReaction(evt *nostr.Event) (target string, positive bool) {
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			target = tag[1]
		}
	}
	return target, evt.Content != ReactionDislike
}

func marker(tag nostr.Tag) string {
	if len(tag) > 3 {
		return tag[3]
	}
	return ""
}

func relayHint(tag nostr.Tag) string {
	if len(tag) > 2 {
		return tag[2]
	}
	return ""
}
