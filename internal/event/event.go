// Package event builds, signs and verifies the four event kinds the client speaks.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/keys"
)

// Kind is a nostr event kind.
type Kind int

const (
	KindMetadata    = Kind(nostr.KindProfileMetadata)
	KindTextNote    = Kind(nostr.KindTextNote)
	KindContactList = Kind(nostr.KindContactList)
	KindReaction    = Kind(nostr.KindReaction)
)

func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindTextNote:
		return "text_note"
	case KindContactList:
		return "contact_list"
	case KindReaction:
		return "reaction"
	default:
		return fmt.Sprintf("kind_%d", int(k))
	}
}

// Known reports whether k is one of the kinds this client handles.
func (k Kind) Known() bool {
	switch k {
	case KindMetadata, KindTextNote, KindContactList, KindReaction:
		return true
	}
	return false
}

// Tag markers used on "e" tags.
const (
	MarkerRoot    = "root"
	MarkerReply   = "reply"
	MarkerMention = "mention"
)

// Reaction contents.
const (
	ReactionLike    = "+"
	ReactionDislike = "-"
)

// Metadata is the kind 0 profile payload.
type Metadata struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
	Nip05   string `json:"nip05,omitempty"`
	Lud16   string `json:"lud16,omitempty"`
}

// ReplyTo points a text note at its parent and, optionally, the thread root.
type ReplyTo struct {
	RootID    string
	ReplyToID string
	RelayURL  string
}

// RepostID references a reposted note.
type RepostID struct {
	ID       string
	RelayURL string
}

// Post is a kind 1 text note. ReplyTo and Repost are optional and may be combined.
type Post struct {
	Msg     string
	ReplyTo *ReplyTo
	Repost  *RepostID
}

// ContactListEntry is one "p" tag of a kind 3 event.
type ContactListEntry struct {
	Pubkey   string
	RelayURL string
	Petname  string
}

/* ------------------------------------------------------------------ *
|  Constructors                                                       |
* -------------------------------------------------------------------*/

// CreateMetadataEvent builds a signed kind 0 event carrying metadata as JSON.
func CreateMetadataEvent(metadata Metadata, kp *keys.KeyPair) (*nostr.Event, error) {
	content, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return build(KindMetadata, nostr.Tags{}, string(content), kp)
}

// CreateTextNoteEvent builds a signed kind 1 note, tagging the reply or repost target.
func CreateTextNoteEvent(post Post, kp *keys.KeyPair) (*nostr.Event, error) {
	tags := nostr.Tags{}
	if r := post.ReplyTo; r != nil {
		if r.RootID != "" {
			tags = append(tags, nostr.Tag{"e", r.RootID, r.RelayURL, MarkerRoot})
		}
		tags = append(tags, nostr.Tag{"e", r.ReplyToID, r.RelayURL, MarkerReply})
	}
	if r := post.Repost; r != nil {
		tags = append(tags, nostr.Tag{"e", r.ID, r.RelayURL, MarkerMention})
	}
	return build(KindTextNote, tags, post.Msg, kp)
}

// CreateReactionEvent builds a signed kind 7 like ("+") or dislike ("-") of targetID.
func CreateReactionEvent(targetID, targetPubkey string, isPositive bool, kp *keys.KeyPair) (*nostr.Event, error) {
	content := ReactionLike
	if !isPositive {
		content = ReactionDislike
	}
	tags := nostr.Tags{
		{"e", targetID},
		{"p", targetPubkey},
	}
	return build(KindReaction, tags, content, kp)
}

// CreateContactListEvent builds a signed kind 3 event with one "p" tag per contact.
func CreateContactListEvent(contacts []ContactListEntry, kp *keys.KeyPair) (*nostr.Event, error) {
	tags := make(nostr.Tags, 0, len(contacts))
	for _, c := range contacts {
		tags = append(tags, nostr.Tag{"p", c.Pubkey, c.RelayURL, c.Petname})
	}
	return build(KindContactList, tags, "", kp)
}

func build(kind Kind, tags nostr.Tags, content string, kp *keys.KeyPair) (*nostr.Event, error) {
	evt := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      int(kind),
		Tags:      tags,
		Content:   content,
	}
	if err := Sign(evt, kp); err != nil {
		return nil, err
	}
	return evt, nil
}

/* ------------------------------------------------------------------ *
|  Integrity                                                          |
* -------------------------------------------------------------------*/

// Sign stamps the pubkey, derives the id from the canonical serialization and signs it.
func Sign(evt *nostr.Event, kp *keys.KeyPair) error {
	if kp == nil || kp.PublicKey() == "" {
		return errors.KeyMaterialError("no key pair", nil)
	}
	evt.PubKey = kp.PublicKey()
	hash := sha256.Sum256(evt.Serialize())
	evt.ID = hex.EncodeToString(hash[:])

	sig, err := kp.Sign(hash)
	if err != nil {
		return err
	}
	evt.Sig = sig
	return nil
}

// Verify checks that the id matches the content and the signature matches the id.
func Verify(evt *nostr.Event) error {
	if evt == nil {
		return errors.EventValidationError("", "nil event")
	}
	if !nostr.IsValid32ByteHex(evt.PubKey) {
		return errors.EventValidationError(evt.ID, "malformed pubkey")
	}
	if id := evt.GetID(); id != evt.ID {
		return errors.EventValidationError(evt.ID, "id does not match content")
	}
	ok, err := evt.CheckSignature()
	if err != nil {
		return errors.EventValidationError(evt.ID, err.Error())
	}
	if !ok {
		return errors.EventValidationError(evt.ID, "bad signature")
	}
	return nil
}
