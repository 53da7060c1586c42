package storage

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/event"
)

// ProfileRecord is one row of profile.
type ProfileRecord struct {
	Pubkey    string `json:"pubkey"`
	EventID   string `json:"event_id"`
	event.Metadata
	CreatedAt nostr.Timestamp `json:"created_at"`
}

// PostRecord is one row of post. Empty references are stored as NULL.
type PostRecord struct {
	ID          string          `json:"id"`
	Pubkey      string          `json:"pubkey"`
	Content     string          `json:"content"`
	ReplyTo     string          `json:"reply_to,omitempty"`
	ReplyToRoot string          `json:"reply_to_root,omitempty"`
	RepostedID  string          `json:"reposted_id,omitempty"`
	RelayURL    string          `json:"relay_url,omitempty"`
	CreatedAt   nostr.Timestamp `json:"created_at"`
}

// ContactListRecord is the follow list of one owner.
type ContactListRecord struct {
	Owner     string
	EventID   string
	CreatedAt nostr.Timestamp
	Contacts  []event.ContactListEntry
}

// ReactionRecord is one row of reaction.
type ReactionRecord struct {
	ID        string
	Pubkey    string
	TargetID  string
	Positive  bool
	CreatedAt nostr.Timestamp
}

func profileRecord(evt *nostr.Event) (ProfileRecord, error) {
	meta, err := event.ParseMetadata(evt)
	if err != nil {
		return ProfileRecord{}, err
	}
	return ProfileRecord{
		Pubkey:    evt.PubKey,
		EventID:   evt.ID,
		Metadata:  meta,
		CreatedAt: evt.CreatedAt,
	}, nil
}

func postRecord(evt *nostr.Event) PostRecord {
	post := event.ParsePost(evt)
	rec := PostRecord{
		ID:        evt.ID,
		Pubkey:    evt.PubKey,
		Content:   post.Msg,
		CreatedAt: evt.CreatedAt,
	}
	if r := post.ReplyTo; r != nil {
		rec.ReplyTo = r.ReplyToID
		rec.ReplyToRoot = r.RootID
		rec.RelayURL = r.RelayURL
	}
	if r := post.Repost; r != nil {
		rec.RepostedID = r.ID
		if rec.RelayURL == "" {
			rec.RelayURL = r.RelayURL
		}
	}
	return rec
}

func contactListRecord(evt *nostr.Event) ContactListRecord {
	return ContactListRecord{
		Owner:     evt.PubKey,
		EventID:   evt.ID,
		CreatedAt: evt.CreatedAt,
		Contacts:  event.ParseContacts(evt),
	}
}

// reactionRecord reports false when the reaction names no target.
func reactionRecord(evt *nostr.Event) (ReactionRecord, bool) {
	target, positive := event.ParseReaction(evt)
	if target == "" {
		return ReactionRecord{}, false
	}
	return ReactionRecord{
		ID:        evt.ID,
		Pubkey:    evt.PubKey,
		TargetID:  target,
		Positive:  positive,
		CreatedAt: evt.CreatedAt,
	}, true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromNullable(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
