// Package filter builds the subscription filters the client sends and checks them before fan-out.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/errors"
	"github.com/Shugur-Network/nostr-client/internal/event"
)

// PostQuery narrows a text note filter. Zero values are left out of the filter.
type PostQuery struct {
	IDs     []string
	Authors []string
	Since   *nostr.Timestamp
	Until   *nostr.Timestamp
	Limit   int
}

// ContactListQuery narrows a contact list filter.
type ContactListQuery struct {
	Since *nostr.Timestamp
	Until *nostr.Timestamp
	Limit int
}

// Profile asks for the newest metadata event of pubkey.
func Profile(pubkey string) nostr.Filter {
	return nostr.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{int(event.KindMetadata)},
		Limit:   constants.ProfileMetadataLimit,
	}
}

// Profiles asks for metadata of many authors.
func Profiles(pubkeys []string) nostr.Filter {
	return nostr.Filter{
		Authors: pubkeys,
		Kinds:   []int{int(event.KindMetadata)},
	}
}

// Posts asks for text notes matching whichever fields of q are set.
func Posts(q PostQuery) nostr.Filter {
	return nostr.Filter{
		IDs:     nonEmpty(q.IDs),
		Authors: nonEmpty(q.Authors),
		Kinds:   []int{int(event.KindTextNote)},
		Since:   q.Since,
		Until:   q.Until,
		Limit:   q.Limit,
	}
}

// Replies asks for text notes referencing any of eventIDs.
func Replies(eventIDs, authors []string) nostr.Filter {
	return nostr.Filter{
		Authors: nonEmpty(authors),
		Kinds:   []int{int(event.KindTextNote)},
		Tags:    nostr.TagMap{"e": eventIDs},
	}
}

// Reactions asks for reactions referencing any of eventIDs.
func Reactions(eventIDs, authors []string) nostr.Filter {
	return nostr.Filter{
		Authors: nonEmpty(authors),
		Kinds:   []int{int(event.KindReaction)},
		Tags:    nostr.TagMap{"e": eventIDs},
	}
}

// ContactList asks for the follow lists published by pubkey.
func ContactList(pubkey string, q ContactListQuery) nostr.Filter {
	return nostr.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{int(event.KindContactList)},
		Since:   q.Since,
		Until:   q.Until,
		Limit:   q.Limit,
	}
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// Validate is a cheap sanity check. An empty filter is valid and matches everything.
func Validate(f nostr.Filter) error {
	for _, id := range f.IDs {
		if !nostr.IsValid32ByteHex(id) {
			return errors.FilterError(fmt.Sprintf("invalid id %q", id))
		}
	}
	for _, author := range f.Authors {
		if !nostr.IsValid32ByteHex(author) {
			return errors.FilterError(fmt.Sprintf("invalid author %q", author))
		}
	}
	for _, kind := range f.Kinds {
		if !event.Kind(kind).Known() {
			return errors.FilterError(fmt.Sprintf("unsupported kind %d", kind))
		}
	}
	for name, values := range f.Tags {
		if name != "e" && name != "p" {
			return errors.FilterError(fmt.Sprintf("unsupported tag filter #%s", name))
		}
		if len(values) == 0 {
			return errors.FilterError(fmt.Sprintf("tag filter #%s has no values", name))
		}
		for _, v := range values {
			if !nostr.IsValid32ByteHex(v) {
				return errors.FilterError(fmt.Sprintf("invalid #%s value %q", name, v))
			}
		}
	}
	if f.Since != nil && f.Until != nil && *f.Since > *f.Until {
		return errors.FilterError("since is after until")
	}
	if f.Limit < 0 {
		return errors.FilterError("negative limit")
	}
	return nil
}

// Encode renders f in wire form. Absent fields are omitted, never null.
func Encode(f nostr.Filter) (json.RawMessage, error) {
	b, err := json.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return b, nil
}
