package domain

import nostr "github.com/nbd-wtf/go-nostr"

// Subscriptions is the slice of the client the subscriber layer needs.
type Subscriptions interface {
	Subscribe(filters []nostr.Filter, unsubscribeOnEOSE bool) []string
	Unsubscribe(ids []string)
}
