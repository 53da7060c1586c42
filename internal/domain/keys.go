package domain

import "github.com/Shugur-Network/nostr-client/internal/keys"

// KeyProvider supplies the client identity. It is consulted once, at client construction.
type KeyProvider interface {
	KeyPair() (*keys.KeyPair, error)
}
