package keys

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/Shugur-Network/nostr-client/internal/errors"
)

// KeyPair is a secp256k1 identity. The public key is the x-only BIP-340 form.
type KeyPair struct {
	priv   *btcec.PrivateKey
	pubHex string
}

// Generate creates a fresh random key pair.
func Generate() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.KeyMaterialError("generate private key", err)
	}
	return newKeyPair(priv), nil
}

// FromHex parses a 32-byte hex private key. Malformed hex, a wrong length and
// scalars outside [1, n-1] are rejected.
func FromHex(privHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privHex))
	if err != nil {
		return nil, errors.KeyMaterialError("private key is not hex", err)
	}
	if len(raw) != 32 {
		return nil, errors.KeyMaterialError("private key must be 32 bytes", nil)
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, errors.KeyMaterialError("private key outside the curve order", nil)
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	return newKeyPair(priv), nil
}

func newKeyPair(priv *btcec.PrivateKey) *KeyPair {
	return &KeyPair{
		priv:   priv,
		pubHex: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())),
	}
}

// PublicKey returns the hex x-only public key.
func (k *KeyPair) PublicKey() string { return k.pubHex }

// PrivateKey returns the hex private scalar. Only key providers persist it.
func (k *KeyPair) PrivateKey() string {
	if !k.valid() {
		return ""
	}
	return hex.EncodeToString(k.priv.Serialize())
}

// Sign produces a hex BIP-340 signature over hash.
func (k *KeyPair) Sign(hash [32]byte) (string, error) {
	if !k.valid() {
		return "", errors.KeyMaterialError("key pair has no private key", nil)
	}
	sig, err := schnorr.Sign(k.priv, hash[:])
	if err != nil {
		return "", errors.KeyMaterialError("sign", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// valid is false for a nil or zero KeyPair, which only Generate and FromHex avoid.
func (k *KeyPair) valid() bool { return k != nil && k.priv != nil }

// String never prints the private key.
func (k *KeyPair) String() string { return "KeyPair(" + k.pubHex + ")" }
