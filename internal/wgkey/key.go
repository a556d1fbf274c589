// Package wgkey implements the fixed-size Curve25519 key type shared by the
// network fabric and the replicated store schema.
package wgkey

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Size is the length in bytes of a Curve25519 key used by WireGuard.
const Size = 32

// Key is a 32-byte Curve25519 key, stored and compared as raw bytes and
// always exchanged as a base64 string at the edges (config files, the
// replicated store, the wire).
type Key [Size]byte

// New generates a new private key, using wgctrl/wgtypes so the result is
// clamped the way a real WireGuard private key must be (the same
// generation wgctrl itself uses), rather than raw random bytes.
func New() (Key, error) {
	wgKey, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return Key{}, fmt.Errorf("generate private key: %w", err)
	}
	return Key(wgKey), nil
}

// Public derives the public key corresponding to private key k via
// Curve25519 scalar base multiplication, the same derivation `wg pubkey`
// performs.
//
//goland:noinspection GoMixedReceiverTypes
func (k Key) Public() Key {
	return Key(wgtypes.Key(k).PublicKey())
}

// Parse decodes a standard base64-encoded key, as produced by `wg genkey`/
// `wg pubkey` and stored in the server table.
func Parse(s string) (Key, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("invalid base64 key %q: %w", s, err)
	}
	if len(b) != Size {
		return Key{}, fmt.Errorf("invalid key length %d, want %d", len(b), Size)
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

// String returns the standard base64 encoding of the key.
//
//goland:noinspection GoMixedReceiverTypes
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

//goland:noinspection GoMixedReceiverTypes
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

//goland:noinspection GoMixedReceiverTypes
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

//goland:noinspection GoMixedReceiverTypes
func (k Key) IsZero() bool {
	return k == Key{}
}

// SHA256 returns the SHA-256 digest of the key, used to derive the
// management IPv6 address of the owning server.
//
//goland:noinspection GoMixedReceiverTypes
func (k Key) SHA256() [sha256.Size]byte {
	return sha256.Sum256(k[:])
}
