package models

import (
	"strings"

	"github.com/stellar/go/strkey"
)

// Identity is a Stellar address identifying a party or a custodial balance.
// Callers are ed25519 account addresses (G...); campaign escrow vaults are
// contract addresses (C...).
type Identity string

// UnsetIdentity marks a role that has not been assigned yet. It never
// parses as a valid identity.
const UnsetIdentity Identity = ""

// ParseIdentity validates an account address supplied by a caller
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if !strkey.IsValidEd25519PublicKey(s) {
		return UnsetIdentity, ErrInvalidIdentity
	}
	return Identity(s), nil
}

// MustParseIdentity is ParseIdentity for trusted constants and tests
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsUnset reports whether the identity is the unset sentinel
func (id Identity) IsUnset() bool {
	return id == UnsetIdentity
}

// PublicKey returns the raw 32-byte ed25519 key of an account identity
func (id Identity) PublicKey() ([]byte, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, string(id))
	if err != nil {
		return nil, ErrInvalidIdentity
	}
	return raw, nil
}

func (id Identity) String() string {
	return string(id)
}
