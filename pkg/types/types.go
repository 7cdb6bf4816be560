// Package types defines the primitive identifiers shared across zkdrop
// components: hashes, account addresses, and the group/airdrop id types.
package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// HashLength is the byte length of a Hash.
	HashLength = 32

	// AddressLength is the byte length of an Address.
	AddressLength = 20
)

// Hash is a 32-byte value: a membership root, a nullifier hash, or any
// other field-sized digest.
type Hash [HashLength]byte

// Address is a 20-byte account identifier. Tokens are identified by the
// address of their ledger contract.
type Address [AddressLength]byte

// BytesToHash converts bytes to a Hash, left-padding if shorter than 32
// bytes and keeping the rightmost 32 bytes if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash parses a hex string (with or without 0x prefix) into a Hash.
func HexToHash(s string) (Hash, error) {
	b, err := fromHex(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) > HashLength {
		return Hash{}, fmt.Errorf("parse hash: %d bytes exceeds %d", len(b), HashLength)
	}
	return BytesToHash(b), nil
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex representation of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	*h = Hash{}
	copy(h[HashLength-len(b):], b)
}

// IsZero reports whether the hash is all zeros.
func (h Hash) IsZero() bool { return h == Hash{} }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// BytesToAddress converts bytes to an Address, left-padding if shorter
// than 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress parses a hex string (with or without 0x prefix) into an
// Address.
func HexToAddress(s string) (Address, error) {
	b, err := fromHex(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	if len(b) > AddressLength {
		return Address{}, fmt.Errorf("parse address: %d bytes exceeds %d", len(b), AddressLength)
	}
	return BytesToAddress(b), nil
}

// Bytes returns the byte representation of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the 0x-prefixed hex representation of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// SetBytes sets the address from a byte slice, left-padding if necessary.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	*a = Address{}
	copy(a[AddressLength-len(b):], b)
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool { return a == Address{} }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// GroupID identifies a membership group.
type GroupID uint64

// String implements fmt.Stringer.
func (g GroupID) String() string { return strconv.FormatUint(uint64(g), 10) }

// AirdropID identifies an airdrop record. Ids are assigned sequentially
// starting at 1; zero is never a valid id.
type AirdropID uint64

// String implements fmt.Stringer.
func (a AirdropID) String() string { return strconv.FormatUint(uint64(a), 10) }

// ParseAirdropID parses a decimal airdrop id.
func ParseAirdropID(s string) (AirdropID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse airdrop id %q: %w", s, err)
	}
	return AirdropID(n), nil
}

func fromHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
