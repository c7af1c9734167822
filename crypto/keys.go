package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering accounts.
type AddressPrefix string

const (
	// LedgerPrefix tags token holder accounts.
	LedgerPrefix AddressPrefix = "rfl"
)

// Address represents a 20-byte ledger account with a display prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != common.AddressLength {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// FromCommon wraps a go-ethereum address using the ledger prefix.
func FromCommon(addr common.Address) Address {
	return NewAddress(LedgerPrefix, addr.Bytes())
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Common converts the address back into the key type used by the ledger.
func (a Address) Common() common.Address {
	return common.BytesToAddress(a.bytes)
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return Address{}, fmt.Errorf("decoded address has %d bytes", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ParseAccount accepts either a 0x-prefixed hex address or a bech32 address
// and returns the ledger key.
func ParseAccount(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required")
	}
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	decoded, err := DecodeAddress(trimmed)
	if err != nil {
		return common.Address{}, err
	}
	return decoded.Common(), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Account returns the ledger key controlled by the public key.
func (k *PublicKey) Account() common.Address {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func (k *PublicKey) Address() Address {
	return FromCommon(k.Account())
}

// DeriveAddress returns a deterministic address for the supplied label. It is
// used for protocol-owned accounts such as pair and dividend holder addresses.
func DeriveAddress(parts ...[]byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(parts...)[12:])
}
