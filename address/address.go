// Package address implements the canonical Monero-style address value type
// consumed throughout the wallet pool supervisor: a base58 string plus the
// network it belongs to.
//
// Per the supervisor's design, the real address format (subaddresses,
// integrated addresses, the network's exact Keccak-based checksum) is an
// external collaborator's concern — this package only needs to produce and
// classify a canonical string consistently within one process. It mirrors
// the real Monero address layout (network-tag byte, two 32-byte keys, 4-byte
// checksum, monero-style block base58) closely enough to read the same way
// a production decoder would, substituting a simpler checksum.
package address

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/opd-ai/moneroger/errors"
)

// Network identifies which Monero network an Address belongs to.
type Network uint8

const (
	NetworkUnknown Network = iota
	NetworkMainnet
	NetworkStagenet
	NetworkTestnet
)

// String returns a human-readable network name.
func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkStagenet:
		return "stagenet"
	case NetworkTestnet:
		return "testnet"
	default:
		return "unknown"
	}
}

// ParseNetwork converts a configuration string ("mainnet", "stagenet",
// "testnet") into a Network. The empty string is read as mainnet; any
// other string fails.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "mainnet", "":
		return NetworkMainnet, nil
	case "stagenet":
		return NetworkStagenet, nil
	case "testnet":
		return NetworkTestnet, nil
	default:
		return NetworkUnknown, errors.E(
			errors.Op("ParseNetwork"),
			errors.ComponentAddress,
			errors.KindConfig,
			fmt.Errorf("unknown network %q", s),
		)
	}
}

// network prefix bytes, matching real Monero standard-address prefixes.
const (
	prefixMainnet  byte = 18
	prefixStagenet byte = 24
	prefixTestnet  byte = 53
)

func prefixForNetwork(n Network) (byte, error) {
	switch n {
	case NetworkMainnet:
		return prefixMainnet, nil
	case NetworkStagenet:
		return prefixStagenet, nil
	case NetworkTestnet:
		return prefixTestnet, nil
	default:
		return 0, errors.E(
			errors.Op("prefixForNetwork"),
			errors.ComponentAddress,
			errors.KindConfig,
			fmt.Errorf("unknown network %d", n),
		)
	}
}

func networkForPrefix(p byte) Network {
	switch p {
	case prefixMainnet:
		return NetworkMainnet
	case prefixStagenet:
		return NetworkStagenet
	case prefixTestnet:
		return NetworkTestnet
	default:
		return NetworkUnknown
	}
}

const (
	spendKeyLen = 32
	viewKeyLen  = 32
	checksumLen = 4
	rawLen      = 1 + spendKeyLen + viewKeyLen + checksumLen // 69 bytes
)

// Address is an immutable canonical address identifier tagged by network.
// Equality is by canonical string, per spec.
type Address struct {
	canonical string
	network   Network
}

// String returns the canonical base58 form.
func (a Address) String() string {
	return a.canonical
}

// Network reports which network this address belongs to.
func (a Address) Network() Network {
	return a.network
}

// Equal reports whether two addresses share the same canonical string.
func (a Address) Equal(other Address) bool {
	return a.canonical == other.canonical
}

// IsZero reports whether a is the zero value (never produced by Parse or
// Generate, used as a sentinel by callers that track "no address yet").
func (a Address) IsZero() bool {
	return a.canonical == ""
}

func checksum(raw []byte) [checksumLen]byte {
	sum := sha3.Sum256(raw)
	var out [checksumLen]byte
	copy(out[:], sum[:checksumLen])
	return out
}

// Parse decodes a canonical address string, validating its checksum and
// classifying its network. Parse failures (bad base58, short payload,
// checksum mismatch, unrecognised network prefix) return a KindAddress
// error so AddressRegistry can distinguish "not an address" from I/O
// failure.
func Parse(s string) (Address, error) {
	const op = errors.Op("Parse")
	raw, err := decodeBase58(s, rawLen)
	if err != nil {
		return Address{}, errors.E(op, errors.ComponentAddress, errors.KindAddress, err)
	}
	if len(raw) != rawLen {
		return Address{}, errors.E(op, errors.ComponentAddress, errors.KindAddress,
			fmt.Errorf("decoded address has %d bytes, want %d", len(raw), rawLen))
	}
	payload, sum := raw[:rawLen-checksumLen], raw[rawLen-checksumLen:]
	want := checksum(payload)
	if string(sum) != string(want[:]) {
		return Address{}, errors.E(op, errors.ComponentAddress, errors.KindAddress,
			fmt.Errorf("checksum mismatch"))
	}
	net := networkForPrefix(payload[0])
	if net == NetworkUnknown {
		return Address{}, errors.E(op, errors.ComponentAddress, errors.KindAddress,
			fmt.Errorf("unrecognised network prefix %d", payload[0]))
	}
	return Address{canonical: s, network: net}, nil
}

// Generate produces a fresh random Address on the given network, along with
// the view and spend private-key-shaped material a WalletFactory would be
// handed to recreate it. It never touches the filesystem.
func Generate(net Network) (addr Address, viewKey string, spendKey string, err error) {
	const op = errors.Op("Generate")
	prefix, err := prefixForNetwork(net)
	if err != nil {
		return Address{}, "", "", err
	}
	raw := make([]byte, rawLen)
	raw[0] = prefix
	if _, rerr := rand.Read(raw[1 : rawLen-checksumLen]); rerr != nil {
		return Address{}, "", "", errors.E(op, errors.ComponentAddress, errors.KindSystem, rerr)
	}
	sum := checksum(raw[:rawLen-checksumLen])
	copy(raw[rawLen-checksumLen:], sum[:])

	canonical, eerr := encodeBase58(raw)
	if eerr != nil {
		return Address{}, "", "", errors.E(op, errors.ComponentAddress, errors.KindSystem, eerr)
	}
	spend := raw[1 : 1+spendKeyLen]
	view := raw[1+spendKeyLen : 1+spendKeyLen+viewKeyLen]
	return Address{canonical: canonical, network: net}, fmt.Sprintf("%x", view), fmt.Sprintf("%x", spend), nil
}
