// Package registry enumerates a directory of wallet files into ordered
// Address records, classifying each as initialised or key-only.
package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/errors"
)

const keysSuffix = ".keys"

// WalletRecord is one entry produced by ListWallets.
type WalletRecord struct {
	Address     address.Address
	Initialised bool
}

// ListWallets enumerates directory for `<address>.keys` entries, parses
// each stem as an Address, discards parse failures and network mismatches,
// and returns uninitialised (key-only) records before initialised
// (body file present) ones. Ordering within each partition follows
// os.ReadDir's own (lexicographic) order and is stable across calls on an
// unchanged directory. Pure read-only: never mutates the directory.
func ListWallets(directory string, net address.Network) ([]WalletRecord, error) {
	const op = errors.Op("ListWallets")
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, errors.E(op, errors.ComponentRegistry, errors.KindSystem, err)
	}

	var uninitialised, initialised []WalletRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, keysSuffix) {
			continue
		}
		stem := strings.TrimSuffix(name, keysSuffix)
		addr, perr := address.Parse(stem)
		if perr != nil {
			continue
		}
		if addr.Network() != net {
			continue
		}
		bodyPath := filepath.Join(directory, stem)
		rec := WalletRecord{Address: addr}
		if _, statErr := os.Stat(bodyPath); statErr == nil {
			rec.Initialised = true
			initialised = append(initialised, rec)
		} else {
			uninitialised = append(uninitialised, rec)
		}
	}

	out := make([]WalletRecord, 0, len(uninitialised)+len(initialised))
	out = append(out, uninitialised...)
	out = append(out, initialised...)
	return out, nil
}

// Addresses is a convenience wrapper returning just the Address values in
// the same order ListWallets would, dropping the Initialised flag.
func Addresses(directory string, net address.Network) ([]address.Address, error) {
	recs, err := ListWallets(directory, net)
	if err != nil {
		return nil, err
	}
	out := make([]address.Address, len(recs))
	for i, r := range recs {
		out[i] = r.Address
	}
	return out, nil
}
