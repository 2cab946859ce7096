// Package walletrpcclient provides the thin opaque RPC clients the
// Controller needs against an already-running monerod and an
// already-opened monero-wallet-rpc: height(), address(), incoming(),
// outgoing(). Per spec §1 these are external collaborators — the
// supervisor's design only needs the interface they expose here, not a
// production-grade Monero JSON-RPC client, so this stays on net/http and
// encoding/json rather than pulling in a third-party RPC library.
package walletrpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/errors"
)

const jsonRPCVersion = "2.0"

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func call(ctx context.Context, client *http.Client, url, method string, params, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: jsonRPCVersion, ID: "0", Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(rr.Result, result)
}

// Transfer is a minimal incoming/outgoing transfer record, enough for a
// Hooks implementation to log or total up amounts.
type Transfer struct {
	TxID      string `json:"txid"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
	Confirmed bool   `json:"confirmed"`
}

// WalletClient is the opaque per-wallet RPC handle a Controller publishes
// on entry to SYNCING.
type WalletClient struct {
	url    string
	client *http.Client
}

// NewWalletClient builds a client against the wallet RPC bound to port on
// localhost. It performs no I/O itself.
func NewWalletClient(port int) *WalletClient {
	return &WalletClient{
		url:    fmt.Sprintf("http://127.0.0.1:%d/json_rpc", port),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Height returns the wallet's last-scanned block height.
func (w *WalletClient) Height(ctx context.Context) (uint64, error) {
	var result struct {
		Height uint64 `json:"height"`
	}
	if err := call(ctx, w.client, w.url, "get_height", nil, &result); err != nil {
		return 0, errors.E(errors.Op("WalletClient.Height"), errors.ComponentRPCClient, errors.KindNetwork, err)
	}
	return result.Height, nil
}

// Address returns the wallet's primary address, as reported by the RPC
// server itself (used to detect the mismatch case in spec §4.4).
func (w *WalletClient) Address(ctx context.Context) (address.Address, error) {
	var result struct {
		Address string `json:"address"`
	}
	if err := call(ctx, w.client, w.url, "get_address", nil, &result); err != nil {
		return address.Address{}, errors.E(errors.Op("WalletClient.Address"), errors.ComponentRPCClient, errors.KindNetwork, err)
	}
	addr, err := address.Parse(result.Address)
	if err != nil {
		return address.Address{}, errors.E(errors.Op("WalletClient.Address"), errors.ComponentRPCClient, errors.KindAddress, err)
	}
	return addr, nil
}

// Incoming returns the transfers the wallet RPC lists under its "in"
// category; pending and pool transfers are not requested.
func (w *WalletClient) Incoming(ctx context.Context) ([]Transfer, error) {
	return w.transfers(ctx, "in")
}

// Outgoing returns the transfers the wallet RPC lists under its "out"
// category; pending and pool transfers are not requested.
func (w *WalletClient) Outgoing(ctx context.Context) ([]Transfer, error) {
	return w.transfers(ctx, "out")
}

func (w *WalletClient) transfers(ctx context.Context, category string) ([]Transfer, error) {
	params := map[string]interface{}{category: true}
	var result struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := call(ctx, w.client, w.url, "get_transfers", params, &result); err != nil {
		return nil, errors.E(errors.Op("WalletClient.transfers"), errors.ComponentRPCClient, errors.KindNetwork, err)
	}
	return result.Transfers, nil
}

// DaemonClient is the opaque daemon RPC handle used to poll blockchain
// height during sync.
type DaemonClient struct {
	url    string
	client *http.Client
}

// NewDaemonClient builds a client against the daemon's JSON-RPC endpoint.
func NewDaemonClient(host string, port int) *DaemonClient {
	return &DaemonClient{
		url:    fmt.Sprintf("http://%s:%d/json_rpc", host, port),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Height returns the daemon's current blockchain height.
func (d *DaemonClient) Height(ctx context.Context) (uint64, error) {
	var result struct {
		Height uint64 `json:"height"`
	}
	if err := call(ctx, d.client, d.url, "get_height", nil, &result); err != nil {
		return 0, errors.E(errors.Op("DaemonClient.Height"), errors.ComponentRPCClient, errors.KindNetwork, err)
	}
	return result.Height, nil
}
