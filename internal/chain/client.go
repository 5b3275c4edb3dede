package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPError carries the status of a non-2xx upstream response so
// classification can branch on it.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// TokenAccount is one SPL holding account as returned by the RPC node.
type TokenAccount struct {
	Mint     string
	Amount   string
	Decimals int
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus string
	Err                json.RawMessage
}

// Confirmed reports an explicit on-chain success marker.
func (s *SignatureStatus) Confirmed() bool {
	return s.Found && s.Err == nil &&
		(s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}

// Failed reports an explicit on-chain failure marker.
func (s *SignatureStatus) Failed() bool {
	return s.Found && s.Err != nil && string(s.Err) != "null"
}

// Client exposes the RPC operations the service needs. Every call goes
// through the retry executor with a per-call timeout shorter than the
// platform request timeout.
type Client struct {
	exec    *Executor
	timeout time.Duration
}

func NewClient(exec *Executor, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{exec: exec, timeout: timeout}
}

// NativeBalance returns the wallet's lamport balance.
func (c *Client) NativeBalance(ctx context.Context, wallet string) (uint64, error) {
	var balance uint64
	err := c.exec.Execute(ctx, func(ctx context.Context, h *Handle) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		b, err := h.RPC.GetBalance(ctx, wallet)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// TokenAccountsByOwner lists the owner's holding accounts under the given
// custody program.
func (c *Client) TokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error) {
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals int    `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	err := c.exec.Execute(ctx, func(ctx context.Context, h *Handle) error {
		params := []any{
			owner,
			map[string]any{"programId": programID},
			map[string]any{"encoding": "jsonParsed"},
		}
		return rpcCall(ctx, h, c.timeout, "getTokenAccountsByOwner", params, &result)
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		info := v.Account.Data.Parsed.Info
		accounts = append(accounts, TokenAccount{
			Mint:     info.Mint,
			Amount:   info.TokenAmount.Amount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}

// SignatureStatus looks up the confirmation state of one signature.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}

	err := c.exec.Execute(ctx, func(ctx context.Context, h *Handle) error {
		params := []any{
			[]string{signature},
			map[string]any{"searchTransactionHistory": true},
		}
		return rpcCall(ctx, h, c.timeout, "getSignatureStatuses", params, &result)
	})
	if err != nil {
		return nil, err
	}

	status := &SignatureStatus{}
	if len(result.Value) > 0 && result.Value[0] != nil {
		v := result.Value[0]
		status.Found = true
		status.Slot = v.Slot
		status.ConfirmationStatus = v.ConfirmationStatus
		if len(v.Err) > 0 && string(v.Err) != "null" {
			status.Err = v.Err
		}
	}
	return status, nil
}

// SendTransaction broadcasts a base64-encoded signed transaction and
// returns its signature.
func (c *Client) SendTransaction(ctx context.Context, signedTx string) (string, error) {
	var signature string
	err := c.exec.Execute(ctx, func(ctx context.Context, h *Handle) error {
		params := []any{
			signedTx,
			map[string]any{"encoding": "base64", "skipPreflight": false},
		}
		return rpcCall(ctx, h, c.timeout, "sendTransaction", params, &signature)
	})
	return signature, err
}

// rpcCall issues one JSON-RPC request against the handle's endpoint.
func rpcCall(ctx context.Context, h *Handle, timeout time.Duration, method string, params []any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
