package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/Djtrixuk/moltydex-sub000/internal/chain"
)

// fakeRPC is an httptest JSON-RPC node. Handlers are keyed by method and
// return the "result" payload as raw JSON.
type fakeRPC struct {
	server   *httptest.Server
	handlers map[string]func(params []json.RawMessage) (any, *rpcError)
	calls    map[string]*atomic.Int64
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newFakeRPC() *fakeRPC {
	f := &fakeRPC{
		handlers: make(map[string]func([]json.RawMessage) (any, *rpcError)),
		calls:    make(map[string]*atomic.Int64),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		counter, ok := f.calls[req.Method]
		if !ok {
			counter = &atomic.Int64{}
			f.calls[req.Method] = counter
		}
		counter.Add(1)

		h, ok := f.handlers[req.Method]
		if !ok {
			http.Error(w, "no handler for "+req.Method, http.StatusInternalServerError)
			return
		}

		result, rpcErr := h(req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return f
}

func (f *fakeRPC) on(method string, h func(params []json.RawMessage) (any, *rpcError)) {
	f.handlers[method] = h
	if _, ok := f.calls[method]; !ok {
		f.calls[method] = &atomic.Int64{}
	}
}

func (f *fakeRPC) callCount(method string) int64 {
	if c, ok := f.calls[method]; ok {
		return c.Load()
	}
	return 0
}

func (f *fakeRPC) close() { f.server.Close() }

// client builds a chain.Client against the fake node with fast retries.
func (f *fakeRPC) client() *chain.Client {
	exec := chain.NewExecutor(chain.NewPool(), f.server.URL, "", chain.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})
	return chain.NewClient(exec, 5*time.Second)
}

// tokenAccountsResult builds a getTokenAccountsByOwner result payload.
func tokenAccountsResult(accounts ...map[string]any) any {
	value := make([]any, 0, len(accounts))
	for _, acc := range accounts {
		value = append(value, map[string]any{
			"account": map[string]any{
				"data": map[string]any{
					"parsed": map[string]any{"info": acc},
				},
			},
		})
	}
	return map[string]any{"value": value}
}

func tokenAccount(mint, amount string, decimals int) map[string]any {
	return map[string]any{
		"mint": mint,
		"tokenAmount": map[string]any{
			"amount":   amount,
			"decimals": decimals,
		},
	}
}

func balanceResult(lamports uint64) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   lamports,
	}
}

func signatureStatusResult(confirmationStatus string, txErr any) any {
	entry := map[string]any{
		"slot":               100,
		"confirmationStatus": confirmationStatus,
	}
	if txErr != nil {
		entry["err"] = txErr
	}
	return map[string]any{"value": []any{entry}}
}
