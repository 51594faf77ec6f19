package testing

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/util/mathutil"
)

// RPCError is a JSON-RPC error object returned by a mock handler
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Handler answers one JSON-RPC method
type Handler func(params []json.RawMessage) (any, *RPCError)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// MockAccount is an account served by getAccountInfo
type MockAccount struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

// MockRPC is an in-process Solana JSON-RPC node for tests
type MockRPC struct {
	mu sync.RWMutex

	server *httptest.Server

	// Configurable return values
	SlotValue            uint64
	BlockHeightValue     uint64
	BalanceValue         uint64
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	StatusValue          string
	Accounts             map[solana.PublicKey]MockAccount
	TokenBalances        map[solana.PublicKey]uint64
	TokenDecimals        uint8

	// Error responses
	SendTransactionError *RPCError
	SimulationErr        any
	SimulationLogs       []string

	// Sent transactions tracking
	SentTransactions []*solana.Transaction

	// Call counters
	CallCounts map[string]int

	handlers map[string]Handler
}

// NewMockRPC starts a mock node that behaves like a healthy local validator.
// The server is closed when the test finishes.
func NewMockRPC(t *testing.T) *MockRPC {
	t.Helper()

	m := &MockRPC{
		SlotValue:            1000,
		BlockHeightValue:     900,
		BalanceValue:         5_000_000_000,
		Blockhash:            solana.Hash{0xb1, 0x0c, 0x4a},
		LastValidBlockHeight: 1050,
		StatusValue:          "finalized",
		Accounts:             make(map[solana.PublicKey]MockAccount),
		TokenBalances:        make(map[solana.PublicKey]uint64),
		TokenDecimals:        9,
		CallCounts:           make(map[string]int),
		handlers:             make(map[string]Handler),
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serveHTTP))
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the HTTP endpoint of the mock node
func (m *MockRPC) URL() string {
	return m.server.URL
}

// Handle overrides the handler for a method
func (m *MockRPC) Handle(method string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
}

// Configure mutates the mock's return values under its lock
func (m *MockRPC) Configure(fn func(m *MockRPC)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// SetAccount registers an account for getAccountInfo
func (m *MockRPC) SetAccount(pk solana.PublicKey, acc MockAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[pk] = acc
}

// SetTokenBalance registers a token account balance
func (m *MockRPC) SetTokenBalance(pk solana.PublicKey, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenBalances[pk] = amount
}

// GetCallCount returns the number of times a method was called
func (m *MockRPC) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

// GetSentTransactions returns all transactions accepted by sendTransaction
func (m *MockRPC) GetSentTransactions() []*solana.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*solana.Transaction(nil), m.SentTransactions...)
}

// Reset clears all tracking data
func (m *MockRPC) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentTransactions = nil
	m.CallCounts = make(map[string]int)
}

func (m *MockRPC) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.CallCounts[req.Method]++
	h, ok := m.handlers[req.Method]
	m.mu.Unlock()

	if !ok {
		h = m.defaultHandler(req.Method)
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if h == nil {
		resp.Error = &RPCError{Code: -32601, Message: "Method not found"}
	} else {
		resp.Result, resp.Error = h(req.Params)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(slot uint64, value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": slot},
		"value":   value,
	}
}

func paramString(params []json.RawMessage, i int) string {
	if i >= len(params) {
		return ""
	}
	var s string
	_ = json.Unmarshal(params[i], &s)
	return s
}

func invalidParams(msg string) *RPCError {
	return &RPCError{Code: -32602, Message: msg}
}

func (m *MockRPC) defaultHandler(method string) Handler {
	switch method {
	case "getVersion":
		return func([]json.RawMessage) (any, *RPCError) {
			return map[string]any{"solana-core": "1.18.26", "feature-set": 3241752014}, nil
		}
	case "getHealth":
		return func([]json.RawMessage) (any, *RPCError) {
			return "ok", nil
		}
	case "getSlot":
		return func([]json.RawMessage) (any, *RPCError) {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return m.SlotValue, nil
		}
	case "getBlockHeight":
		return func([]json.RawMessage) (any, *RPCError) {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return m.BlockHeightValue, nil
		}
	case "getBalance":
		return func(params []json.RawMessage) (any, *RPCError) {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return withContext(m.SlotValue, m.BalanceValue), nil
		}
	case "getLatestBlockhash":
		return func([]json.RawMessage) (any, *RPCError) {
			m.mu.RLock()
			defer m.mu.RUnlock()
			return withContext(m.SlotValue, map[string]any{
				"blockhash":            m.Blockhash.String(),
				"lastValidBlockHeight": m.LastValidBlockHeight,
			}), nil
		}
	case "getAccountInfo":
		return m.getAccountInfo
	case "getTokenAccountBalance":
		return m.getTokenAccountBalance
	case "sendTransaction":
		return m.sendTransaction
	case "simulateTransaction":
		return m.simulateTransaction
	case "getSignatureStatuses":
		return m.getSignatureStatuses
	case "requestAirdrop":
		return func(params []json.RawMessage) (any, *RPCError) {
			if _, err := solana.PublicKeyFromBase58(paramString(params, 0)); err != nil {
				return nil, invalidParams("Invalid param: Invalid")
			}
			return solana.Signature{0xa1, 0x4d}.String(), nil
		}
	default:
		return nil
	}
}

func (m *MockRPC) getAccountInfo(params []json.RawMessage) (any, *RPCError) {
	pk, err := solana.PublicKeyFromBase58(paramString(params, 0))
	if err != nil {
		return nil, invalidParams("Invalid param: Invalid")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.Accounts[pk]
	if !ok {
		return withContext(m.SlotValue, nil), nil
	}
	return withContext(m.SlotValue, map[string]any{
		"lamports":   acc.Lamports,
		"owner":      acc.Owner.String(),
		"data":       []string{base64.StdEncoding.EncodeToString(acc.Data), "base64"},
		"executable": false,
		"rentEpoch":  uint64(18446744073709551615),
		"space":      len(acc.Data),
	}), nil
}

func (m *MockRPC) getTokenAccountBalance(params []json.RawMessage) (any, *RPCError) {
	pk, err := solana.PublicKeyFromBase58(paramString(params, 0))
	if err != nil {
		return nil, invalidParams("Invalid param: Invalid")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	amount, ok := m.TokenBalances[pk]
	if !ok {
		return nil, invalidParams("Invalid param: could not find account")
	}
	return withContext(m.SlotValue, map[string]any{
		"amount":         strconv.FormatUint(amount, 10),
		"decimals":       m.TokenDecimals,
		"uiAmountString": mathutil.FormatUnits(amount, m.TokenDecimals),
	}), nil
}

func (m *MockRPC) decodeTx(params []json.RawMessage) (*solana.Transaction, *RPCError) {
	tx, err := solana.TransactionFromBase64(paramString(params, 0))
	if err != nil {
		return nil, invalidParams("invalid transaction: " + err.Error())
	}
	return tx, nil
}

func (m *MockRPC) sendTransaction(params []json.RawMessage) (any, *RPCError) {
	tx, rpcErr := m.decodeTx(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendTransactionError != nil {
		return nil, m.SendTransactionError
	}
	m.SentTransactions = append(m.SentTransactions, tx)
	return solana.TransactionID(tx).String(), nil
}

func (m *MockRPC) simulateTransaction(params []json.RawMessage) (any, *RPCError) {
	if _, rpcErr := m.decodeTx(params); rpcErr != nil {
		return nil, rpcErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := m.SimulationLogs
	if logs == nil {
		logs = []string{}
	}
	return withContext(m.SlotValue, map[string]any{
		"err":           m.SimulationErr,
		"logs":          logs,
		"unitsConsumed": 1337,
	}), nil
}

func (m *MockRPC) getSignatureStatuses(params []json.RawMessage) (any, *RPCError) {
	var sigs []string
	if len(params) > 0 {
		if err := json.Unmarshal(params[0], &sigs); err != nil {
			return nil, invalidParams("Invalid params: " + err.Error())
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sent := make(map[string]bool, len(m.SentTransactions))
	for _, tx := range m.SentTransactions {
		sent[solana.TransactionID(tx).String()] = true
	}

	statuses := make([]any, len(sigs))
	for i, s := range sigs {
		if !sent[s] {
			continue
		}
		statuses[i] = map[string]any{
			"slot":               m.SlotValue,
			"confirmations":      nil,
			"err":                nil,
			"confirmationStatus": m.StatusValue,
		}
	}
	return withContext(m.SlotValue, statuses), nil
}
