package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Node error codes surfaced by the Solana JSON-RPC API
const (
	CodeSendTransactionPreflight = -32002
	CodeSignatureVerification    = -32003
	CodeNodeUnhealthy            = -32005
)

// RPCError is a JSON-RPC error returned by the node
type RPCError struct {
	Method  string
	Code    int
	Message string
	// Logs carries program logs when a preflight simulation failed
	Logs []string
	// Err is the transaction error object from the preflight result, if any
	Err any
}

func (e *RPCError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: rpc error %d: %s", e.Method, e.Code, e.Message)
	if len(e.Logs) > 0 {
		fmt.Fprintf(&b, " (%d log lines)", len(e.Logs))
	}
	return b.String()
}

// wrapError converts transport errors into *RPCError where the node answered
func wrapError(method string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, err)
	}

	out := &RPCError{
		Method:  method,
		Code:    rpcErr.ErrorCode(),
		Message: rpcErr.Error(),
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(map[string]interface{}); ok {
			out.Err = data["err"]
			if logs, ok := data["logs"].([]interface{}); ok {
				for _, l := range logs {
					if s, ok := l.(string); ok {
						out.Logs = append(out.Logs, s)
					}
				}
			}
		}
	}

	return out
}
