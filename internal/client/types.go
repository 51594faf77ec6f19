package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hotwings/hwlock/internal/solana"
)

// Commitment is the level of finality requested from the node
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// Rank orders commitment levels; unknown values rank lowest
func (c Commitment) Rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Valid reports whether c is a known commitment level
func (c Commitment) Valid() bool {
	return c.Rank() > 0
}

// Context is the slot at which a response was evaluated
type Context struct {
	Slot uint64 `json:"slot"`
}

// Version is the result of getVersion
type Version struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint32 `json:"feature-set"`
}

// LatestBlockhash is the value of getLatestBlockhash
type LatestBlockhash struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"lastValidBlockHeight"`
}

type latestBlockhashResult struct {
	Context Context         `json:"context"`
	Value   LatestBlockhash `json:"value"`
}

type balanceResult struct {
	Context Context `json:"context"`
	Value   uint64  `json:"value"`
}

// AccountData decodes the ["<payload>", "base64"] pair returned for account data
type AccountData []byte

// UnmarshalJSON implements json.Unmarshaler
func (d *AccountData) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("account data: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("account data: expected [data, encoding], got %d elements", len(pair))
	}
	if pair[1] != "base64" {
		return fmt.Errorf("account data: unsupported encoding %q", pair[1])
	}

	raw, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return fmt.Errorf("account data: %w", err)
	}
	*d = raw
	return nil
}

// AccountInfo is the value of getAccountInfo
type AccountInfo struct {
	Lamports   uint64           `json:"lamports"`
	Owner      solana.PublicKey `json:"owner"`
	Data       AccountData      `json:"data"`
	Executable bool             `json:"executable"`
	RentEpoch  uint64           `json:"rentEpoch"`
	Space      uint64           `json:"space"`
}

type accountInfoResult struct {
	Context Context      `json:"context"`
	Value   *AccountInfo `json:"value"`
}

// TokenAmount is the value of getTokenAccountBalance
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// Raw returns the amount in base units
func (a *TokenAmount) Raw() (uint64, error) {
	return strconv.ParseUint(a.Amount, 10, 64)
}

type tokenAmountResult struct {
	Context Context     `json:"context"`
	Value   TokenAmount `json:"value"`
}

// SignatureStatus is one entry of getSignatureStatuses
type SignatureStatus struct {
	Slot               uint64     `json:"slot"`
	Confirmations      *uint64    `json:"confirmations"`
	Err                any        `json:"err"`
	ConfirmationStatus Commitment `json:"confirmationStatus"`
}

// Failed reports whether the transaction executed with an error
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}

// Reached reports whether the status satisfies the requested commitment
func (s *SignatureStatus) Reached(c Commitment) bool {
	if s == nil {
		return false
	}
	return s.ConfirmationStatus.Rank() >= c.Rank()
}

type signatureStatusesResult struct {
	Context Context            `json:"context"`
	Value   []*SignatureStatus `json:"value"`
}

// SimulationResult is the value of simulateTransaction
type SimulationResult struct {
	Err           any      `json:"err"`
	Logs          []string `json:"logs"`
	UnitsConsumed uint64   `json:"unitsConsumed"`
}

type simulationResult struct {
	Context Context          `json:"context"`
	Value   SimulationResult `json:"value"`
}

// SendOptions controls sendTransaction preflight behaviour
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
}

type sendConfig struct {
	Encoding            string     `json:"encoding"`
	SkipPreflight       bool       `json:"skipPreflight"`
	PreflightCommitment Commitment `json:"preflightCommitment,omitempty"`
}

type commitmentConfig struct {
	Commitment Commitment `json:"commitment,omitempty"`
}

type accountInfoConfig struct {
	Encoding   string     `json:"encoding"`
	Commitment Commitment `json:"commitment,omitempty"`
}

type simulateConfig struct {
	Encoding   string     `json:"encoding"`
	SigVerify  bool       `json:"sigVerify"`
	Commitment Commitment `json:"commitment,omitempty"`
}

type statusConfig struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}
