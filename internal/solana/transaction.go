package solana

import (
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

var (
	ErrMissingSigner  = errors.New("missing signer for required signature")
	ErrNoInstructions = errors.New("no instructions provided")
)

// Signer produces ed25519 signatures for a single key
type Signer interface {
	PublicKey() PublicKey
	Sign(message []byte) (Signature, error)
}

// NewTransaction compiles the instructions into an unsigned legacy
// transaction paid for by payer
func NewTransaction(payer PublicKey, instructions []Instruction, recentBlockhash Hash) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	return solanago.NewTransaction(instructions, recentBlockhash, solanago.TransactionPayer(payer))
}

// RequiredSigners returns the keys whose signatures the message requires, in order
func RequiredSigners(msg *Message) []PublicKey {
	return msg.AccountKeys[:msg.Header.NumRequiredSignatures]
}

// SignTransaction signs the message with every required signer. Extra
// signers are ignored.
func SignTransaction(tx *Transaction, signers ...Signer) error {
	payload, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	byKey := make(map[PublicKey]Signer, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}

	required := RequiredSigners(&tx.Message)
	sigs := make([]Signature, len(required))
	for i, key := range required {
		s, ok := byKey[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		if sigs[i], err = s.Sign(payload); err != nil {
			return fmt.Errorf("failed to sign with %s: %w", key, err)
		}
	}

	tx.Signatures = sigs
	return nil
}

// TransactionID returns the first signature, which identifies the transaction
func TransactionID(tx *Transaction) Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// EncodeTransaction returns the base64 wire encoding accepted by sendTransaction
func EncodeTransaction(tx *Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a serialized transaction
func DecodeTransaction(raw []byte) (*Transaction, error) {
	return solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
}

// TransactionFromBase64 parses the base64 wire encoding
func TransactionFromBase64(s string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	return DecodeTransaction(raw)
}
