package anchor

import (
	"fmt"
	"regexp"
	"strconv"
)

// ProgramError is an error raised by the on-chain program, recovered from logs
type ProgramError struct {
	Code    int
	Name    string
	Message string
	// Account is set when Anchor attributes the error to an account constraint
	Account   string
	ProgramID string
	Logs      []string
}

func (e *ProgramError) Error() string {
	msg := fmt.Sprintf("program error %d", e.Code)
	if e.Name != "" {
		msg += " (" + e.Name + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Account != "" {
		msg += " [account " + e.Account + "]"
	}
	return msg
}

var (
	anchorErrorRe   = regexp.MustCompile(`AnchorError.*?Error Code: (\w+)\. Error Number: (\d+)\. Error Message: (.*?)\.?$`)
	causedByRe      = regexp.MustCompile(`caused by account: (\w+)`)
	customErrorRe   = regexp.MustCompile(`Program (\w+) failed: custom program error: 0x([0-9a-fA-F]+)`)
	programInvokeRe = regexp.MustCompile(`^Program (\w+) invoke \[1\]`)
)

// framework error codes raised by Anchor itself
var frameworkErrors = map[int][2]string{
	100:  {"InstructionMissing", "8 byte instruction identifier not provided"},
	101:  {"InstructionFallbackNotFound", "Fallback functions are not supported"},
	102:  {"InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	103:  {"InstructionDidNotSerialize", "The program could not serialize the given instruction"},
	2000: {"ConstraintMut", "A mut constraint was violated"},
	2001: {"ConstraintHasOne", "A has one constraint was violated"},
	2002: {"ConstraintSigner", "A signer constraint was violated"},
	2003: {"ConstraintRaw", "A raw constraint was violated"},
	2004: {"ConstraintOwner", "An owner constraint was violated"},
	2005: {"ConstraintRentExempt", "A rent exemption constraint was violated"},
	2006: {"ConstraintSeeds", "A seeds constraint was violated"},
	3001: {"AccountDiscriminatorNotFound", "No 8 byte discriminator was found on the account"},
	3002: {"AccountDiscriminatorMismatch", "8 byte discriminator did not match what was expected"},
	3003: {"AccountDidNotDeserialize", "Failed to deserialize the account"},
	3007: {"AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	3010: {"AccountNotSigner", "The given account did not sign"},
	3012: {"AccountNotInitialized", "The program expected this account to be already initialized"},
}

// ParseProgramError extracts the program error from transaction logs, or nil.
// idl may be nil; when present it names program-defined custom codes.
func ParseProgramError(logs []string, idl *IDL) *ProgramError {
	var (
		out     *ProgramError
		invoked string
	)

	for _, line := range logs {
		if m := programInvokeRe.FindStringSubmatch(line); m != nil && invoked == "" {
			invoked = m[1]
		}

		if m := anchorErrorRe.FindStringSubmatch(line); m != nil {
			code, _ := strconv.Atoi(m[2])
			out = &ProgramError{Code: code, Name: m[1], Message: m[3]}
			if c := causedByRe.FindStringSubmatch(line); c != nil {
				out.Account = c[1]
			}
			continue
		}

		if m := customErrorRe.FindStringSubmatch(line); m != nil {
			code, err := strconv.ParseInt(m[2], 16, 64)
			if err != nil {
				continue
			}
			if out == nil {
				out = &ProgramError{Code: int(code)}
			}
			out.ProgramID = m[1]
		}
	}

	if out == nil {
		return nil
	}
	if out.ProgramID == "" {
		out.ProgramID = invoked
	}
	if out.Name == "" {
		out.Name, out.Message, _ = LookupError(out.Code, idl)
	}
	out.Logs = logs
	return out
}

// LookupError names an error code from the IDL or the Anchor framework codes
func LookupError(code int, idl *IDL) (name, msg string, ok bool) {
	if e, ok := idl.ErrorByCode(code); ok {
		return e.Name, e.Msg, true
	}
	if fe, ok := frameworkErrors[code]; ok {
		return fe[0], fe[1], true
	}
	return "", "", false
}

// ProgramErrorFromTxErr recovers a program error from a transaction error
// object such as {"InstructionError": [0, {"Custom": 6000}]}, or nil
func ProgramErrorFromTxErr(txErr any, programID string, idl *IDL) *ProgramError {
	obj, ok := txErr.(map[string]any)
	if !ok {
		return nil
	}
	pair, ok := obj["InstructionError"].([]any)
	if !ok || len(pair) != 2 {
		return nil
	}
	detail, ok := pair[1].(map[string]any)
	if !ok {
		return nil
	}
	custom, ok := detail["Custom"].(float64)
	if !ok {
		return nil
	}

	out := &ProgramError{Code: int(custom), ProgramID: programID}
	out.Name, out.Message, _ = LookupError(out.Code, idl)
	return out
}
