package anchor

import (
	"crypto/sha256"
	"strings"
	"unicode"
)

// DiscriminatorLength is the size of instruction and account discriminators
const DiscriminatorLength = 8

// Discriminator prefixes the instruction data or account data
type Discriminator [DiscriminatorLength]byte

func sighash(namespace, name string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// InstructionDiscriminator returns sha256("global:<snake_name>")[:8]
func InstructionDiscriminator(name string) Discriminator {
	return sighash("global", SnakeCase(name))
}

// AccountDiscriminator returns sha256("account:<PascalName>")[:8]
func AccountDiscriminator(name string) Discriminator {
	return sighash("account", PascalCase(name))
}

// SnakeCase converts initializeLock, InitializeLock or initialize-lock to initialize_lock
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					if !strings.HasSuffix(b.String(), "_") {
						b.WriteByte('_')
					}
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CamelCase converts initialize_lock to initializeLock
func CamelCase(s string) string {
	p := PascalCase(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// PascalCase converts initialize_lock or initializeLock to InitializeLock
func PascalCase(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(SnakeCase(s), "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
