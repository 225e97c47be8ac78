package shortener

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/serroba/wormhole/internal/tinyflake"
)

const (
	MinCodeLength = 3
	MaxCodeLength = 32
)

// Kind records where a short code came from.
type Kind uint8

const (
	KindGenerated Kind = iota
	KindCustom
)

func (k Kind) String() string {
	if k == KindCustom {
		return "custom"
	}

	return "generated"
}

// ParseKind is the inverse of Kind.String. Unknown values map to KindGenerated.
func ParseKind(s string) Kind {
	if s == "custom" {
		return KindCustom
	}

	return KindGenerated
}

// Code is an immutable short code. The zero value is not a valid code.
type Code struct {
	value string
	kind  Kind
}

// NewCode validates untrusted input and returns it as a custom code.
func NewCode(s string) (Code, error) {
	if err := ValidateCode(s); err != nil {
		return Code{}, err
	}

	return Code{value: s, kind: KindCustom}, nil
}

// GeneratedCode encodes an allocator id. The result is always a valid code.
func GeneratedCode(id tinyflake.ID) Code {
	return Code{value: EncodeID(id), kind: KindGenerated}
}

// TrustedCode wraps text read back from storage without validating it again.
func TrustedCode(s string, kind Kind) Code {
	return Code{value: s, kind: kind}
}

func (c Code) String() string {
	return c.value
}

func (c Code) Kind() Kind {
	return c.kind
}

func (c Code) IsZero() bool {
	return c.value == ""
}

// URL joins the code onto base, dropping any trailing slash from base.
func (c Code) URL(base string) string {
	return strings.TrimRight(base, "/") + "/" + c.value
}

// EncodeID renders an id as base58 over its 8 big-endian bytes.
// The three padding bytes always encode as a leading "111".
func EncodeID(id tinyflake.ID) string {
	b := id.Bytes()

	return base58.Encode(b[:])
}

// ValidateCode reports whether s is 3 to 32 characters of [A-Za-z0-9_-].
func ValidateCode(s string) error {
	if n := len(s); n < MinCodeLength || n > MaxCodeLength {
		return fmt.Errorf("%w: length %d, expected %d..%d", ErrInvalidCode, n, MinCodeLength, MaxCodeLength)
	}

	for i := 0; i < len(s); i++ {
		if !isCodeChar(s[i]) {
			return fmt.Errorf("%w: character %q at position %d", ErrInvalidCode, s[i], i)
		}
	}

	return nil
}

func isCodeChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}
