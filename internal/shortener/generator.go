package shortener

import (
	"encoding/binary"
	"fmt"

	"github.com/jaevor/go-nanoid"
	"github.com/mr-tron/base58"
	"github.com/serroba/wormhole/internal/tinyflake"
)

const (
	DefaultObfuscationPrime uint64 = 3
	DefaultObfuscationMask  uint64 = 0xDEAD_BEEF_CAFE_BABE

	idMask = 1<<40 - 1
)

// CodeGenerator produces a fresh code for a new link.
type CodeGenerator func() (Code, error)

// IDSource hands out allocator ids. *tinyflake.Generator satisfies it.
type IDSource interface {
	Next() (tinyflake.ID, error)
}

// NewTinyflakeGenerator derives codes from allocator ids.
func NewTinyflakeGenerator(ids IDSource) CodeGenerator {
	return func() (Code, error) {
		id, err := ids.Next()
		if err != nil {
			return Code{}, fmt.Errorf("allocate id: %w", err)
		}

		return GeneratedCode(id), nil
	}
}

// Obfuscator scrambles allocator ids with a multiply and XOR over their 40
// bits, so consecutive ids do not give neighbouring codes. An odd prime keeps
// the mapping one-to-one.
type Obfuscator struct {
	prime uint64
	mask  uint64
}

func NewObfuscator(prime, mask uint64) (Obfuscator, error) {
	if prime%2 == 0 {
		return Obfuscator{}, fmt.Errorf("obfuscation prime %d must be odd", prime)
	}

	return Obfuscator{prime: prime, mask: mask}, nil
}

// Obfuscate returns the scrambled id. The result always fits in 40 bits.
func (o Obfuscator) Obfuscate(id tinyflake.ID) uint64 {
	return (uint64(id)*o.prime ^ o.mask) & idMask
}

// Code renders the scrambled id as base58 over its 5 big-endian bytes.
func (o Obfuscator) Code(id tinyflake.ID) Code {
	var b [8]byte

	binary.BigEndian.PutUint64(b[:], o.Obfuscate(id))

	return Code{value: base58.Encode(b[3:]), kind: KindGenerated}
}

// NewObfuscatedGenerator derives codes from scrambled allocator ids.
func NewObfuscatedGenerator(ids IDSource, prime, mask uint64) (CodeGenerator, error) {
	o, err := NewObfuscator(prime, mask)
	if err != nil {
		return nil, err
	}

	return func() (Code, error) {
		id, err := ids.Next()
		if err != nil {
			return Code{}, fmt.Errorf("allocate id: %w", err)
		}

		return o.Code(id), nil
	}, nil
}

// NewNanoidGenerator draws random codes of the given length from the URL-safe alphabet.
func NewNanoidGenerator(length int) (CodeGenerator, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return nil, fmt.Errorf("%w: code length %d, expected %d..%d", ErrInvalidCode, length, MinCodeLength, MaxCodeLength)
	}

	gen, err := nanoid.Standard(length)
	if err != nil {
		return nil, err
	}

	return func() (Code, error) {
		return TrustedCode(gen(), KindGenerated), nil
	}, nil
}
