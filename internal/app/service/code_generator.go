package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Custom codes additionally allow hyphens and underscores.
const customCodeExtra = "-_"

const (
	customCodeMinLength = 3
	customCodeMaxLength = 50
)

// Bloom filter sizing: roughly one million issued codes at 1% false positives.
// A false positive only costs one extra existence probe against the store.
const (
	bloomCapacity      = 1_000_000
	bloomFalsePositive = 0.01
)

// CodeGenerator produces random short codes and validates caller-supplied
// custom codes. Codes are drawn with crypto/rand so the sequence is not
// enumerable from previously issued codes.
type CodeGenerator struct {
	length   int
	reserved map[string]struct{}

	mu     sync.Mutex
	issued *bloom.BloomFilter
}

// NewCodeGenerator builds a generator for codes of the given length (default 6,
// giving 62^6 ≈ 56 billion combinations).
func NewCodeGenerator(length int, reservedCodes []string) *CodeGenerator {
	if length <= 0 {
		length = 6
	}

	reserved := make(map[string]struct{}, len(reservedCodes))
	for _, code := range reservedCodes {
		reserved[strings.ToLower(code)] = struct{}{}
	}

	return &CodeGenerator{
		length:   length,
		reserved: reserved,
		issued:   bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive),
	}
}

// Generate draws a fresh random base62 code of the configured length.
func (g *CodeGenerator) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(g.length)

	alphabetSize := big.NewInt(int64(len(base62Alphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		sb.WriteByte(base62Alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// ValidateCustom checks a caller-supplied code against the allowed charset,
// length bounds and the reserved-word blacklist.
func (g *CodeGenerator) ValidateCustom(code string) error {
	if len(code) < customCodeMinLength || len(code) > customCodeMaxLength {
		return fmt.Errorf("%w: length must be between %d and %d characters",
			ErrInvalidCode, customCodeMinLength, customCodeMaxLength)
	}

	allowed := base62Alphabet + customCodeExtra
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(allowed, rune(code[i])) {
			return fmt.Errorf("%w: only letters, numbers, hyphens and underscores are allowed", ErrInvalidCode)
		}
	}

	if _, ok := g.reserved[strings.ToLower(code)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCode, code)
	}
	return nil
}

// MaybeIssued reports whether the code might already exist. A false result is
// definitive; a true result must be confirmed against the store.
func (g *CodeGenerator) MaybeIssued(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued.TestString(code)
}

// MarkIssued records a successfully inserted code.
func (g *CodeGenerator) MarkIssued(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued.AddString(code)
}

// Warm seeds the filter with already-issued codes, typically at startup.
func (g *CodeGenerator) Warm(codes []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, code := range codes {
		g.issued.AddString(code)
	}
}
