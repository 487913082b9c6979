package policy

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// MaskingStrategy rewrites a single field value during erasure. Strategies
// are pure: the same input always yields the same output.
type MaskingStrategy interface {
	// Name identifies the strategy in configuration and logs.
	Name() string
	// Mask returns the replacement for the given value.
	Mask(value any) any
}

// NullMasking replaces the value with null.
type NullMasking struct{}

func (NullMasking) Name() string       { return "null" }
func (NullMasking) Mask(value any) any { return nil }

// RewriteMasking replaces the value with a fixed string.
type RewriteMasking struct {
	Replacement string
}

func (RewriteMasking) Name() string { return "rewrite" }
func (m RewriteMasking) Mask(value any) any {
	return m.Replacement
}

// HashMasking replaces the value with a salted hex digest.
type HashMasking struct {
	// Algorithm is "SHA-256" or "SHA-512".
	Algorithm string
	Salt      string
}

func (HashMasking) Name() string { return "hash" }

func (m HashMasking) Mask(value any) any {
	payload := []byte(fmt.Sprintf("%v%s", value, m.Salt))
	switch m.Algorithm {
	case "SHA-512":
		sum := sha512.Sum512(payload)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(payload)
		return hex.EncodeToString(sum[:])
	}
}

// NewMaskingStrategy builds a strategy from its configured name and
// parameters. Unknown names are a validation error.
func NewMaskingStrategy(name string, params map[string]string) (MaskingStrategy, error) {
	switch name {
	case "null", "":
		return NullMasking{}, nil
	case "rewrite":
		return RewriteMasking{Replacement: params["replacement"]}, nil
	case "hash":
		algo := params["algorithm"]
		if algo == "" {
			algo = "SHA-256"
		}
		if algo != "SHA-256" && algo != "SHA-512" {
			return nil, &ValidationError{Reason: fmt.Sprintf("unsupported hash algorithm %q", algo)}
		}
		return HashMasking{Algorithm: algo, Salt: params["salt"]}, nil
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown masking strategy %q", name)}
	}
}
