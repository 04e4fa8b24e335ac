// Package codegen produces invite codes for circles and limited invite links.
package codegen

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const (
	// CodeLength is the number of symbols in a generated code.
	CodeLength = 16

	// Alphabet omits 0/O, 1/l/I so codes survive being read aloud.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// codeRegex accepts any URL-safe code, including shorter legacy codes.
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)

// maxByte is the largest multiple of len(Alphabet) that fits in a byte.
// Random bytes at or above it are discarded to keep the distribution uniform.
var maxByte = byte(256 - (256 % len(Alphabet)))

// Generate returns a fresh random code.
func Generate() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)

	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxByte {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}

	return string(code), nil
}

// Valid reports whether code is syntactically acceptable for a lookup.
func Valid(code string) bool {
	return codeRegex.MatchString(code)
}
