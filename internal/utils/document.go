package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeDocument strips punctuation from a CPF/CNPJ, keeping only digits
func NormalizeDocument(document string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, document)
}

// HashDocument generates an HMAC of a normalized tax document so the raw
// number is never stored
func HashDocument(document, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(NormalizeDocument(document)))
	return hex.EncodeToString(h.Sum(nil))
}
