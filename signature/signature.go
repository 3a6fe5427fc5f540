// Package signature signs and verifies payment provider payloads.
//
// The canonical string is the fields joined as key=value with '&', in the
// exact order the provider documents. Fields are never sorted here.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrEmptySecret = errors.New("signature: shared secret is empty")

type Field struct {
	Key   string
	Value string
}

func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Canonical renders the string that gets signed.
func Canonical(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical string.
func (s *Signer) Sign(fields []Field) string {
	return hex.EncodeToString(s.mac(fields))
}

// Verify compares the lowercase hex digests in constant time. Any malformed
// input, including upper-case hex, yields false.
func (s *Signer) Verify(fields []Field, provided string) bool {
	if s == nil || len(provided) != hex.EncodedLen(sha256.Size) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Sign(fields)), []byte(provided)) == 1
}

func (s *Signer) mac(fields []Field) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(Canonical(fields)))
	return h.Sum(nil)
}
