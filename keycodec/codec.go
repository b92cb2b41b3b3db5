// Package keycodec maps application cache keys to backend-safe identifiers.
//
// The mapping is one-way. HashCode, the default, squeezes every key into a
// 32-bit decimal and therefore collides for some distinct keys; callers that
// cannot tolerate that should pick SHA1, Base64 or String.
package keycodec

import (
	"crypto/sha1" //nolint:gosec // digesting, not security
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// ErrUnknownEncoding is returned by Parse for unrecognized names.
var ErrUnknownEncoding = errors.New("keycodec: unknown encoding")

// Encoding selects a key mapping strategy.
type Encoding int

const (
	// HashCode renders the 32-bit String.hashCode of the key's string form
	// as a signed decimal. Identifiers stay compatible with deployments
	// that populated the backend from the JVM.
	HashCode Encoding = iota + 1
	// SHA1 is the lowercase hex SHA-1 digest of the UTF-8 string form.
	SHA1
	// Base64 is the padded standard Base64 of the UTF-8 string form.
	Base64
	// String uses the string form as-is.
	String
	// XXHash is the 16-digit hex xxhash64 of the string form.
	XXHash
)

// Default is the encoding used when none is configured.
const Default = HashCode

var names = map[Encoding]string{
	HashCode: "hashcode",
	SHA1:     "sha1",
	Base64:   "base64",
	String:   "string",
	XXHash:   "xxhash",
}

func (e Encoding) String() string {
	if n, ok := names[e]; ok {
		return n
	}
	return "encoding(" + strconv.Itoa(int(e)) + ")"
}

// Parse resolves an encoding name (case-insensitive). The empty string
// yields Default.
func Parse(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hashcode", "identityhash", "hash":
		return HashCode, nil
	case "sha1":
		return SHA1, nil
	case "base64":
		return Base64, nil
	case "string", "raw", "rawstring":
		return String, nil
	case "xxhash", "xxhash64":
		return XXHash, nil
	}
	return 0, errors.Wrapf(ErrUnknownEncoding, "%q", name)
}

// Encode maps k to a backend identifier. The key's string form is
// fmt.Sprint(k), so fmt.Stringer keys control their own representation.
// Out-of-range encodings behave like HashCode.
func (e Encoding) Encode(k any) string {
	s, ok := k.(string)
	if !ok {
		s = fmt.Sprint(k)
	}
	return e.EncodeString(s)
}

// EncodeString maps an already stringified key.
func (e Encoding) EncodeString(s string) string {
	switch e {
	case SHA1:
		sum := sha1.Sum([]byte(s)) //nolint:gosec
		return hex.EncodeToString(sum[:])
	case Base64:
		return base64.StdEncoding.EncodeToString([]byte(s))
	case String:
		return s
	case XXHash:
		return fmt.Sprintf("%016x", xxhash.Sum64String(s))
	default:
		return strconv.FormatInt(int64(javaHash(s)), 10)
	}
}

// javaHash is s[0]*31^(n-1) + ... + s[n-1] over UTF-16 code units with
// int32 wraparound.
func javaHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r < 0x10000 {
			h = 31*h + int32(r)
			continue
		}
		r1, r2 := utf16.EncodeRune(r)
		h = 31*h + int32(r1)
		h = 31*h + int32(r2)
	}
	return h
}
