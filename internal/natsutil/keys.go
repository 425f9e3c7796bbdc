package natsutil

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// hashedPrefix marks tokens that were replaced by their hash.
const hashedPrefix = "_h"

// KeyToken returns s as a single NATS KV key token.
//
// Names made only of letters, digits, '-', '_' and '=' are used verbatim.
// Anything else (dots, spaces, wildcards, non-ASCII, empty) is replaced by
// "_h" followed by the hex xxh3 hash of the name, so the result never contains
// a token separator.
func KeyToken(s string) string {
	if isPlainToken(s) {
		return s
	}

	return hashedPrefix + strconv.FormatUint(xxh3.HashString(s), 16)
}

// JoinKey joins tokens with the NATS subject separator.
func JoinKey(tokens ...string) string {
	n := 0
	for _, t := range tokens {
		n += len(t) + 1
	}

	buf := make([]byte, 0, n)
	for i, t := range tokens {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, t...)
	}

	return string(buf)
}

func isPlainToken(s string) bool {
	if s == "" || len(s) >= len(hashedPrefix) && s[:len(hashedPrefix)] == hashedPrefix {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '=':
		default:
			return false
		}
	}

	return true
}
