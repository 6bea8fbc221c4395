package responder

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint hashes the normalised message, optionally scoped to sender.
// Case, surrounding punctuation and whitespace runs do not change it.
func Fingerprint(message, sender string, perSender bool) string {
	h := sha256.New()
	if perSender {
		h.Write([]byte(sender))
		h.Write([]byte{0})
	}
	h.Write([]byte(normalizeMessage(message)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeMessage(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
