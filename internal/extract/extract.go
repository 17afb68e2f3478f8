// Package extract derives lockfile metadata from raw NIP markdown.
//
// Every function here is a pure function of its input text. The status hint
// is a keyword heuristic over the head of the document and says nothing
// authoritative about the NIP's real status.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pbaille/nipslock/internal/domain"
	"github.com/pbaille/nipslock/internal/nips"
)

// StatusWindow is how many leading characters Status inspects
const StatusWindow = 1200

// Title returns the text of the first non-empty "# " heading, or a NIP-NN
// fallback. Never empty.
func Title(markdown string, nip int) string {
	for _, line := range lines(markdown) {
		if !strings.HasPrefix(line, "# ") {
			continue
		}
		if title := strings.TrimSpace(line[2:]); title != "" {
			return title
		}
	}
	return nips.Label(nip)
}

// lines splits on every line boundary markdown tools treat as one:
// \n, \r, \r\n, \v, \f, \x1c-\x1e, U+0085, U+2028 and U+2029.
// Empty lines are dropped; they can never hold a heading.
func lines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			return true
		}
		return false
	})
}

// Status classifies the first StatusWindow characters of the text.
// "deprecated" wins over "draft"; anything else is active-or-unspecified.
func Status(markdown string) domain.StatusHint {
	head := strings.ToLower(headRunes(markdown, StatusWindow))
	switch {
	case strings.Contains(head, "deprecated"):
		return domain.StatusDeprecated
	case strings.Contains(head, "draft"):
		return domain.StatusDraft
	default:
		return domain.StatusActive
	}
}

// Digest is the lowercase hex SHA-256 of the exact text bytes
func Digest(markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return hex.EncodeToString(sum[:])
}

// Entry builds the lockfile record for one fetched document
func Entry(nip int, url, markdown string) domain.NIPEntry {
	return domain.NIPEntry{
		NIP:           nip,
		URL:           url,
		Title:         Title(markdown, nip),
		StatusHint:    Status(markdown),
		ContentSHA256: Digest(markdown),
	}
}

func headRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
