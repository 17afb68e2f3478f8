// Package nips parses user-supplied NIP identifier lists.
package nips

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pbaille/nipslock/internal/domain"
)

var tokenPattern = regexp.MustCompile(`^[0-9]{1,3}$`)

// ParseList turns a comma-separated list like "7, 1, 1, 23" into a sorted,
// duplicate-free slice of NIP numbers. Empty tokens are skipped.
func ParseList(raw string) ([]int, error) {
	seen := make(map[int]bool)
	var out []int

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if !tokenPattern.MatchString(token) {
			return nil, &domain.ValidationError{Token: token, Reason: "invalid NIP token"}
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, &domain.ValidationError{Token: token, Reason: "invalid NIP token"}
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}

	if len(out) == 0 {
		return nil, &domain.ValidationError{Reason: "no identifiers provided"}
	}

	sort.Ints(out)
	return out, nil
}

// Label formats a NIP number the way upstream names its files, e.g. NIP-05
func Label(nip int) string {
	return "NIP-" + Pad(nip)
}

// Pad zero-pads a NIP number to at least two digits
func Pad(nip int) string {
	s := strconv.Itoa(nip)
	if len(s) < 2 {
		s = "0" + s
	}
	return s
}
