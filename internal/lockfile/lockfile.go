// Package lockfile encodes and persists the NIP lock document.
//
// Encoding is deterministic: entries are ordered by NIP number, indentation
// is two spaces, every non-ASCII character is written as a \u escape and the
// document ends with a single newline. Only generated_at_utc varies between
// runs over the same inputs.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pbaille/nipslock/internal/domain"
)

// TimeLayout is ISO-8601 with microseconds and an explicit +00:00 offset
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// New assembles a lock document. Entries are copied and sorted by NIP.
func New(source domain.Source, generatedAt time.Time, entries []domain.NIPEntry) domain.LockFile {
	sorted := make([]domain.NIPEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].NIP < sorted[j].NIP })

	return domain.LockFile{
		Source:         source,
		GeneratedAtUTC: FormatTime(generatedAt),
		NIPs:           sorted,
	}
}

// FormatTime renders t in UTC using TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Encode serializes a lock document to its canonical byte form
func Encode(doc domain.LockFile) ([]byte, error) {
	if doc.NIPs == nil {
		doc.NIPs = []domain.NIPEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode lockfile: %w", err)
	}

	// Encoder already terminates with exactly one newline
	return escapeNonASCII(buf.Bytes()), nil
}

// Decode parses a lock document
func Decode(data []byte) (domain.LockFile, error) {
	var doc domain.LockFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.LockFile{}, fmt.Errorf("decode lockfile: %w", err)
	}
	return doc, nil
}

// Read loads and parses a lockfile from disk
func Read(path string) (domain.LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.LockFile{}, fmt.Errorf("read lockfile: %w", err)
	}
	return Decode(data)
}

// Save encodes doc and writes it atomically to path.
// Failures are reported as *domain.WriteError.
func Save(path string, doc domain.LockFile) error {
	data, err := Encode(doc)
	if err != nil {
		return &domain.WriteError{Path: path, Err: err}
	}
	if err := WriteAtomic(path, data, 0o644); err != nil {
		return &domain.WriteError{Path: path, Err: err}
	}
	return nil
}

// escapeNonASCII rewrites DEL and every rune >= 0x80 as \uXXXX. Valid JSON from
// encoding/json only carries such runes inside string literals, so the
// substitution is safe on the whole document.
func escapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r < utf8.RuneSelf && r != 0x7f {
			out = append(out, data[0])
			data = data[1:]
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
		} else {
			out = fmt.Appendf(out, `\u%04x`, r)
		}
		data = data[size:]
	}
	return out
}
