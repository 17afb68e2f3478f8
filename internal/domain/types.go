package domain

import "time"

// StatusHint is a coarse, keyword-based maturity classification of a NIP
type StatusHint string

const (
	StatusDeprecated StatusHint = "deprecated"
	StatusDraft      StatusHint = "draft-or-proposed"
	StatusActive     StatusHint = "active-or-unspecified"
)

// NIPEntry represents one fetched NIP at one revision
type NIPEntry struct {
	NIP           int        `json:"nip"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	StatusHint    StatusHint `json:"status_hint"`
	ContentSHA256 string     `json:"content_sha256"`
}

// Source identifies the repository and revision entries were fetched from
type Source struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref"`
}

// LockFile is the serialized sync result
type LockFile struct {
	Source         Source     `json:"source"`
	GeneratedAtUTC string     `json:"generated_at_utc"`
	NIPs           []NIPEntry `json:"nips"`
}

// Run is a completed sync recorded in the journal
type Run struct {
	ID          string     `json:"id"`
	Repo        string     `json:"repo"`
	Ref         string     `json:"ref"`
	Out         string     `json:"out"`
	GeneratedAt time.Time  `json:"generated_at"`
	Entries     []NIPEntry `json:"entries,omitempty"`
}
