// Package syncer runs one NIP lock sync: parse the identifier list, fetch
// each NIP in ascending order, derive its metadata and write the lockfile.
// The first failure aborts the run before anything is written.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pbaille/nipslock/internal/domain"
	"github.com/pbaille/nipslock/internal/extract"
	"github.com/pbaille/nipslock/internal/lockfile"
	"github.com/pbaille/nipslock/internal/nips"
)

// Fetcher retrieves the raw text of a NIP at a revision
type Fetcher interface {
	URL(nip int, ref string) string
	Fetch(ctx context.Context, nip int, ref string) (string, error)
}

// Journal records completed runs. Optional.
type Journal interface {
	AddRun(repo, ref, out string, generatedAt time.Time, entries []domain.NIPEntry) (*domain.Run, error)
}

// Request describes one sync
type Request struct {
	NIPs string // comma-separated list as typed by the user
	Repo string
	Ref  string
	Out  string
}

// Result is what a successful sync produced
type Result struct {
	LockFile domain.LockFile
	RunID    string
}

// Syncer wires the pipeline stages together
type Syncer struct {
	fetcher Fetcher
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Syncer
type Option func(*Syncer)

// WithJournal records every successful run in j
func WithJournal(j Journal) Option {
	return func(s *Syncer) { s.journal = j }
}

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithClock overrides the generation timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New creates a Syncer around f
func New(f Fetcher, opts ...Option) *Syncer {
	s := &Syncer{fetcher: f, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run executes the sync described by req
func (s *Syncer) Run(ctx context.Context, req Request) (*Result, error) {
	ids, err := nips.ParseList(req.NIPs)
	if err != nil {
		return nil, err
	}

	entries, err := s.collect(ctx, ids, req.Ref)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	doc := lockfile.New(domain.Source{Repo: req.Repo, Ref: req.Ref}, generatedAt, entries)
	if err := lockfile.Save(req.Out, doc); err != nil {
		return nil, err
	}
	s.logger.Info("lockfile written",
		slog.String("path", req.Out),
		slog.String("ref", req.Ref),
		slog.Int("count", len(doc.NIPs)))

	res := &Result{LockFile: doc}
	if s.journal != nil {
		run, err := s.journal.AddRun(req.Repo, req.Ref, req.Out, generatedAt, doc.NIPs)
		if err != nil {
			// the lockfile is already in place; the journal is secondary
			s.logger.Warn("journal write failed", slog.String("error", err.Error()))
		} else {
			res.RunID = run.ID
		}
	}

	return res, nil
}

// collect fetches ids one at a time and stops at the first failure
func (s *Syncer) collect(ctx context.Context, ids []int, ref string) ([]domain.NIPEntry, error) {
	entries := make([]domain.NIPEntry, 0, len(ids))
	for _, nip := range ids {
		url := s.fetcher.URL(nip, ref)
		text, err := s.fetcher.Fetch(ctx, nip, ref)
		if err != nil {
			var ferr *domain.FetchError
			if !errors.As(err, &ferr) {
				err = &domain.FetchError{NIP: nip, URL: url, Err: err}
			}
			return nil, err
		}

		s.logger.Debug("fetched",
			slog.String("nip", nips.Label(nip)),
			slog.String("url", url),
			slog.Int("bytes", len(text)))

		entries = append(entries, extract.Entry(nip, url, text))
	}
	return entries, nil
}

// Summary is the one-line success message printed by the CLI
func Summary(res *Result, out string) string {
	return fmt.Sprintf("Wrote %d NIPs to %s", len(res.LockFile.NIPs), out)
}
