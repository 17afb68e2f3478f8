package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/nipslock/internal/domain"
	"github.com/pbaille/nipslock/internal/extract"
	"github.com/pbaille/nipslock/internal/fetcher"
	"github.com/pbaille/nipslock/internal/lockfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves fixed documents and records the fetch order
type stubFetcher struct {
	docs  map[int]string
	fail  map[int]error
	calls []int
}

func (f *stubFetcher) URL(nip int, ref string) string {
	return fetcher.BuildURL(fetcher.DefaultBaseURL, ref, nip)
}

func (f *stubFetcher) Fetch(_ context.Context, nip int, _ string) (string, error) {
	f.calls = append(f.calls, nip)
	if err, ok := f.fail[nip]; ok {
		return "", err
	}
	text, ok := f.docs[nip]
	if !ok {
		return "", fmt.Errorf("no stub for %d", nip)
	}
	return text, nil
}

type stubJournal struct {
	runs []domain.Run
	err  error
}

func (j *stubJournal) AddRun(repo, ref, out string, at time.Time, entries []domain.NIPEntry) (*domain.Run, error) {
	if j.err != nil {
		return nil, j.err
	}
	run := domain.Run{ID: fmt.Sprintf("run-%d", len(j.runs)+1), Repo: repo, Ref: ref, Out: out, GeneratedAt: at, Entries: entries}
	j.runs = append(j.runs, run)
	return &run, nil
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

const (
	doc1  = "NIP-01\n======\n\n# Basic protocol flow description\n\n`final` `mandatory`\n"
	doc23 = "NIP-23\n======\n\n# Long-form Content\n\n`draft` `optional`\n"
)

func TestRun_EndToEnd(t *testing.T) {
	f := &stubFetcher{docs: map[int]string{1: doc1, 23: doc23}}
	out := filepath.Join(t.TempDir(), "nips.lock.json")

	s := New(f, WithClock(func() time.Time { return fixedNow }))
	res, err := s.Run(context.Background(), Request{NIPs: "23, 1", Repo: "nostr-protocol/nips", Ref: "a1b2c3", Out: out})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 23}, f.calls)

	doc, err := lockfile.Read(out)
	require.NoError(t, err)
	assert.Equal(t, res.LockFile, doc)
	assert.Equal(t, domain.Source{Repo: "nostr-protocol/nips", Ref: "a1b2c3"}, doc.Source)
	assert.Equal(t, "2026-10-17T12:00:00.000000+00:00", doc.GeneratedAtUTC)

	require.Len(t, doc.NIPs, 2)
	assert.Equal(t, domain.NIPEntry{
		NIP:           1,
		URL:           "https://raw.githubusercontent.com/nostr-protocol/nips/a1b2c3/01.md",
		Title:         "Basic protocol flow description",
		StatusHint:    domain.StatusActive,
		ContentSHA256: extract.Digest(doc1),
	}, doc.NIPs[0])
	assert.Equal(t, 23, doc.NIPs[1].NIP)
	assert.Equal(t, "Long-form Content", doc.NIPs[1].Title)
	assert.Equal(t, domain.StatusDraft, doc.NIPs[1].StatusHint)
	assert.Equal(t, extract.Digest(doc23), doc.NIPs[1].ContentSHA256)

	assert.Equal(t, "Wrote 2 NIPs to "+out, Summary(res, out))
}

func TestRun_DeterministicApartFromTimestamp(t *testing.T) {
	dir := t.TempDir()
	f := &stubFetcher{docs: map[int]string{1: doc1, 23: doc23}}
	s := New(f, WithClock(func() time.Time { return fixedNow }))

	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	_, err := s.Run(context.Background(), Request{NIPs: "1,23", Repo: "r", Ref: "master", Out: a})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), Request{NIPs: "23,1,1", Repo: "r", Ref: "master", Out: b})
	require.NoError(t, err)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestRun_FetchFailureAborts(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nips.lock.json")
	require.NoError(t, os.WriteFile(out, []byte("previous\n"), 0o644))

	transport := errors.New("connection reset by peer")
	f := &stubFetcher{
		docs: map[int]string{1: doc1, 23: doc23},
		fail: map[int]error{7: transport},
	}
	j := &stubJournal{}

	_, err := New(f, WithJournal(j)).Run(context.Background(), Request{NIPs: "1,7,23", Repo: "r", Ref: "master", Out: out})
	require.Error(t, err)

	var ferr *domain.FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 7, ferr.NIP)
	assert.ErrorIs(t, err, transport)
	assert.Contains(t, err.Error(), "NIP-07")

	// stops at the failing NIP
	assert.Equal(t, []int{1, 7}, f.calls)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data))
	assert.Empty(t, j.runs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_ValidationBeforeNetwork(t *testing.T) {
	f := &stubFetcher{}
	out := filepath.Join(t.TempDir(), "lock.json")

	for _, raw := range []string{"", ",", "1,abc"} {
		_, err := New(f).Run(context.Background(), Request{NIPs: raw, Repo: "r", Ref: "master", Out: out})
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr), "input %q", raw)
	}

	assert.Empty(t, f.calls)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_WriteFailure(t *testing.T) {
	f := &stubFetcher{docs: map[int]string{1: doc1}}
	out := filepath.Join(t.TempDir(), "no-such-dir", "lock.json")
	j := &stubJournal{}

	_, err := New(f, WithJournal(j)).Run(context.Background(), Request{NIPs: "1", Repo: "r", Ref: "master", Out: out})
	var werr *domain.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, out, werr.Path)
	assert.Empty(t, j.runs)
}

func TestRun_Journal(t *testing.T) {
	f := &stubFetcher{docs: map[int]string{1: doc1, 23: doc23}}
	out := filepath.Join(t.TempDir(), "lock.json")
	j := &stubJournal{}

	res, err := New(f, WithJournal(j), WithClock(func() time.Time { return fixedNow })).
		Run(context.Background(), Request{NIPs: "1,23", Repo: "nostr-protocol/nips", Ref: "master", Out: out})
	require.NoError(t, err)

	require.Len(t, j.runs, 1)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, fixedNow, j.runs[0].GeneratedAt)
	assert.Equal(t, res.LockFile.NIPs, j.runs[0].Entries)
}

func TestRun_JournalFailureKeepsLockfile(t *testing.T) {
	f := &stubFetcher{docs: map[int]string{1: doc1}}
	out := filepath.Join(t.TempDir(), "lock.json")
	j := &stubJournal{err: errors.New("disk full")}

	res, err := New(f, WithJournal(j)).Run(context.Background(), Request{NIPs: "1", Repo: "r", Ref: "master", Out: out})
	require.NoError(t, err)
	assert.Empty(t, res.RunID)

	_, err = lockfile.Read(out)
	assert.NoError(t, err)
}
