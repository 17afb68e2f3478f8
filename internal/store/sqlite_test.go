package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/nipslock/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntries() []domain.NIPEntry {
	return []domain.NIPEntry{
		{NIP: 1, URL: "https://example.com/master/01.md", Title: "Basics", StatusHint: domain.StatusActive, ContentSHA256: "aa"},
		{NIP: 23, URL: "https://example.com/master/23.md", Title: "Long-form", StatusHint: domain.StatusDraft, ContentSHA256: "bb"},
	}
}

func TestAddAndGetRun(t *testing.T) {
	s := setupTestStore(t)

	at := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	run, err := s.AddRun("nostr-protocol/nips", "master", "nips.lock.json", at, sampleEntries())
	require.NoError(t, err)
	require.Len(t, run.ID, 36)

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "master", got.Ref)
	assert.Equal(t, "nips.lock.json", got.Out)
	assert.True(t, at.Equal(got.GeneratedAt))
	assert.Equal(t, sampleEntries(), got.Entries)
}

func TestFindRun(t *testing.T) {
	s := setupTestStore(t)

	run, err := s.AddRun("nostr-protocol/nips", "master", "a.json", time.Now(), nil)
	require.NoError(t, err)

	got, err := s.FindRun(run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Empty(t, got.Entries)

	_, err = s.FindRun("zzzzzzzz")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	// prefixes are literal, not patterns
	for _, prefix := range []string{"", "%", "_", run.ID[:4] + "%", "________"} {
		_, err = s.FindRun(prefix)
		assert.ErrorIs(t, err, ErrRunNotFound, "prefix %q", prefix)
	}

	got, err = s.FindRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, ref := range []string{"v1", "v2", "v3"} {
		_, err := s.AddRun("nostr-protocol/nips", ref, "lock.json", base.Add(time.Duration(i)*time.Hour), sampleEntries())
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "v3", runs[0].Ref)
	assert.Equal(t, "v2", runs[1].Ref)
	assert.Nil(t, runs[0].Entries)
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.AddRun("nostr-protocol/nips", "master", "lock.json", time.Now(), sampleEntries())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
