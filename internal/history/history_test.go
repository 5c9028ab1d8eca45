package history

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.NotEmpty(t, v1)
	assert.Equal(t, v1, v2)
}

func TestRecord_GetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	content := strings.Repeat("吾輩は猫である。名前はまだ無い。\n", 200)
	snap, recorded, err := s.Record(Snapshot{Path: "/docs/neko.txt", Origin: OriginSave, Content: content})
	require.NoError(t, err)
	require.True(t, recorded)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "neko.txt", snap.Name)
	assert.Equal(t, len(content), snap.Size)

	got, err := s.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, OriginSave, got.Origin)
	assert.True(t, got.CreatedAt.Equal(snap.CreatedAt), "CreatedAt %v != %v", got.CreatedAt, snap.CreatedAt)
}

func TestRecord_ContentIsCompressed(t *testing.T) {
	s := openTestStore(t)

	content := strings.Repeat("abcdefgh", 4096)
	snap, _, err := s.Record(Snapshot{Path: "/a.txt", Content: content})
	require.NoError(t, err)

	var stored int
	require.NoError(t, s.db.QueryRow("SELECT length(content) FROM snapshots WHERE id = ?", snap.ID).Scan(&stored))
	assert.Less(t, stored, len(content)/10)
}

func TestRecord_SkipsUnchangedContent(t *testing.T) {
	s := openTestStore(t)

	first, recorded, err := s.Record(Snapshot{Path: "/a.txt", Origin: OriginOpen, Content: "same"})
	require.NoError(t, err)
	require.True(t, recorded)

	again, recorded, err := s.Record(Snapshot{Path: "/a.txt", Origin: OriginSave, Content: "same"})
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, first.ID, again.ID)

	list, err := s.List("/a.txt", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecord_TrimsToMaxPerPath(t *testing.T) {
	s := openTestStore(t, WithMaxPerPath(3))

	for i := 0; i < 5; i++ {
		_, _, err := s.Record(Snapshot{Path: "/a.txt", Content: fmt.Sprintf("v%d", i)})
		require.NoError(t, err)
	}
	_, _, err := s.Record(Snapshot{Path: "/b.txt", Content: "other"})
	require.NoError(t, err)

	list, err := s.List("/a.txt", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	var contents []string
	for _, snap := range list {
		full, err := s.Get(snap.ID)
		require.NoError(t, err)
		contents = append(contents, full.Content)
		assert.Empty(t, snap.Content, "List must not carry content")
	}
	assert.Equal(t, []string{"v4", "v3", "v2"}, contents)

	other, err := s.List("/b.txt", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestRecord_DefaultRetention(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < DefaultMaxPerPath+4; i++ {
		_, _, err := s.Record(Snapshot{Path: "/a.txt", Content: fmt.Sprintf("v%d", i)})
		require.NoError(t, err)
	}
	list, err := s.List("/a.txt", 0)
	require.NoError(t, err)
	assert.Len(t, list, DefaultMaxPerPath)
}

func TestRecord_EmptyPathRejected(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Record(Snapshot{Content: "x"})
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecent_NewestPathFirst(t *testing.T) {
	s := openTestStore(t)
	for i, p := range []string{"/a.txt", "/b.md", "/a.txt", "/c.json"} {
		_, _, err := s.Record(Snapshot{Path: p, Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	entries, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/c.json", entries[0].Path)
	assert.Equal(t, "/a.txt", entries[1].Path)
	assert.Equal(t, 2, entries[1].Snapshots)
	assert.Equal(t, "/b.md", entries[2].Path)

	limited, err := s.Recent(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSearch_Fuzzy(t *testing.T) {
	s := openTestStore(t)
	for _, p := range []string{"/home/u/notes/todo.md", "/home/u/README.md", "/home/u/notes/meeting.txt"} {
		_, _, err := s.Record(Snapshot{Path: p, Content: p})
		require.NoError(t, err)
	}

	got, err := s.Search("notes", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Contains(t, e.Path, "/notes/")
	}

	got, err = s.Search("README", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/home/u/README.md", got[0].Path)

	got, err = s.Search("zzz", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search("", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestForget(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		_, _, err := s.Record(Snapshot{Path: "/a.txt", Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}
	n, err := s.Forget("/a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	list, err := s.List("/a.txt", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
