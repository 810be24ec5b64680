package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	"github.com/KaramelBytes/csvreport-cli/internal/logging"
)

const sample = "a,b,c\n1,2,\n3,,6\n7,8,9\n,11,12\n"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, err := NewStore(Options{
		Dir:      t.TempDir(),
		TTL:      ttl,
		Analysis: analysis.DefaultOptions(),
		Logger:   logging.Discard(),
		Now:      clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestCreateWritesIsolatedDir(t *testing.T) {
	s, _ := newStore(t, 0)

	a, err := s.Create("data.csv", strings.NewReader(sample))
	require.NoError(t, err)
	b, err := s.Create("data.csv", strings.NewReader(sample))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.True(t, strings.HasPrefix(filepath.Base(a.Dir()), "csvreport-"))
	assert.Equal(t, "data.csv", a.FileName)
	assert.FileExists(t, filepath.Join(a.Dir(), "data.csv"))
	assert.FileExists(t, a.ReportPath())
	assert.Equal(t, 2, s.Len())

	rows, cols := a.Table().Shape()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)

	onDisk, err := os.ReadFile(a.ReportPath())
	require.NoError(t, err)
	assert.Equal(t, strings.Join(a.Report(), "\n")+"\n", string(onDisk))
}

func TestReportShowsClientFileName(t *testing.T) {
	s, _ := newStore(t, 0)

	sess, err := s.Create("sales.csv", strings.NewReader(sample))
	require.NoError(t, err)

	assert.Contains(t, sess.Report(), "File Path: sales.csv")
	onDisk, err := os.ReadFile(sess.ReportPath())
	require.NoError(t, err)
	assert.NotContains(t, string(onDisk), sess.Dir())
	assert.NotContains(t, string(onDisk), s.opt.Dir)
}

func TestCreateParseFailureCleansUp(t *testing.T) {
	s, _ := newStore(t, 0)

	_, err := s.Create("bad.csv", strings.NewReader("a,b\n1,2,3\n"))
	var pe *analysis.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, 0, s.Len())

	entries, err := os.ReadDir(s.opt.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed upload must not leave files behind")
}

func TestCreateSanitizesName(t *testing.T) {
	s, _ := newStore(t, 0)

	sess, err := s.Create(`..\..\evil/../x.csv`, strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "x.csv", sess.FileName)

	sess, err = s.Create("", strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "upload.csv", sess.FileName)

	sess, err = s.Create("cleaned_output.csv", strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "upload-cleaned_output.csv", sess.FileName)
}

func TestCleanWritesFileOnce(t *testing.T) {
	s, _ := newStore(t, 0)
	sess, err := s.Create("data.csv", strings.NewReader(sample))
	require.NoError(t, err)

	_, ok := sess.CleanedPath()
	assert.False(t, ok)

	res, err := sess.Clean()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Removed)

	path, ok := sess.CleanedPath()
	require.True(t, ok)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n7,8,9\n", string(b))

	again, err := sess.Clean()
	require.NoError(t, err)
	assert.Same(t, res, again)
}

func TestGetAndRemove(t *testing.T) {
	s, _ := newStore(t, 0)
	sess, err := s.Create("data.csv", strings.NewReader(sample))
	require.NoError(t, err)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, s.Remove(sess.ID))
	assert.NoDirExists(t, sess.Dir())

	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove(sess.ID), ErrNotFound)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	s, clock := newStore(t, 10*time.Minute)
	old, err := s.Create("old.csv", strings.NewReader(sample))
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	fresh, err := s.Create("fresh.csv", strings.NewReader(sample))
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.NoDirExists(t, old.Dir())
	assert.DirExists(t, fresh.Dir())

	// Access keeps a session alive.
	clock.Advance(8 * time.Minute)
	_, err = s.Get(fresh.ID)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, s.Sweep())
	assert.Equal(t, []string{fresh.ID}, s.IDs())
}

func TestCloseRemovesEverything(t *testing.T) {
	s, _ := newStore(t, 0)
	sess, err := s.Create("data.csv", strings.NewReader(sample))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoDirExists(t, sess.Dir())
	assert.Equal(t, 0, s.Len())

	_, err = s.Create("late.csv", strings.NewReader(sample))
	assert.Error(t, err)
	entries, err := os.ReadDir(s.opt.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentCreate(t *testing.T) {
	s, _ := newStore(t, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create("data.csv", strings.NewReader(sample))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}
