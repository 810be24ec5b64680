// Package session keeps one isolated workspace per uploaded file: a unique
// directory holding the upload, its report and its cleaned copy.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	"github.com/KaramelBytes/csvreport-cli/internal/table"
	"github.com/KaramelBytes/csvreport-cli/internal/utils"
)

const (
	dirPrefix       = "csvreport-"
	reportFileName  = "csv_analysis_report.txt"
	cleanedFileName = "cleaned_output.csv"
	defaultUpload   = "upload.csv"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session is one upload and its analysis. Methods are safe for concurrent use.
type Session struct {
	ID        string
	FileName  string
	CreatedAt time.Time

	dir      string
	mu       sync.Mutex
	gen      *analysis.Generator
	cleaned  *analysis.CleanResult
	lastUsed time.Time
}

// Dir returns the session's private directory.
func (s *Session) Dir() string { return s.dir }

// Table returns the loaded table.
func (s *Session) Table() *table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _ := s.gen.Table()
	return t
}

// Report returns the report lines.
func (s *Session) Report() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.Report()
}

// Summaries returns per-column statistics of the loaded table.
func (s *Session) Summaries() []analysis.ColumnSummary {
	return analysis.Describe(s.Table())
}

// ReportPath is the on-disk report written when the session was created.
func (s *Session) ReportPath() string { return filepath.Join(s.dir, reportFileName) }

// Clean drops rows with missing values and writes the result next to the
// upload. The result is computed once and reused.
func (s *Session) Clean() (*analysis.CleanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleaned != nil {
		return s.cleaned, nil
	}
	res, err := s.gen.Clean()
	if err != nil {
		return nil, err
	}
	if err := analysis.SaveTable(filepath.Join(s.dir, cleanedFileName), res.Table, table.Options{}); err != nil {
		return nil, err
	}
	s.cleaned = res
	return res, nil
}

// CleanedPath returns the cleaned file, or false if Clean has not run.
func (s *Session) CleanedPath() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filepath.Join(s.dir, cleanedFileName), s.cleaned != nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Options configures a Store.
type Options struct {
	// Dir is the parent of the per-session directories. Defaults to os.TempDir().
	Dir string
	// TTL is how long an idle session lives. Zero disables expiry.
	TTL time.Duration
	// Analysis is passed to every Generator.
	Analysis analysis.Options
	Logger   *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store owns every live session.
type Store struct {
	opt    Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewStore creates the base directory if needed.
func NewStore(opt Options) (*Store, error) {
	if opt.Dir == "" {
		opt.Dir = os.TempDir()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if err := utils.EnsureDir(opt.Dir); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}
	return &Store{
		opt:      opt,
		logger:   opt.Logger.With(slog.String("component", "session_store")),
		sessions: make(map[string]*Session),
	}, nil
}

// Create stores the upload in a fresh directory, loads it and generates its
// report. On any failure the directory is removed and no session is kept.
func (s *Store) Create(name string, r io.Reader) (sess *Session, err error) {
	id := uuid.NewString()
	dir := filepath.Join(s.opt.Dir, dirPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	fileName := uploadName(name)
	input := filepath.Join(dir, fileName)
	if err := utils.WriteFileAtomic(input, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	opt := s.opt.Analysis
	opt.Logger = s.opt.Logger
	// The report is served to the client; keep the server's temp layout out of it.
	opt.DisplayPath = fileName
	gen := analysis.NewGenerator(input, opt)
	if err := gen.Load(); err != nil {
		return nil, err
	}
	if err := gen.Summarize(); err != nil {
		return nil, err
	}
	if err := gen.SaveReport(filepath.Join(dir, reportFileName)); err != nil {
		return nil, err
	}

	now := s.opt.Now()
	sess = &Session{ID: id, FileName: fileName, CreatedAt: now, dir: dir, gen: gen, lastUsed: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session store closed")
	}
	s.sessions[id] = sess
	s.logger.Debug("session created", slog.String("session_id", id), slog.String("file", fileName))
	return sess, nil
}

// Get returns a live session and marks it used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(s.opt.Now())
	return sess, nil
}

// Remove deletes a session and its files.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.discard(sess)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IDs returns live session IDs in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	if s.opt.TTL <= 0 {
		return 0
	}
	cutoff := s.opt.Now().Add(-s.opt.TTL)
	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		if err := s.discard(sess); err != nil {
			s.logger.Warn("failed to remove expired session", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired sessions removed", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}

// Close removes every session. Later Creates fail.
func (s *Store) Close() error {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		if err := s.discard(sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) discard(sess *Session) error {
	if err := os.RemoveAll(sess.dir); err != nil {
		return fmt.Errorf("remove session %s: %w", sess.ID, err)
	}
	s.logger.Debug("session removed", slog.String("session_id", sess.ID))
	return nil
}

// uploadName keeps only the base name of a client-supplied file name and
// keeps it clear of the session's own output files.
func uploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case "", ".", "/", "..":
		return defaultUpload
	}
	if strings.HasPrefix(name, ".") {
		name = "upload" + name
	}
	if name == reportFileName || name == cleanedFileName {
		name = "upload-" + name
	}
	return name
}
