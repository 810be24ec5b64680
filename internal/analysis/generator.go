package analysis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/KaramelBytes/csvreport-cli/internal/table"
	"github.com/KaramelBytes/csvreport-cli/internal/utils"
)

// Options controls loading and report generation.
type Options struct {
	// Table configures parsing (delimiter, NA tokens, XLSX sheet).
	Table table.Options
	// PreviewRows is the number of head and tail rows in the report.
	PreviewRows int
	// DisplayPath replaces the input path on the report's File Path line.
	DisplayPath string
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns a five-row preview with delimiter detection by extension.
func DefaultOptions() Options {
	return Options{PreviewRows: 5}
}

// Generator loads one tabular file and produces a text report about it.
// A Generator is not safe for concurrent mutation; use one per input.
type Generator struct {
	path   string
	opt    Options
	tbl    *table.Table
	lines  []string
	logger *slog.Logger
}

// CleanResult is the outcome of Clean.
type CleanResult struct {
	Table   *table.Table
	Removed int
}

// NewGenerator constructs a Generator for path. Nothing is read until Load.
func NewGenerator(path string, opt Options) *Generator {
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 5
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		path:   path,
		opt:    opt,
		logger: logger.With(slog.String("component", "generator")),
	}
}

// Path returns the input path.
func (g *Generator) Path() string { return g.path }

// Table returns the loaded table, or false before a successful Load.
func (g *Generator) Table() (*table.Table, bool) { return g.tbl, g.tbl != nil }

// Load parses the input file. On failure the previously loaded state, if
// any, is kept.
func (g *Generator) Load() error {
	info, err := os.Stat(g.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, g.path)
		}
		return &ParseError{Path: g.path, Err: err}
	}
	if info.IsDir() {
		return &ParseError{Path: g.path, Err: errors.New("is a directory")}
	}
	t, err := table.LoadFile(g.path, g.opt.Table)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, g.path)
		}
		g.logger.Debug("load failed", slog.String("path", g.path), slog.String("error", err.Error()))
		return &ParseError{Path: g.path, Err: err}
	}
	g.tbl = t
	rows, cols := t.Shape()
	g.logger.Debug("file loaded", slog.String("path", g.path), slog.Int("rows", rows), slog.Int("cols", cols))
	return nil
}

// Summarize appends the report sections for the current table. Lines from
// earlier calls are kept, so calling it twice repeats every section; use
// ResetReport first for a fresh report.
func (g *Generator) Summarize() error {
	if g.tbl == nil {
		return ErrNotLoaded
	}
	t := g.tbl
	rows, cols := t.Shape()
	n := g.opt.PreviewRows

	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	add("CSV File Analysis Report", strings.Repeat("=", 50))
	shown := g.path
	if g.opt.DisplayPath != "" {
		shown = g.opt.DisplayPath
	}
	add("File Path: " + singleLine(shown))
	add(fmt.Sprintf("Shape (Rows, Columns): (%d, %d)", rows, cols))
	add("Column Names: "+quoteNames(t.Names()), "")

	names := make([]string, cols)
	kinds := make([]string, cols)
	missing := make([]string, cols)
	for j, c := range t.Columns() {
		names[j] = cellText(c.Name)
		kinds[j] = c.Kind.String()
		missing[j] = fmt.Sprint(c.NullCount())
	}
	add("Data Types:")
	add(renderSeries(names, kinds)...)
	add("")

	add(fmt.Sprintf("Top %d Rows:", n))
	add(renderRows(t.Head(n), 0)...)
	add("")

	tail := t.Tail(n)
	add(fmt.Sprintf("Bottom %d Rows:", n))
	add(renderRows(tail, rows-tail.NumRows())...)
	add("")

	sums := Describe(t)
	add("Summary Statistics:")
	add(renderStats(sums)...)
	add("")

	add("Unique Values Per Column:")
	for j, s := range sums {
		add(fmt.Sprintf("%s: %d unique values", names[j], s.Unique))
	}
	add("")

	add("Missing Values Per Column:")
	add(renderSeries(names, missing)...)
	add("")

	g.lines = append(g.lines, lines...)
	g.logger.Debug("report generated", slog.Int("lines", len(lines)), slog.Int("total_lines", len(g.lines)))
	return nil
}

// Report returns a copy of the accumulated report lines.
func (g *Generator) Report() []string {
	out := make([]string, len(g.lines))
	copy(out, g.lines)
	return out
}

// ResetReport discards accumulated report lines.
func (g *Generator) ResetReport() { g.lines = nil }

// Clean returns a copy of the table without rows that have a missing cell.
// The loaded table is not modified.
func (g *Generator) Clean() (*CleanResult, error) {
	if g.tbl == nil {
		return nil, ErrNotLoaded
	}
	cleaned := g.tbl.DropNull()
	res := &CleanResult{Table: cleaned, Removed: g.tbl.NumRows() - cleaned.NumRows()}
	g.logger.Debug("data cleaned", slog.Int("rows_removed", res.Removed), slog.Int("rows_kept", cleaned.NumRows()))
	return res, nil
}

// WriteReport writes the accumulated report, each line terminated by "\n".
func (g *Generator) WriteReport(w io.Writer) error {
	if err := g.writeLines(w); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func (g *Generator) writeLines(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, l := range g.lines {
		if _, err := bw.WriteString(l); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveReport writes the accumulated report to path.
func (g *Generator) SaveReport(path string) error {
	err := utils.WriteFileAtomic(path, g.writeLines)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	g.logger.Debug("report saved", slog.String("path", path))
	return nil
}

// SaveTable writes t to path in the format implied by its extension
// (delimited text unless it ends in .xlsx).
func SaveTable(path string, t *table.Table, opt table.Options) error {
	format := table.FormatFor(path)
	opt = table.OptionsFor(path, opt)
	err := utils.WriteFileAtomic(path, func(w io.Writer) error { return format.Write(w, t, opt) })
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// ReadReport reads report lines back from r.
func ReadReport(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return lines, nil
}
