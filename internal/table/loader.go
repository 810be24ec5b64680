package table

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format reads and writes tables for a family of file names.
type Format interface {
	CanHandle(filename string) bool
	Read(r io.Reader, opt Options) (*Table, error)
	Write(w io.Writer, t *Table, opt Options) error
}

var registry []Format

// Register adds a format. Formats registered earlier win.
func Register(f Format) {
	registry = append(registry, f)
}

// FormatFor selects the format for filename, falling back to delimited text.
func FormatFor(filename string) Format {
	for _, f := range registry {
		if f.CanHandle(filename) {
			return f
		}
	}
	return delimitedFormat{}
}

// OptionsFor fills in the delimiter implied by the file name when opt leaves
// it unset.
func OptionsFor(filename string, opt Options) Options {
	if opt.Delimiter == 0 {
		if strings.EqualFold(filepath.Ext(filename), ".tsv") {
			opt.Delimiter = '\t'
		} else {
			opt.Delimiter = ','
		}
	}
	return opt
}

// LoadFile opens path and parses it with the matching format. The file
// handle is closed before returning.
func LoadFile(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return FormatFor(path).Read(f, OptionsFor(path, opt))
}

type delimitedFormat struct{}

func (delimitedFormat) CanHandle(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

func (delimitedFormat) Read(r io.Reader, opt Options) (*Table, error) { return ReadCSV(r, opt) }

func (delimitedFormat) Write(w io.Writer, t *Table, opt Options) error {
	return WriteCSV(w, t, opt.Delimiter)
}

type xlsxFormat struct{}

func (xlsxFormat) CanHandle(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xlsx")
}

func (xlsxFormat) Read(r io.Reader, opt Options) (*Table, error) { return ReadXLSX(r, opt) }

func (xlsxFormat) Write(w io.Writer, t *Table, _ Options) error { return WriteXLSX(w, t) }

func init() {
	Register(xlsxFormat{})
	Register(delimitedFormat{})
}
