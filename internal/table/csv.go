package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrNoColumns is returned for input without a header row.
var ErrNoColumns = errors.New("no columns to parse from file")

const utf8BOM = "\ufeff"

// ReadCSV parses delimited text with a header row. Every data row must have as
// many fields as the header and all content must be valid UTF-8.
func ReadCSV(r io.Reader, opt Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = opt.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	// FieldsPerRecord 0: the header fixes the width for every row.
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if err := checkUTF8(header, 1); err != nil {
		return nil, err
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if err := checkUTF8(rec, len(records)+2); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return FromRecords(header, records, opt)
}

func checkUTF8(rec []string, line int) error {
	for i, f := range rec {
		if !utf8.ValidString(f) {
			return fmt.Errorf("line %d, field %d: invalid UTF-8", line, i+1)
		}
	}
	return nil
}

// WriteCSV writes the header and rows of t using delim (',' if 0). Missing
// cells are written as empty fields.
func WriteCSV(w io.Writer, t *Table, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	for i, rec := range t.Records() {
		// A lone empty field would be a blank line, which readers skip.
		if len(rec) == 1 && rec[0] == "" {
			cw.Flush()
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("write record %d: %w", i, err)
			}
			continue
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
