package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultNAValues are the cell spellings treated as missing besides the empty field.
var DefaultNAValues = []string{"NA", "N/A", "n/a", "NaN", "nan", "null", "NULL", "None", "#N/A", "<NA>"}

// Options controls how raw records become a typed Table.
type Options struct {
	// Delimiter for delimited text. If 0, '\t' for .tsv files and ',' otherwise.
	Delimiter rune
	// NAValues lists extra spellings of a missing cell. nil means DefaultNAValues;
	// an empty non-nil slice means only empty fields are missing.
	NAValues []string
	// Sheet selects the XLSX worksheet by name; empty means the first sheet.
	Sheet string
}

// DefaultOptions returns comma-delimited parsing with the default NA tokens.
func DefaultOptions() Options {
	return Options{Delimiter: ','}
}

func (o Options) naSet() map[string]struct{} {
	vals := o.NAValues
	if vals == nil {
		vals = DefaultNAValues
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

// FromRecords builds a Table from a header and data records, inferring each
// column's kind. Every record must have len(header) fields.
func FromRecords(header []string, records [][]string, opt Options) (*Table, error) {
	names := uniqueNames(header)
	na := opt.naSet()
	cols := make([]*Column, len(names))
	for j, name := range names {
		raw := make([]string, len(records))
		for i, rec := range records {
			if len(rec) != len(names) {
				return nil, fmt.Errorf("record %d has %d fields, want %d", i+1, len(rec), len(names))
			}
			raw[i] = rec[j]
		}
		cols[j] = inferColumn(name, raw, na)
	}
	return New(cols)
}

func inferColumn(name string, raw []string, na map[string]struct{}) *Column {
	trimmed := make([]string, len(raw))
	missing := make([]bool, len(raw))
	present := 0
	for i, s := range raw {
		t := strings.TrimSpace(s)
		trimmed[i] = t
		if _, isNA := na[t]; t == "" || isNA {
			missing[i] = true
			continue
		}
		present++
	}

	kind := KindFloat
	if present > 0 {
		kind = detectKind(trimmed, missing)
	}

	cells := make([]any, len(raw))
	for i := range raw {
		if missing[i] {
			continue
		}
		switch kind {
		case KindInteger:
			v, _ := strconv.ParseInt(trimmed[i], 10, 64)
			cells[i] = v
		case KindFloat:
			// "nan" parses even when it is not an NA token; it is still missing.
			if v, _ := strconv.ParseFloat(trimmed[i], 64); !math.IsNaN(v) {
				cells[i] = v
			}
		case KindBoolean:
			cells[i] = strings.EqualFold(trimmed[i], "true")
		default:
			cells[i] = raw[i]
		}
	}
	return &Column{Name: name, Kind: kind, cells: cells}
}

func detectKind(vals []string, missing []bool) Kind {
	isInt, isFloat, isBool := true, true, true
	for i, v := range vals {
		if missing[i] {
			continue
		}
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool && !strings.EqualFold(v, "true") && !strings.EqualFold(v, "false") {
			isBool = false
		}
		if !isInt && !isFloat && !isBool {
			return KindString
		}
	}
	switch {
	case isInt:
		return KindInteger
	case isFloat:
		return KindFloat
	case isBool:
		return KindBoolean
	}
	return KindString
}

// uniqueNames resolves empty and duplicate header names so the result is
// unique: "" becomes "Unnamed: <i>", repeats get ".1", ".2" suffixes.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			for n := 1; ; n++ {
				cand := fmt.Sprintf("%s.%d", name, n)
				if !seen[cand] {
					name = cand
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// FormatFloat renders f so it reads back as a float: integral values keep a
// trailing ".0" and very large or small magnitudes use an exponent.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
