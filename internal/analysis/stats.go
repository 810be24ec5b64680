package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/csvreport-cli/internal/table"
)

// ColumnSummary captures descriptive statistics for one column. Missing cells
// are excluded from every statistic. Pointer fields are nil when the statistic
// does not apply to the column or is undefined (e.g. std of a single value).
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Numeric bool   `json:"numeric"`
	Count   int    `json:"count"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Non-numeric columns
	Top  *string `json:"top,omitempty"`
	Freq *int    `json:"freq,omitempty"`
	// Numeric columns
	Mean   *float64 `json:"mean,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Q1     *float64 `json:"q1,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Q3     *float64 `json:"q3,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// Describe computes a ColumnSummary for every column of t, in column order.
func Describe(t *table.Table) []ColumnSummary {
	out := make([]ColumnSummary, 0, t.NumCols())
	for _, c := range t.Columns() {
		out = append(out, describeColumn(c))
	}
	return out
}

func describeColumn(c *table.Column) ColumnSummary {
	s := ColumnSummary{
		Name:    c.Name,
		Kind:    c.Kind.String(),
		Numeric: c.Kind.Numeric(),
		Missing: c.NullCount(),
		Unique:  UniqueCount(c),
	}
	s.Count = c.Len() - s.Missing

	if s.Numeric {
		vals := c.Floats()
		if len(vals) == 0 {
			return s
		}
		// Welford update
		var n int
		var mean, m2 float64
		for _, x := range vals {
			n++
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
		}
		s.Mean = ptr(mean)
		if n > 1 {
			s.Std = ptr(math.Sqrt(m2 / float64(n-1)))
		}
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		s.Min = ptr(sorted[0])
		s.Q1 = ptr(quantile(sorted, 0.25))
		s.Median = ptr(quantile(sorted, 0.5))
		s.Q3 = ptr(quantile(sorted, 0.75))
		s.Max = ptr(sorted[len(sorted)-1])
		return s
	}

	if s.Count == 0 {
		return s
	}
	counts := map[string]int{}
	var order []string
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		v := c.Format(i)
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	// earliest first occurrence wins ties
	top, freq := order[0], counts[order[0]]
	for _, v := range order[1:] {
		if counts[v] > freq {
			top, freq = v, counts[v]
		}
	}
	s.Top = &top
	s.Freq = &freq
	return s
}

// UniqueCount returns the number of distinct non-missing values in c.
func UniqueCount(c *table.Column) int {
	seen := make(map[any]struct{})
	for i := 0; i < c.Len(); i++ {
		if v := c.At(i); v != nil {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func ptr[T any](v T) *T { return &v }

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
