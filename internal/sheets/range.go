package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a rectangular A1-notation range such as "A2:F" or "B1:D100".
// Rows are 1-based, columns 0-based. EndRow 0 and EndCol -1 mean open-ended.
type Range struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// All covers the whole sheet, header row included.
var All = Range{StartRow: 1, EndCol: -1}

// MustRange is ParseRange that panics; for constants.
func MustRange(a1 string) Range {
	r, err := ParseRange(a1)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRange parses "A2:F", "A:F", "A2:F100" or "" (whole sheet).
func ParseRange(a1 string) (Range, error) {
	a1 = strings.TrimSpace(a1)
	if a1 == "" {
		return All, nil
	}
	if i := strings.LastIndexByte(a1, '!'); i >= 0 {
		a1 = a1[i+1:]
	}
	parts := strings.Split(a1, ":")
	if len(parts) > 2 {
		return Range{}, fmt.Errorf("range %q: too many ':'", a1)
	}
	startCol, startRow, err := parseCell(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", a1, err)
	}
	hasCol := startCol >= 0
	if !hasCol {
		startCol = 0
	}
	if startRow == 0 {
		startRow = 1
	}
	r := Range{StartRow: startRow, StartCol: startCol, EndCol: -1}
	if len(parts) == 1 {
		if hasCol {
			r.EndCol = startCol
		}
		return r, nil
	}
	endCol, endRow, err := parseCell(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", a1, err)
	}
	r.EndCol = endCol
	r.EndRow = endRow
	if r.EndCol >= 0 && r.EndCol < r.StartCol {
		return Range{}, fmt.Errorf("range %q: end column before start column", a1)
	}
	if r.EndRow > 0 && r.EndRow < r.StartRow {
		return Range{}, fmt.Errorf("range %q: end row before start row", a1)
	}
	return r, nil
}

// parseCell splits "AB12" into column index 27 and row 12. A missing part is -1 / 0.
func parseCell(s string) (col, row int, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	col = -1
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		if col < 0 {
			col = 0
		}
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if col > 0 {
		col--
	}
	if i < len(s) {
		row, err = strconv.Atoi(s[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad cell %q", s)
		}
	}
	if col < 0 && row == 0 {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	return col, row, nil
}

// Offset is the number of leading sheet rows the range skips.
func (r Range) Offset() int {
	if r.StartRow <= 1 {
		return 0
	}
	return r.StartRow - 1
}

// Limit is the maximum number of rows the range covers, or -1.
func (r Range) Limit() int {
	if r.EndRow <= 0 {
		return -1
	}
	return r.EndRow - r.Offset()
}

// Width is the number of columns covered, or -1 when open-ended.
func (r Range) Width() int {
	if r.EndCol < 0 {
		return -1
	}
	return r.EndCol - r.StartCol + 1
}

// Project cuts row down to the range's columns and drops trailing empty cells.
func (r Range) Project(row Row) Row {
	if r.StartCol >= len(row) {
		return Row{}
	}
	end := len(row)
	if r.EndCol >= 0 && r.EndCol+1 < end {
		end = r.EndCol + 1
	}
	out := make(Row, end-r.StartCol)
	copy(out, row[r.StartCol:end])
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// Apply selects the range out of a whole sheet.
func (r Range) Apply(all []Row) []Row {
	off := r.Offset()
	if off >= len(all) {
		return []Row{}
	}
	rows := all[off:]
	if lim := r.Limit(); lim >= 0 && lim < len(rows) {
		rows = rows[:lim]
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = r.Project(row)
	}
	return out
}

// Fit prepares a row for appending into the range: columns before StartCol are
// left blank and cells past the range width are dropped.
func (r Range) Fit(row Row) Row {
	if w := r.Width(); w >= 0 && len(row) > w {
		row = row[:w]
	}
	if r.StartCol == 0 {
		out := make(Row, len(row))
		copy(out, row)
		return out
	}
	out := make(Row, r.StartCol+len(row))
	copy(out[r.StartCol:], row)
	return out
}
