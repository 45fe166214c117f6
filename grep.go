// Regular-expression scan over raw row bytes.
//
// Grep streams every live row through a compiled regex without touching any
// index, the same convenience-scan role the teacher's Search fills for
// whole-document content matching.
package isam

import "regexp"

// GrepOptions controls a Grep scan.
type GrepOptions struct {
	CaseSensitive bool
	Limit         int
}

// GrepMatch is one row whose bytes matched the pattern.
type GrepMatch struct {
	ID   RowID
	Data []byte
}

// Grep scans every live row and returns those whose bytes match pattern.
func (t *Table) Grep(pattern string, opts GrepOptions) ([]GrepMatch, error) {
	expr := pattern
	if !opts.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	var out []GrepMatch
	for row, err := range t.Rows() {
		if err != nil {
			return nil, err
		}
		if re.Match(row.Data) {
			out = append(out, GrepMatch{ID: row.ID, Data: append([]byte(nil), row.Data...)})
			if opts.Limit > 0 && len(out) >= opts.Limit {
				break
			}
		}
	}
	return out, nil
}
