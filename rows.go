// Sequential row enumeration with no active index.
//
// Rows yields every live row in physical data-file order, the same
// direct-scan idiom as the teacher's All: walk the data file once rather
// than following index pointers, skipping tombstoned slots by their flag
// byte instead of any index lookup.
package isam

import "iter"

// Row is a row id paired with its live bytes, yielded by Rows.
type Row struct {
	ID   RowID
	Data []byte
}

// Rows yields every live row in ascending row id order. Callers consume
// lazily via range and may break early to stop the scan.
func (t *Table) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if err := t.enter(LockShared, true); err != nil {
			yield(Row{}, err)
			return
		}
		defer t.exit()

		t.scanLiveRows(yield)
	}
}

// scanLiveRows walks the data file directly, yielding every live row in
// ascending row id order, without taking or releasing PRIMARY itself. Rows
// wraps this with its own lock bracket for public use; callers that already
// hold PRIMARY for the duration of a larger operation (AddIndex rebuilding
// an index, for instance) call this directly instead, so the scan can't
// have PRIMARY released out from under it mid-rebuild.
func (t *Table) scanLiveRows(yield func(Row, error) bool) {
	count := t.dict.RowCount
	for n := RowID(1); n <= RowID(count); n++ {
		row, deleted, err := t.readRow(n)
		if err != nil {
			if !yield(Row{}, err) {
				return
			}
			continue
		}
		if deleted {
			continue
		}
		if !yield(Row{ID: n, Data: row}, nil) {
			return
		}
	}
}
