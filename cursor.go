// Per-handle row cursor state.
//
// handleCursor tracks where a table's active-key traversal currently sits,
// mirroring the teacher's iterator-position bookkeeping in all.go (a single
// "where am I" cursor threaded through successive Next calls) generalized
// to one cursor per handle with an active-key selector.
package isam

// ReadMode selects a cursor motion, optionally OR-ed with a lock modifier.
type ReadMode int

const (
	First ReadMode = 1 << iota
	Last
	Next
	Prev
	Current
	Equal
	Greater
	GreaterOrEqual

	Lock
	SkipLock
	Wait
)

const motionMask = First | Last | Next | Prev | Current | Equal | Greater | GreaterOrEqual

func (m ReadMode) motion() ReadMode { return m & motionMask }

func (m ReadMode) wantsLock() bool     { return m&Lock != 0 }
func (m ReadMode) wantsSkipLock() bool { return m&SkipLock != 0 }
func (m ReadMode) wantsWait() bool     { return m&Wait != 0 }

// handleCursor is the per-handle positional state described by the data
// model: which key is active, the row id the cursor currently sits on, the
// row id a disjoint re-seek started from, and whether the last motion was a
// re-seek rather than a sequential step.
type handleCursor struct {
	activeKeyIndex int
	currentRowID   RowID
	startRowID     RowID
	positioned     bool
	isDisjoint     bool
}

func (c *handleCursor) reset(keyIndex int) {
	c.activeKeyIndex = keyIndex
	c.currentRowID = 0
	c.startRowID = 0
	c.positioned = false
	c.isDisjoint = true
}

func (c *handleCursor) settle(id RowID, disjoint bool) {
	c.currentRowID = id
	c.positioned = true
	c.isDisjoint = disjoint
	if disjoint {
		c.startRowID = id
	}
}
