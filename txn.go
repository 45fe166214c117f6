// Table-level transaction API: attaches a Session to a handle and brackets
// a run of mutations with begin/commit/rollback.
package isam

// UseSession attaches s to t. Every subsequent Write/DeleteByID/RewriteByID
// on t logs through s, whether or not a transaction is open. Config.Logging
// is not read: attaching is the one step that turns logging on, and it is
// a separate, explicit step since one Session is commonly shared across
// several table handles in the same process.
func (t *Table) UseSession(s *Session) {
	t.session = s
}

// BeginTxn opens a transaction on t's attached session. Fails with
// ErrNoLogging if no session is attached, or ErrNoBegin if one is already
// open.
func (t *Table) BeginTxn(ts int64) error {
	if t.session == nil {
		return ErrNoLogging
	}
	return t.session.Begin(ts)
}

// CommitTxn commits the transaction on t's attached session, releasing row
// locks held by t.
func (t *Table) CommitTxn(ts int64) error {
	if t.session == nil {
		return ErrNoLogging
	}
	return t.session.Commit(ts, t)
}

// RollbackTxn rolls back the transaction on t's attached session, undoing
// every mutation recorded on t since BeginTxn and releasing its row locks.
func (t *Table) RollbackTxn(ts int64) error {
	if t.session == nil {
		return ErrNoLogging
	}
	return t.session.Rollback(ts, t)
}
