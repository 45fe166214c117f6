// Cluster and Audit are accepted as no-ops: clustering the data file to a
// key's order and maintaining a separate audit trail are both legitimate
// ISAM features that this engine does not implement, but a caller ported
// from a system that calls them unconditionally should not have to special
// case this engine to avoid an error it doesn't expect.
package isam

// Cluster would reorder the data file to match a key's iteration order.
// Accepted and ignored on a valid handle.
func (t *Table) Cluster(ki int) error {
	if err := t.enter(LockShared, true); err != nil {
		return err
	}
	defer t.exit()
	if ki < 0 || ki >= len(t.keys) {
		return ErrBadArg
	}
	return nil
}

// Audit would toggle a separate before/after audit trail distinct from the
// recovery log. Accepted and ignored on a valid handle.
func (t *Table) Audit(enable bool) error {
	if err := t.enter(LockShared, true); err != nil {
		return err
	}
	defer t.exit()
	return nil
}
