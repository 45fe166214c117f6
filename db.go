// Table handle: lifecycle and the PRIMARY-region enter/exit protocol.
//
// Table generalizes the teacher's DB type and its blockRead/blockWrite
// state machine (db.go in the pack): every top-level operation acquires
// the PRIMARY region in the appropriate mode, refreshes the in-memory
// dictionary if another handle's transaction counter has moved on, and on
// exit flushes the dictionary if dirty and releases PRIMARY. This is the
// same shape as the teacher's sync.Cond-gated state field, generalized
// from a single in-process state to the dictionary's on-disk transaction
// counter shared across processes.
package isam

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Table is an open handle to a (<name>.idx, <name>.dat) pair. Not safe for
// concurrent use by multiple goroutines without external synchronisation —
// callers serialise their own use of a handle, exactly as the spec
// requires ("thread-unsafe per handle").
type Table struct {
	dir    string
	name   string
	idx    *os.File
	dat    *os.File
	ilock  *regionLock
	dict   *Dictionary
	keys   []*KeyDescriptor
	config Config

	collation *[256]byte

	rowLocks *rowLockTable

	session *Session // nil when logging is disabled

	cursor handleCursor

	buffersOnly bool // true after Close while a transaction is still open

	mu sync.Mutex
}

const idxExt = ".idx"
const datExt = ".dat"

func paths(dir, name string) (idxPath, datPath string) {
	return filepath.Join(dir, name+idxExt), filepath.Join(dir, name+datExt)
}

// Build creates a new table: a min/max row length, a primary key
// descriptor, and a mode. Fails with ErrExists if either file already
// exists.
func Build(dir, name string, minRowLen, maxRowLen int, primary *KeyDescriptor, cfg Config) (*Table, error) {
	if name == "" || len(name) > 240 {
		return nil, ErrNameTooLong
	}
	cfg = cfg.withDefaults()
	idxPath, datPath := paths(dir, name)

	if _, err := os.Stat(idxPath); err == nil {
		return nil, ErrExists
	}
	if _, err := os.Stat(datPath); err == nil {
		return nil, ErrExists
	}
	if primary == nil {
		primary = &KeyDescriptor{}
	}
	if err := primary.validate(minRowLen); err != nil {
		return nil, err
	}

	idx, err := os.OpenFile(idxPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: create index: %v", ErrBadFile, err)
	}
	dat, err := os.OpenFile(datPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		idx.Close()
		os.Remove(idxPath)
		return nil, fmt.Errorf("%w: create data: %v", ErrBadFile, err)
	}

	dict := &Dictionary{
		Magic:     dictionaryMagic,
		Mode:      cfg.Mode,
		NodeSize:  cfg.NodeSize,
		Checksum:  cfg.ChecksumAlgorithm,
		KeyCount:  1,
		MinRowLen: minRowLen,
		MaxRowLen: maxRowLen,
		NodeCount: 1,
	}

	t := &Table{dir: dir, name: name, idx: idx, dat: dat, ilock: &regionLock{f: idx}, dict: dict, config: cfg}
	t.rowLocks = newRowLockTable()

	// Allocate the key-descriptor chain head and the primary's root node.
	chainHead, err := t.allocNode()
	if err != nil {
		t.failBuild(idxPath, datPath)
		return nil, err
	}
	root, err := t.allocNode()
	if err != nil {
		t.failBuild(idxPath, datPath)
		return nil, err
	}
	primary.RootNode = root
	dict.KeyDescHead = chainHead
	t.keys = []*KeyDescriptor{primary}

	emptyRoot := &treeNode{Num: root, Leaf: true, Entries: []treeEntry{{Dummy: true}}}
	if err := t.writeNode(0, emptyRoot); err != nil {
		t.failBuild(idxPath, datPath)
		return nil, err
	}
	if err := t.writeKeyDescChain(); err != nil {
		t.failBuild(idxPath, datPath)
		return nil, err
	}
	if err := t.flushDictionary(); err != nil {
		t.failBuild(idxPath, datPath)
		return nil, err
	}

	return t, nil
}

func (t *Table) failBuild(idxPath, datPath string) {
	t.idx.Close()
	t.dat.Close()
	os.Remove(idxPath)
	os.Remove(datPath)
}

// Open opens an existing table, validating the dictionary magic, loading
// every key descriptor from the key-descriptor chain, and acquiring the
// FILE_OPEN region (shared for normal open, exclusive for ISEXCLLOCK).
func Open(dir, name string, exclusive bool, cfg Config) (*Table, error) {
	cfg = cfg.withDefaults()
	idxPath, datPath := paths(dir, name)

	idx, err := os.OpenFile(idxPath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open index: %v", ErrBadFile, err)
	}
	dat, err := os.OpenFile(datPath, os.O_RDWR, 0644)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: open data: %v", ErrBadFile, err)
	}

	t := &Table{dir: dir, name: name, idx: idx, dat: dat, ilock: &regionLock{f: idx}}
	t.rowLocks = newRowLockTable()

	mode := LockShared
	if exclusive {
		mode = LockExclusive
	}
	if err := t.ilock.Lock(regionFileOpen(), mode, false); err != nil {
		idx.Close()
		dat.Close()
		return nil, err
	}

	raw, err := readBlock(idx, defaultProbeSize, 1)
	if err != nil {
		t.ilock.Unlock(regionFileOpen())
		idx.Close()
		dat.Close()
		return nil, err
	}
	dict, err := decodeDictionary(raw)
	if err != nil {
		t.ilock.Unlock(regionFileOpen())
		idx.Close()
		dat.Close()
		return nil, err
	}
	t.dict = dict
	t.config = cfg
	t.config.Mode = dict.Mode
	t.config.NodeSize = dict.NodeSize
	t.config.ChecksumAlgorithm = dict.Checksum

	if err := t.loadKeyDescChain(); err != nil {
		t.ilock.Unlock(regionFileOpen())
		idx.Close()
		dat.Close()
		return nil, err
	}

	t.cursor = handleCursor{}
	return t, nil
}

// defaultProbeSize is the number of bytes read from the start of the index
// file before NodeSize is known. decodeDictionary takes the fields from the
// front of the probe and the checksum from [NodeSize-8, NodeSize), so the
// checksum is verified for any node size up to 4096; with a larger node
// size the probe skips that check.
const defaultProbeSize = 4096

// Close releases row locks unless inside a transaction (then retains them
// and marks the handle buffers-only, so a later Open against the same
// files resumes mid-transaction), and closes both files.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idx == nil {
		return ErrClosed
	}

	inTxn := t.session != nil && (t.session.state == txnBegin || t.session.state == txnNeedFlush)
	if !inTxn {
		t.rowLocks.releaseAll(t)
	} else {
		t.buffersOnly = true
	}

	t.ilock.setFile(nil)
	var errs []error
	if err := t.idx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.dat.Close(); err != nil {
		errs = append(errs, err)
	}
	t.idx, t.dat = nil, nil
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// enter acquires PRIMARY in the given mode and refreshes the in-memory
// dictionary from block 1 if the on-disk transaction counter has moved
// since this handle last read it — the cross-handle cache-invalidation
// signal described by the data model.
func (t *Table) enter(mode LockMode, wait bool) error {
	if t.idx == nil {
		return ErrClosed
	}
	if err := t.ilock.Lock(regionPrimary(), mode, wait); err != nil {
		return err
	}
	raw, err := readBlock(t.idx, t.config.NodeSize, 1)
	if err != nil {
		t.ilock.Unlock(regionPrimary())
		return err
	}
	onDisk, err := decodeDictionary(raw)
	if err != nil {
		t.ilock.Unlock(regionPrimary())
		return err
	}
	if onDisk.TxnCounter != t.dict.TxnCounter {
		t.dict = onDisk
		if err := t.loadKeyDescChain(); err != nil {
			t.ilock.Unlock(regionPrimary())
			return err
		}
	}
	return nil
}

// exit bumps the transaction counter and flushes the dictionary if it is
// dirty, then releases PRIMARY.
func (t *Table) exit() error {
	var err error
	if t.dict.Dirty {
		t.dict.TxnCounter++
		err = t.flushDictionary()
	}
	if unlockErr := t.ilock.Unlock(regionPrimary()); err == nil {
		err = unlockErr
	}
	return err
}

func (t *Table) flushDictionary() error {
	buf, err := t.dict.encode(t.config.NodeSize)
	if err != nil {
		return err
	}
	if err := writeBlock(t.idx, t.config.NodeSize, 1, buf); err != nil {
		return err
	}
	t.dict.Dirty = false
	return nil
}
