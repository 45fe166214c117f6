// Key extraction and comparison.
//
// A key descriptor is an ordered list of byte ranges ("parts") over a row.
// makeKey concatenates each part's bytes, normalising numeric types into a
// big-endian, order-preserving byte form so that unsigned lexicographic
// comparison of the encoded bytes matches the natural ordering of the
// original values. This mirrors the teacher's hash.go in shape — a small
// pluggable-by-type switch — applied here to key parts instead of whole
// documents, and record.go's fixed-offset byte extraction technique (pull
// bytes straight out of a row at a known offset, no parsing required).
package isam

// PartType identifies how a key part's bytes are interpreted for ordering.
type PartType int

const (
	Char PartType = iota
	Int16
	Int32
	Int64
	Float32
	Float64
)

func (t PartType) size() int {
	switch t {
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0 // Char: any length
	}
}

// KeyPart describes one contiguous byte range of a row that contributes to
// a key, and how those bytes are normalised for ordering.
type KeyPart struct {
	Start      int
	Length     int
	Type       PartType
	Descending bool
}

// MaxKeyLen bounds the total encoded length of a key.
const MaxKeyLen = 240

// MaxSubs bounds the number of key descriptors a table may carry.
const MaxSubs = 32

// NParts bounds the number of parts in a single key descriptor.
const NParts = 8

// KeyDescriptor is an ordered sequence of parts that together form a
// comparable key, plus the flags governing duplicate handling and on-disk
// compression.
type KeyDescriptor struct {
	Parts            []KeyPart
	AllowDuplicates  bool
	NullSuppress     bool
	LeadingCompress  bool
	TrailingCompress bool
	DupCompress      bool

	// RootNode is the tree root for this key. Build writes an empty root
	// leaf for the primary key, so it is set before the first insert.
	RootNode NodeNum
}

// KeyLen returns the fixed encoded length of any key produced by this
// descriptor. Every key for a given descriptor has identical length because
// every part has a fixed (or explicitly bounded, for Char) length.
func (d *KeyDescriptor) KeyLen() int {
	n := 0
	for _, p := range d.Parts {
		n += p.Length
	}
	return n
}

// IsNull reports whether d is the zero-part "null key" placeholder, which
// stores no entries and whose operations are no-ops.
func (d *KeyDescriptor) IsNull() bool {
	return len(d.Parts) == 0
}

// validate checks the invariants from the data model: every part lies
// inside [0, minRowLen), the total length is bounded, and numeric parts
// have a length that is a multiple of their natural size.
func (d *KeyDescriptor) validate(minRowLen int) error {
	if len(d.Parts) > NParts {
		return ErrBadKey
	}
	total := 0
	for _, p := range d.Parts {
		if p.Start < 0 || p.Length <= 0 || p.Start+p.Length > minRowLen {
			return ErrBadKey
		}
		if sz := p.Type.size(); sz != 0 && p.Length%sz != 0 {
			return ErrBadKey
		}
		total += p.Length
	}
	if total > MaxKeyLen {
		return ErrBadKey
	}
	return nil
}

// makeKey extracts and encodes the key for row under descriptor d. Returns
// nil if d is the null-key placeholder.
func makeKey(d *KeyDescriptor, row []byte) []byte {
	if d.IsNull() {
		return nil
	}
	out := make([]byte, 0, d.KeyLen())
	for _, p := range d.Parts {
		raw := row[p.Start : p.Start+p.Length]
		enc := encodePart(p, raw)
		out = append(out, enc...)
	}
	return out
}

// encodePart normalises one part's raw bytes into order-preserving form.
func encodePart(p KeyPart, raw []byte) []byte {
	buf := make([]byte, len(raw))
	copy(buf, raw)

	switch p.Type {
	case Int16, Int32, Int64:
		// Signed integers sort correctly under unsigned comparison once the
		// sign bit is flipped: this maps the negative half of the range
		// below the positive half while preserving big-endian byte order.
		buf[0] ^= 0x80
	case Float32, Float64:
		// IEEE-754: for non-negative values, flipping the sign bit alone
		// produces an order-preserving unsigned encoding; for negative
		// values every bit must be inverted (descending magnitude becomes
		// ascending unsigned order).
		if buf[0]&0x80 == 0 {
			buf[0] ^= 0x80
		} else {
			for i := range buf {
				buf[i] = ^buf[i]
			}
		}
	}

	if p.Descending {
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}
	return buf
}

// compareKeys performs unsigned lexicographic comparison of a and b, each
// byte optionally remapped through collation first (a per-table byte-remap
// table used for non-default collation orderings).
func compareKeys(a, b []byte, collation *[256]byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		if collation != nil {
			x, y = collation[x], collation[y]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// infinityKey returns a key that compares greater than any real key of
// length n, used to fabricate the dummy +infinity sentinel entry.
func infinityKey(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}

// partialKey builds a seek key of the descriptor's full length from a
// caller-supplied prefix, padding the remainder with 0x00 (ISEQUAL/ISGTEQ)
// or 0xFF (ISGREAT with a short prefix), per the partial-key seek rule.
func partialKey(d *KeyDescriptor, prefix []byte, padHigh bool) []byte {
	full := d.KeyLen()
	out := make([]byte, full)
	n := copy(out, prefix)
	pad := byte(0x00)
	if padHigh {
		pad = 0xFF
	}
	for i := n; i < full; i++ {
		out[i] = pad
	}
	return out
}
