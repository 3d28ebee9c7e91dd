package bundle

// Dictionary interns EID scheme/SSP strings for the primary block's
// dictionary-encoded addressing fields (spec §4.2): each of
// destination/source/reply-to/custodian is stored as a (scheme-offset,
// ssp-offset) pair into one shared, null-terminated byte buffer so that a
// long group-addressed EID isn't repeated four times in one bundle.
type Dictionary struct {
	buf    []byte
	offset map[string]uint64
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{offset: make(map[string]uint64)}
}

// Intern returns the byte offset of s within the dictionary buffer,
// appending a new null-terminated copy of s if it hasn't been seen before.
func (d *Dictionary) Intern(s string) uint64 {
	if off, ok := d.offset[s]; ok {
		return off
	}
	off := uint64(len(d.buf))
	d.buf = append(d.buf, s...)
	d.buf = append(d.buf, 0)
	d.offset[s] = off
	return off
}

// Bytes returns the dictionary's serialized byte buffer.
func (d *Dictionary) Bytes() []byte {
	return d.buf
}

// Len returns the serialized dictionary length.
func (d *Dictionary) Len() uint64 {
	return uint64(len(d.buf))
}

// StringAt returns the null-terminated string starting at offset, as
// stored by a previous Intern call (or read back from a wire dictionary
// buffer via LoadDictionary).
func (d *Dictionary) StringAt(offset uint64) (string, bool) {
	if offset >= uint64(len(d.buf)) {
		return "", false
	}
	end := offset
	for end < uint64(len(d.buf)) && d.buf[end] != 0 {
		end++
	}
	if end >= uint64(len(d.buf)) {
		return "", false
	}
	return string(d.buf[offset:end]), true
}

// LoadDictionary wraps a raw dictionary buffer read from the wire so
// StringAt can resolve offsets parsed out of the primary block.
func LoadDictionary(buf []byte) *Dictionary {
	return &Dictionary{buf: buf, offset: make(map[string]uint64)}
}
