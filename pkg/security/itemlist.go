package security

import (
	"fmt"

	"github.com/cuemby/dtnd/pkg/sdnv"
)

// ItemType identifies one entry in a security-parameters or security-result
// item list (spec §4.8).
type ItemType uint8

const (
	ItemIV ItemType = iota + 1
	ItemSalt
	ItemKeyInfo
	ItemICV
	ItemFragmentRange
	ItemEncapsulatedBlock
)

// Item is one {type, length, value} entry; length is implicit in len(Value)
// and never stored separately in memory, only on the wire.
type Item struct {
	Type  ItemType
	Value []byte
}

// ItemList is an ordered sequence of Items, the wire shape shared by every
// ciphersuite's security-parameters and security-result fields.
type ItemList []Item

// Get returns the first item of the given type, if present.
func (l ItemList) Get(t ItemType) (Item, bool) {
	for _, it := range l {
		if it.Type == t {
			return it, true
		}
	}
	return Item{}, false
}

// Encode serializes the list as a sequence of {type byte, SDNV length,
// value} tuples.
func (l ItemList) Encode() []byte {
	var out []byte
	for _, it := range l {
		out = append(out, byte(it.Type))
		out = sdnv.Encode(out, uint64(len(it.Value)))
		out = append(out, it.Value...)
	}
	return out
}

// DecodeItemList parses the wire form produced by Encode.
func DecodeItemList(buf []byte) (ItemList, error) {
	var out ItemList
	off := 0
	for off < len(buf) {
		if off+1 > len(buf) {
			return nil, fmt.Errorf("security: truncated item type")
		}
		typ := ItemType(buf[off])
		off++
		length, n, err := sdnv.Decode(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("security: item length: %w", err)
		}
		off += n
		if off+int(length) > len(buf) {
			return nil, fmt.Errorf("security: truncated item value")
		}
		out = append(out, Item{Type: typ, Value: append([]byte(nil), buf[off:off+int(length)]...)})
		off += int(length)
	}
	return out, nil
}
