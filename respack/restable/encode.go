// Package restable reads and writes the binary resource index.
//
// Layout, little-endian:
//
//	header   version [128]byte | file size u32 | KEYS bytes u32
//	KEYS     "KEYS" | IDSS offset u32 | key count u32 | (key type i32, value u32) * count
//	IDSS     "IDSS" | id count u32 | (id u32, record offset u32) * count
//	record   size u32 | type i32 | id u32 | data | name
//
// Strings inside a record are a u16 length, the bytes and a terminating NUL.
// One KEYS and one IDSS block exist per qualifier group; all offsets are absolute.
package restable

import (
	"encoding/binary"
	"math"
	"sort"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"
)

const (
	versionLen  = 128
	headerSize  = versionLen + 4 + 4
	tagLen      = 4
	keyParamLen = 8
	idEntryLen  = 8
	// size field excluded
	recordFixed = 4 + 4
)

var (
	keysTag = [tagLen]byte{'K', 'E', 'Y', 'S'}
	idssTag = [tagLen]byte{'I', 'D', 'S', 'S'}
)

// Table maps each id to every qualifier variant of its resource.
type Table = map[int64][]resource.Item

type entry struct {
	id   int64
	item resource.Item
}

type group struct {
	name    string
	key     resource.LimitKey
	entries []entry
}

func (g *group) keysSize() uint32 { return tagLen + 4 + 4 + uint32(len(g.key))*keyParamLen }
func (g *group) idssSize() uint32 { return tagLen + 4 + uint32(len(g.entries))*idEntryLen }

func recordSize(it resource.Item) uint32 {
	return recordFixed + stringSize(it.Data) + stringSize([]byte(it.Name))
}

func stringSize(b []byte) uint32 { return 2 + uint32(len(b)) + 1 }

// Encode serializes items into a resource index. The output depends only on the
// content of items, not on map iteration order.
func Encode(items Table) ([]byte, error) {
	groups, err := groupItems(items)
	if err != nil {
		return nil, err
	}

	var keysTotal, idssTotal, recordsTotal uint64
	for _, g := range groups {
		keysTotal += uint64(g.keysSize())
		idssTotal += uint64(g.idssSize())
		for _, e := range g.entries {
			recordsTotal += 4 + uint64(recordSize(e.item))
		}
	}
	total := uint64(headerSize) + keysTotal + idssTotal + recordsTotal
	if total > math.MaxUint32 {
		return nil, common.NewValidationError(common.NoSeq, "", "resource index would be %d bytes", total)
	}

	buf := make([]byte, 0, total)
	buf = appendVersion(buf)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(total))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(keysTotal))

	idssPos := uint32(headerSize + keysTotal)
	for _, g := range groups {
		buf = append(buf, keysTag[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, idssPos)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(g.key)))
		for _, kp := range g.key {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(kp.Type)))
			buf = binary.LittleEndian.AppendUint32(buf, kp.Value)
		}
		idssPos += g.idssSize()
	}

	recordPos := idssPos
	for _, g := range groups {
		buf = append(buf, idssTag[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(g.entries)))
		for _, e := range g.entries {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(e.id))
			buf = binary.LittleEndian.AppendUint32(buf, recordPos)
			recordPos += 4 + recordSize(e.item)
		}
	}

	for _, g := range groups {
		for _, e := range g.entries {
			buf = appendRecord(buf, e.id, e.item)
		}
	}
	return buf, nil
}

// groupItems buckets items by canonical qualifier string. Groups come out sorted by
// that string and entries by id.
func groupItems(items Table) ([]*group, error) {
	byName := make(map[string]*group)
	for id, list := range items {
		if id < 0 || id > math.MaxUint32 {
			return nil, common.NewValidationError(common.NoSeq, "id", "0x%x does not fit in 32 bits", id)
		}
		for _, it := range list {
			if err := validateItem(id, it); err != nil {
				return nil, err
			}
			name := it.LimitKey.String()
			g, ok := byName[name]
			if !ok {
				g = &group{name: name, key: it.LimitKey}
				byName[name] = g
			}
			g.entries = append(g.entries, entry{id: id, item: it})
		}
	}

	groups := make([]*group, 0, len(byName))
	for _, g := range byName {
		sort.Slice(g.entries, func(i, j int) bool { return g.entries[i].id < g.entries[j].id })
		for i := 1; i < len(g.entries); i++ {
			if g.entries[i].id == g.entries[i-1].id {
				prev, cur := g.entries[i-1].item, g.entries[i].item
				return nil, &common.UniquenessError{
					ID:    g.entries[i].id,
					Type:  cur.Type.String(),
					Names: []string{prev.Name, cur.Name},
					Msg:   "two items share the qualifier " + g.name,
				}
			}
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups, nil
}

func validateItem(id int64, it resource.Item) error {
	switch {
	case !it.Type.Valid():
		return common.NewValidationError(common.NoSeq, "type", "id 0x%08x has unknown resource type %d", id, int32(it.Type))
	case it.Name == "":
		return common.NewValidationError(common.NoSeq, "name", "id 0x%08x has an empty name", id)
	case len(it.Name) > math.MaxUint16:
		return common.NewValidationError(common.NoSeq, "name", "'%s' is longer than %d bytes", it.Name, math.MaxUint16)
	case len(it.Data) > math.MaxUint16:
		return common.NewValidationError(common.NoSeq, "data", "payload of '%s' is %d bytes, limit is %d", it.Name, len(it.Data), math.MaxUint16)
	}
	return nil
}

func appendVersion(buf []byte) []byte {
	var v [versionLen]byte
	copy(v[:versionLen-1], internal.Version)
	return append(buf, v[:]...)
}

func appendRecord(buf []byte, id int64, it resource.Item) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, recordSize(it))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(it.Type)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	buf = appendString(buf, it.Data)
	return appendString(buf, []byte(it.Name))
}

func appendString(buf, s []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	buf = append(buf, s...)
	return append(buf, 0)
}
