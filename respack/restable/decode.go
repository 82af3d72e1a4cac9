package restable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/spf13/afero"
)

// Header is the fixed preamble of a resource index.
type Header struct {
	Version   string
	FileSize  uint32
	KeysBytes uint32
}

// reader tracks absolute positions over a seekable source and bounds every read by
// the stream length.
type reader struct {
	rs     io.ReadSeeker
	pos    int64
	length int64
}

func (r *reader) seek(off int64) error {
	if off < 0 || off > r.length {
		return common.NewFormatError(off, nil, "offset outside of the %d byte stream", r.length)
	}
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return common.NewFormatError(off, err, "seek failed")
	}
	r.pos = off
	return nil
}

func (r *reader) read(n int64, what string) ([]byte, error) {
	if n < 0 || r.pos+n > r.length {
		return nil, common.NewFormatError(r.pos, io.ErrUnexpectedEOF, "truncated %s", what)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.rs, b); err != nil {
		return nil, common.NewFormatError(r.pos, err, "failed to read %s", what)
	}
	r.pos += n
	return b, nil
}

func (r *reader) u32(what string) (uint32, error) {
	b, err := r.read(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u16(what string) (uint16, error) {
	b, err := r.read(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) tag(want [tagLen]byte) error {
	at := r.pos
	b, err := r.read(tagLen, "tag")
	if err != nil {
		return err
	}
	if !bytes.Equal(b, want[:]) {
		return common.NewFormatError(at, nil, "expected tag %q, found %q", want[:], b)
	}
	return nil
}

func (r *reader) str(what string) ([]byte, error) {
	n, err := r.u16(what + " length")
	if err != nil {
		return nil, err
	}
	b, err := r.read(int64(n)+1, what)
	if err != nil {
		return nil, err
	}
	if b[n] != 0 {
		return nil, common.NewFormatError(r.pos-1, nil, "%s is not NUL terminated", what)
	}
	return b[:n], nil
}

type keyBlock struct {
	key  resource.LimitKey
	idss uint32
}

// Load reads the resource index at path.
func Load(fs afero.Fs, path string) (Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, common.WrapError(err, "failed to open %s", path)
	}
	defer f.Close()
	t, err := Decode(f)
	if err != nil {
		return nil, common.WrapError(err, "failed to load %s", path)
	}
	return t, nil
}

// DecodeBytes decodes an in-memory resource index.
func DecodeBytes(data []byte) (Table, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a complete resource index from rs. On any error the returned table is nil.
func Decode(rs io.ReadSeeker) (Table, error) {
	length, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, common.NewFormatError(0, err, "cannot determine stream length")
	}
	r := &reader{rs: rs, length: length}
	if err := r.seek(0); err != nil {
		return nil, err
	}

	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	blocks, err := readKeyBlocks(r, hdr.KeysBytes)
	if err != nil {
		return nil, err
	}

	table := make(Table)
	for _, kb := range blocks {
		if err := readGroup(r, kb, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// DecodeHeader reads only the header of a resource index and checks its size field.
func DecodeHeader(rs io.ReadSeeker) (Header, error) {
	length, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return Header{}, common.NewFormatError(0, err, "cannot determine stream length")
	}
	r := &reader{rs: rs, length: length}
	if err := r.seek(0); err != nil {
		return Header{}, err
	}
	return readHeader(r)
}

func readHeader(r *reader) (Header, error) {
	v, err := r.read(versionLen, "version")
	if err != nil {
		return Header{}, err
	}
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	size, err := r.u32("file size")
	if err != nil {
		return Header{}, err
	}
	if int64(size) != r.length {
		return Header{}, common.NewFormatError(versionLen, nil, "header declares %d bytes, stream has %d", size, r.length)
	}
	keys, err := r.u32("key section size")
	if err != nil {
		return Header{}, err
	}
	if int64(headerSize)+int64(keys) > r.length {
		return Header{}, common.NewFormatError(versionLen+4, io.ErrUnexpectedEOF, "key section of %d bytes overruns the stream", keys)
	}
	return Header{Version: string(v), FileSize: size, KeysBytes: keys}, nil
}

func readKeyBlocks(r *reader, total uint32) ([]keyBlock, error) {
	end := int64(headerSize) + int64(total)
	var blocks []keyBlock
	for r.pos < end {
		if err := r.tag(keysTag); err != nil {
			return nil, err
		}
		idss, err := r.u32("IDSS offset")
		if err != nil {
			return nil, err
		}
		count, err := r.u32("key count")
		if err != nil {
			return nil, err
		}
		if r.pos+int64(count)*keyParamLen > end {
			return nil, common.NewFormatError(r.pos, io.ErrUnexpectedEOF, "%d key params overrun the key section", count)
		}
		var key resource.LimitKey
		for i := uint32(0); i < count; i++ {
			kt, err := r.u32("key type")
			if err != nil {
				return nil, err
			}
			val, err := r.u32("key value")
			if err != nil {
				return nil, err
			}
			key = append(key, resource.KeyParam{Type: resource.KeyType(int32(kt)), Value: val})
		}
		blocks = append(blocks, keyBlock{key: key, idss: idss})
	}
	if r.pos != end {
		return nil, common.NewFormatError(r.pos, nil, "key section ends at %d, header declares %d", r.pos, end)
	}
	return blocks, nil
}

func readGroup(r *reader, kb keyBlock, table Table) error {
	if err := r.seek(int64(kb.idss)); err != nil {
		return err
	}
	if err := r.tag(idssTag); err != nil {
		return err
	}
	count, err := r.u32("id count")
	if err != nil {
		return err
	}
	if r.pos+int64(count)*idEntryLen > r.length {
		return common.NewFormatError(r.pos, io.ErrUnexpectedEOF, "%d id entries overrun the stream", count)
	}
	type idEntry struct{ id, offset uint32 }
	entries := make([]idEntry, count)
	for i := range entries {
		if entries[i].id, err = r.u32("id"); err != nil {
			return err
		}
		if entries[i].offset, err = r.u32("record offset"); err != nil {
			return err
		}
	}

	for _, e := range entries {
		it, err := readRecord(r, int64(e.offset), e.id)
		if err != nil {
			return err
		}
		it.LimitKey = kb.key
		table[int64(e.id)] = append(table[int64(e.id)], it)
	}
	return nil
}

func readRecord(r *reader, off int64, want uint32) (resource.Item, error) {
	if err := r.seek(off); err != nil {
		return resource.Item{}, err
	}
	size, err := r.u32("record size")
	if err != nil {
		return resource.Item{}, err
	}
	start := r.pos
	if start+int64(size) > r.length {
		return resource.Item{}, common.NewFormatError(off, io.ErrUnexpectedEOF, "record of %d bytes overruns the stream", size)
	}
	code, err := r.u32("resource type")
	if err != nil {
		return resource.Item{}, err
	}
	t, ok := resource.TypeFromCode(int32(code))
	if !ok {
		return resource.Item{}, common.NewFormatError(off+4, nil, "unknown resource type %d", int32(code))
	}
	id, err := r.u32("record id")
	if err != nil {
		return resource.Item{}, err
	}
	if id != want {
		return resource.Item{}, common.NewFormatError(off+8, nil, "record holds id 0x%08x, index points at 0x%08x", id, want)
	}
	data, err := r.str("data")
	if err != nil {
		return resource.Item{}, err
	}
	name, err := r.str("name")
	if err != nil {
		return resource.Item{}, err
	}
	if r.pos-start != int64(size) {
		return resource.Item{}, common.NewFormatError(off, nil, "record declares %d bytes, holds %d", size, r.pos-start)
	}
	return resource.Item{Type: t, Name: string(name), Data: data}, nil
}

// FindItems returns the items stored for id. Every item of one id must share a type.
func FindItems(table Table, id int64) ([]resource.Item, error) {
	items, ok := table[id]
	if !ok {
		return nil, common.WrapError(ErrNotFound, "0x%08x", id)
	}
	if len(items) == 0 {
		return nil, common.WrapError(ErrNotFound, "0x%08x has no items", id)
	}
	for _, it := range items[1:] {
		if it.Type != items[0].Type {
			return nil, common.NewFormatError(common.NoSeq, nil, "id 0x%08x mixes types %s and %s", id, items[0].Type, it.Type)
		}
	}
	return items, nil
}

// ErrNotFound is returned by FindItems for an id the table does not hold.
var ErrNotFound = errors.New("resource id not found")
