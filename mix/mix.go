// Package mix decodes and encodes MIX archives: the Red Alert 2/Yuri's
// Revenge (and older Tiberian Dawn/Red Alert) container format that packs
// many named assets behind a CRC-keyed, optionally Blowfish-encrypted
// index.
package mix

import (
	"encoding/binary"

	"github.com/1siamBot/xccarchive/namedb"
	"github.com/1siamBot/xccarchive/xcckey"
	"github.com/1siamBot/xccarchive/xccfmt"
)

const (
	flagEncrypted = 0x20000

	entrySize = 12 // key i32, offset u32, size u32
)

// entry is one index record: key, body offset (relative to the body
// region start), and size. Offset is documented as unsigned, but some
// third-party "protected" archives store a negative signed value as a
// sentinel meaning "unresolvable" — see isProtected.
type entry struct {
	key    int32
	offset uint32
	size   uint32
}

func (e entry) isProtected() bool { return int32(e.offset) < 0 }

// Archive is a fully decoded MIX archive: every entry's bytes, sliced
// from a single owned body buffer, plus whatever names were resolved for
// them.
type Archive struct {
	entries []entry
	body    []byte

	names map[int32][]byte // key -> bytes for every non-protected entry
	files map[string][]byte
}

// DecodeOptions configures archive decoding.
type DecodeOptions struct {
	// GlobalDB is consulted when the archive has no usable embedded
	// local name database entry (absent, marked unresolvable, or not
	// decodable). It is not used per key when a local database exists.
	// May be nil.
	GlobalDB *namedb.DB
}

// Decode parses a full MIX file already read into memory: old format,
// new-format plaintext, or new-format encrypted.
func Decode(data []byte, opts DecodeOptions) (*Archive, error) {
	entries, body, err := parseHeaderAndIndex(data)
	if err != nil {
		return nil, err
	}

	a := &Archive{entries: entries, body: body}
	if err := a.sliceEntries(); err != nil {
		return nil, err
	}
	a.resolveNames(opts.GlobalDB)
	return a, nil
}

// sliceEntries validates and slices each entry's bytes out of the body
// buffer, keyed by its archive key. Entries marked protected (negative
// offset) are skipped: they carry no resolvable bytes by this reader's
// contract.
func (a *Archive) sliceEntries() error {
	a.names = make(map[int32][]byte, len(a.entries))
	for _, e := range a.entries {
		if e.isProtected() {
			continue
		}
		start := int(e.offset)
		end := start + int(e.size)
		if start < 0 || end > len(a.body) || end < start {
			return xccfmt.InvalidFormatf("entry %08x: offset/size (%d,%d) exceeds body of %d bytes", uint32(e.key), e.offset, e.size, len(a.body))
		}
		a.names[e.key] = a.body[start:end]
	}
	return nil
}

// resolveNames builds the name->bytes view: the embedded local database
// wins if present and resolvable, otherwise the caller's global database
// is consulted; keys the chosen database cannot resolve are dropped from
// Files() but remain reachable via Entry().
func (a *Archive) resolveNames(global *namedb.DB) {
	a.files = make(map[string][]byte)

	if len(a.entries) <= 1 {
		// Zero or one entry: spec defines this as "no meaningful
		// content" regardless of what that one entry is.
		return
	}

	db := global
	if localBytes, ok := a.names[xcckey.LocalMixDatabaseKey]; ok {
		if local, err := namedb.Decode(localBytes); err == nil {
			db = local
		}
	}
	if db == nil {
		return
	}

	for key, bytes := range a.names {
		if name, ok := db.Lookup(key); ok {
			a.files[name] = bytes
		}
	}
}

// Files returns the name->bytes view of every entry this archive could
// resolve a filename for.
func (a *Archive) Files() map[string][]byte { return a.files }

// Entry returns the raw bytes stored under key, regardless of whether a
// name was ever resolved for it.
func (a *Archive) Entry(key int32) ([]byte, bool) {
	b, ok := a.names[key]
	return b, ok
}

// ExtractByNameChain resolves name against primary first, falling
// back through chain in order — generalizing the common pattern of
// looking a file up in a primary archive and then in a series of nested
// archives (e.g. cache.mix, conquer.mix) extracted from it.
func ExtractByNameChain(name string, primary *Archive, chain ...*Archive) ([]byte, bool) {
	key := xcckey.Of(name)
	if b, ok := primary.Entry(key); ok {
		return b, true
	}
	for _, a := range chain {
		if b, ok := a.Entry(key); ok {
			return b, true
		}
	}
	return nil, false
}

// parseHeaderAndIndex reads the header (old or new format), decrypts the
// index if necessary, and returns the parsed entry table plus the body
// slice that follows it.
func parseHeaderAndIndex(data []byte) ([]entry, []byte, error) {
	if len(data) < 2 {
		return nil, nil, xccfmt.InvalidFormatf("file too small to contain a MIX header: %d bytes", len(data))
	}

	first16 := binary.LittleEndian.Uint16(data[0:2])
	if first16 != 0 {
		return parseOldFormat(data)
	}

	if len(data) < 10 {
		return nil, nil, xccfmt.InvalidFormatf("file too small for new-format MIX header: %d bytes", len(data))
	}
	flags := binary.LittleEndian.Uint32(data[0:4])
	if flags&flagEncrypted != 0 {
		return parseEncryptedFormat(data)
	}
	return parsePlainNewFormat(data, flags)
}

func parseOldFormat(data []byte) ([]entry, []byte, error) {
	if len(data) < 6 {
		return nil, nil, xccfmt.InvalidFormatf("file too small for old-format MIX header: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint16(data[0:2])
	_ = binary.LittleEndian.Uint32(data[2:6]) // data_size, informational only

	return readIndexAndBody(data, 6, count)
}

func parsePlainNewFormat(data []byte, flags uint32) ([]entry, []byte, error) {
	count := binary.LittleEndian.Uint16(data[4:6])
	_ = binary.LittleEndian.Uint32(data[6:10]) // data_size, informational only

	return readIndexAndBody(data, 10, count)
}

func readIndexAndBody(data []byte, indexStart int, count uint16) ([]entry, []byte, error) {
	indexEnd := indexStart + int(count)*entrySize
	if indexEnd > len(data) {
		return nil, nil, xccfmt.InvalidFormatf("index of %d entries exceeds file size", count)
	}

	entries := readEntries(data[indexStart:indexEnd], count)
	return entries, data[indexEnd:], nil
}

func readEntries(index []byte, count uint16) []entry {
	entries := make([]entry, count)
	for i := range entries {
		off := i * entrySize
		entries[i] = entry{
			key:    int32(binary.LittleEndian.Uint32(index[off : off+4])),
			offset: binary.LittleEndian.Uint32(index[off+4 : off+8]),
			size:   binary.LittleEndian.Uint32(index[off+8 : off+12]),
		}
	}
	return entries
}

