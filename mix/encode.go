package mix

import (
	"encoding/binary"
	"sort"

	"github.com/1siamBot/xccarchive/namedb"
	"github.com/1siamBot/xccarchive/xcckey"
)

// Encode builds a fresh plaintext MIX archive from a name->bytes map.
// This package never produces an encrypted archive: encryption is
// decode-only here, since re-wrapping a session key would require the
// private half of the fixed RSA key pair, which this module does not
// possess.
//
// A synthetic local name database entry, listing every input name plus
// itself, is always injected so the result can be decoded back into the
// input name->bytes map with no external database. The decoded map also
// holds the database entry itself under its own name.
func Encode(files map[string][]byte, gameID int32) []byte {
	db := namedb.New(gameID)
	for name := range files {
		db.Insert(name)
	}
	db.Insert(xcckey.LocalMixDatabaseName)
	dbBytes := db.Encode()

	type item struct {
		key   int32
		bytes []byte
	}
	items := make([]item, 0, len(files)+1)
	for name, b := range files {
		items = append(items, item{key: xcckey.Of(name), bytes: b})
	}
	items = append(items, item{key: xcckey.LocalMixDatabaseKey, bytes: dbBytes})

	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	body := make([]byte, 0)
	entries := make([]entry, len(items))
	for i, it := range items {
		entries[i] = entry{key: it.key, offset: uint32(len(body)), size: uint32(len(it.bytes))}
		body = append(body, it.bytes...)
	}

	out := make([]byte, 0, 10+len(entries)*entrySize+len(body))
	out = append(out, 0, 0, 0, 0) // flags = 0
	out = binary.LittleEndian.AppendUint16(out, uint16(len(entries)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	for _, e := range entries {
		out = binary.LittleEndian.AppendUint32(out, uint32(e.key))
		out = binary.LittleEndian.AppendUint32(out, e.offset)
		out = binary.LittleEndian.AppendUint32(out, e.size)
	}
	out = append(out, body...)
	return out
}
