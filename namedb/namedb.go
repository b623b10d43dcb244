// Package namedb implements the XCC local/global name database codec: a
// 52-byte header followed by NUL-terminated filenames, forming a bijection
// between filename keys and human-readable names within a single archive.
package namedb

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/1siamBot/xccarchive/xcckey"
	"github.com/1siamBot/xccarchive/xccfmt"
)

// magic is "XCC by Olaf van der Spek" followed by the fixed trailer
// bytes, zero-padded to 32 bytes.
var magic = [32]byte{
	0x58, 0x43, 0x43, 0x20, 0x62, 0x79, 0x20, 0x4F,
	0x6C, 0x61, 0x66, 0x20, 0x76, 0x61, 0x6E, 0x20,
	0x64, 0x65, 0x72, 0x20, 0x53, 0x70, 0x65, 0x6B,
	0x1A, 0x04, 0x17, 0x27, 0x10, 0x19, 0x80, 0x00,
}

// HeaderSize is the fixed 52-byte header preceding a database's
// NUL-terminated filename list: 32-byte magic + 5 uint32 fields.
const HeaderSize = 32 + 4*5

// DB is a key<->filename bijection decoded from, or built for, a single
// XCC name database.
type DB struct {
	GameID int32
	names  map[int32]string
}

// New returns an empty database for the given game identifier.
func New(gameID int32) *DB {
	return &DB{GameID: gameID, names: make(map[int32]string)}
}

// Decode parses the raw bytes of a name database: either the embedded
// MIX entry or a standalone .dat file. The 52-byte header is skipped;
// everything after it is read as NUL-terminated filenames until the
// buffer is exhausted.
func Decode(data []byte) (*DB, error) {
	if len(data) < HeaderSize {
		return nil, xccfmt.InvalidFormatf("name database shorter than header: %d bytes", len(data))
	}

	db := &DB{
		GameID: int32(binary.LittleEndian.Uint32(data[32+4*3 : 32+4*4])),
		names:  make(map[int32]string),
	}

	for start := HeaderSize; start < len(data); {
		end := bytes.IndexByte(data[start:], 0)
		if end < 0 {
			// Trailing bytes with no terminator: not a name, stop.
			break
		}
		if end > 0 {
			db.Insert(string(data[start : start+end]))
		}
		start += end + 1
	}

	return db, nil
}

// Insert adds name to the database under its CRC key, overwriting any
// prior entry sharing that key.
func (db *DB) Insert(name string) {
	db.names[xcckey.Of(name)] = name
}

// Lookup resolves key to its filename, if present.
func (db *DB) Lookup(key int32) (string, bool) {
	name, ok := db.names[key]
	return name, ok
}

// Len reports how many names are stored.
func (db *DB) Len() int { return len(db.names) }

// Names returns the database's filenames sorted for deterministic
// iteration (used by Encode).
func (db *DB) Names() []string {
	out := make([]string, 0, len(db.names))
	for _, n := range db.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Encode writes the 52-byte header followed by the NUL-terminated
// filenames in Names() order.
func (db *DB) Encode() []byte {
	names := db.Names()

	size := HeaderSize
	for _, n := range names {
		size += len(n) + 1
	}

	buf := make([]byte, HeaderSize, size)
	copy(buf[0:32], magic[:])
	binary.LittleEndian.PutUint32(buf[32+4*0:], uint32(size)) // db_size
	binary.LittleEndian.PutUint32(buf[32+4*1:], 0) // file_type
	binary.LittleEndian.PutUint32(buf[32+4*2:], 0) // file_version
	binary.LittleEndian.PutUint32(buf[32+4*3:], uint32(db.GameID))
	binary.LittleEndian.PutUint32(buf[32+4*4:], uint32(len(names)))

	for _, n := range names {
		buf = append(buf, n...)
		buf = append(buf, 0)
	}
	return buf
}

// tomlDoc is the on-disk shape of a database's TOML persistence form:
// key_decimal = "name" entries directly mirroring the in-memory map.
type tomlDoc struct {
	GameID int32             `toml:"game_id"`
	Names  map[string]string `toml:"names"`
}

// SaveTOML writes the database's mapping directly as a human-editable
// TOML document (decimal key -> name).
func (db *DB) SaveTOML(w io.Writer) error {
	doc := tomlDoc{GameID: db.GameID, Names: make(map[string]string, len(db.names))}
	for k, n := range db.names {
		doc.Names[strconv.Itoa(int(k))] = n
	}
	enc := toml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return xccfmt.EncodeErr(err, "encode name database as TOML")
	}
	return nil
}

// LoadTOML reads a database previously written by SaveTOML.
func LoadTOML(r io.Reader) (*DB, error) {
	var doc tomlDoc
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, xccfmt.DecodeErr(err, "decode name database from TOML")
	}

	db := New(doc.GameID)
	for k, n := range doc.Names {
		key, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, xccfmt.DecodeErr(err, "invalid key %q in name database TOML", k)
		}
		db.names[int32(key)] = n
	}
	return db, nil
}
