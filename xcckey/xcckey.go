// Package xcckey computes the signed 32-bit filename key used to identify
// entries inside a MIX archive and a name database. Filenames are never
// stored in a MIX; this obfuscate-then-CRC step is the archive's only
// notion of identity.
package xcckey

import "hash/crc32"

// Table is the IEEE CRC-32 table used for the filename key, exposed so
// callers needing a raw CRC-32 of an arbitrary buffer (fixture
// verification, nested database checks) can reuse it without rebuilding
// an equivalent table by hand.
var Table = crc32.MakeTable(crc32.IEEE)

// LocalMixDatabaseName is the synthetic filename under which an embedded
// name database lives inside a MIX archive.
const LocalMixDatabaseName = "local mix database.dat"

// LocalMixDatabaseKey is CRC("local mix database.dat"), the fixed key an
// embedded name database entry is stored under.
var LocalMixDatabaseKey = Of(LocalMixDatabaseName)

// Of computes the signed filename key for name per spec: uppercase,
// length-dependent pad, then IEEE CRC-32 reinterpreted as signed.
func Of(name string) int32 {
	return int32(crc32.Checksum(obfuscate(name), Table))
}

// obfuscate uppercases name (ASCII only) and, when its length isn't a
// multiple of 4, appends one byte holding len%4 followed by
// 3-(len%4) copies of the character now sitting at the rounded-down
// boundary.
func obfuscate(name string) []byte {
	n := len(name)
	salt := n &^ 3

	buf := make([]byte, n, n+4)
	for i := 0; i < n; i++ {
		buf[i] = toUpperASCII(name[i])
	}

	if rem := n % 4; rem != 0 {
		buf = append(buf, byte(rem))
		pad := buf[salt]
		for i := 0; i < 3-rem; i++ {
			buf = append(buf, pad)
		}
	}

	return buf
}

func toUpperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
