package mix

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1siamBot/xccarchive/namedb"
	"github.com/1siamBot/xccarchive/xcccrypto"
	"github.com/1siamBot/xccarchive/xcckey"
)

// TestRoundTripPlaintextArchive is scenario S1: encode a small map, decode
// it back, and confirm the original entries reappear byte-identical plus
// a synthetic local database entry.
func TestRoundTripPlaintextArchive(t *testing.T) {
	input := map[string][]byte{
		"test1.txt": []byte("Hello, World!"),
		"test2.bin": {0, 1, 2, 3, 4, 5},
	}

	encoded := Encode(input, 0)
	a, err := Decode(encoded, DecodeOptions{})
	require.NoError(t, err)

	files := a.Files()
	for name, want := range input {
		assert.Equal(t, want, files[name], "entry %q", name)
	}

	_, ok := a.Entry(xcckey.LocalMixDatabaseKey)
	assert.True(t, ok, "encoded archive should contain a synthetic local database entry")
}

// TestEncodedEntriesAreSortedBySignedKey is property/invariant 5: the
// encoder must emit entries in strictly ascending signed-key order.
func TestEncodedEntriesAreSortedBySignedKey(t *testing.T) {
	input := map[string][]byte{
		"aaa.shp": {1},
		"zzz.shp": {2},
		"mmm.shp": {3},
		"bbb.shp": {4},
	}
	encoded := Encode(input, 0)

	count := binary.LittleEndian.Uint16(encoded[4:6])
	var prev int32
	for i := 0; i < int(count); i++ {
		off := 10 + i*entrySize
		key := int32(binary.LittleEndian.Uint32(encoded[off : off+4]))
		if i > 0 && key <= prev {
			t.Fatalf("entry %d key %d is not strictly greater than previous %d", i, key, prev)
		}
		prev = key
	}
}

func TestEmptyAndSingleEntryArchiveHasNoFiles(t *testing.T) {
	empty := Encode(nil, 0)
	a, err := Decode(empty, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode(empty): %v", err)
	}
	// Even though the encoder injects the synthetic local database, an
	// otherwise-empty input still has only that one entry: spec defines
	// zero-or-one entry archives as carrying no meaningful name map.
	if len(a.Files()) != 0 {
		t.Fatalf("Files() = %v, want empty for a single-entry archive", a.Files())
	}
}

func TestOldFormatDecode(t *testing.T) {
	body := []byte("payload!")
	key := xcckey.Of("x.txt")

	buf := make([]byte, 0)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // count
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(key))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)

	a, err := Decode(buf, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := a.Entry(key)
	if !ok || string(got) != string(body) {
		t.Fatalf("Entry(%d) = (%v,%v), want (%q,true)", key, got, ok, body)
	}
}

func TestIndexExceedsFileIsInvalidFormat(t *testing.T) {
	buf := make([]byte, 0)
	buf = append(buf, 0, 0, 0, 0) // flags
	buf = binary.LittleEndian.AppendUint16(buf, 5)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	// no index/body bytes follow: 5 entries won't fit

	if _, err := Decode(buf, DecodeOptions{}); err == nil {
		t.Fatal("Decode should fail when the declared index exceeds the file")
	}
}

func TestProtectedEntryIsUnresolvable(t *testing.T) {
	body := []byte("visible")
	visibleKey := xcckey.Of("visible.txt")
	protectedKey := xcckey.LocalMixDatabaseKey

	buf := make([]byte, 0)
	buf = append(buf, 0, 0, 0, 0)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	// protected local-db entry: negative offset sentinel
	buf = binary.LittleEndian.AppendUint32(buf, uint32(protectedKey))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(-1)))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	// visible entry
	buf = binary.LittleEndian.AppendUint32(buf, uint32(visibleKey))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)

	global := namedb.New(0)
	global.Insert("visible.txt")

	a, err := Decode(buf, DecodeOptions{GlobalDB: global})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := a.Entry(protectedKey); ok {
		t.Fatal("a protected (negative-offset) entry must not be slicable via Entry")
	}
	files := a.Files()
	if string(files["visible.txt"]) != string(body) {
		t.Fatalf("Files()[visible.txt] = %v, want %v", files["visible.txt"], body)
	}
}

func TestGlobalDBFallbackDropsUnknownKeys(t *testing.T) {
	body1 := []byte("known")
	body2 := []byte("unknown")
	knownKey := xcckey.Of("known.txt")
	unknownKey := xcckey.Of("mystery.txt")

	buf := make([]byte, 0)
	buf = append(buf, 0, 0, 0, 0)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body1)+len(body2)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(knownKey))
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body1)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(unknownKey))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body1)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body2)))
	buf = append(buf, body1...)
	buf = append(buf, body2...)

	global := namedb.New(0)
	global.Insert("known.txt")

	a, err := Decode(buf, DecodeOptions{GlobalDB: global})
	require.NoError(t, err)

	files := a.Files()
	require.Len(t, files, 1, "exactly one resolved name")
	assert.Equal(t, body1, files["known.txt"])

	// The unresolved entry must still be reachable by raw key.
	got, ok := a.Entry(unknownKey)
	require.True(t, ok)
	assert.Equal(t, body2, got)
}

func TestExtractByNameChain(t *testing.T) {
	primary := Encode(map[string][]byte{"a.txt": []byte("A")}, 0)
	nested := Encode(map[string][]byte{"b.txt": []byte("B")}, 0)

	pa, err := Decode(primary, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode(primary): %v", err)
	}
	na, err := Decode(nested, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode(nested): %v", err)
	}

	if b, ok := ExtractByNameChain("a.txt", pa, na); !ok || string(b) != "A" {
		t.Fatalf("ExtractByNameChain(a.txt) = (%v,%v)", b, ok)
	}
	if b, ok := ExtractByNameChain("b.txt", pa, na); !ok || string(b) != "B" {
		t.Fatalf("ExtractByNameChain(b.txt) = (%v,%v)", b, ok)
	}
	if _, ok := ExtractByNameChain("missing.txt", pa, na); ok {
		t.Fatal("ExtractByNameChain(missing.txt) should fail")
	}
}

// TestEncryptedDecodeRoundTrip is scenario S2: decoding an encrypted
// archive yields file_count==2 and each entry's payload matches the
// fixture. UnwrapBlowfishKey is a pure function of its 80-byte input (see
// xcccrypto.TestUnwrapBlowfishKeyDeterministic), so this test picks
// wrapped-key bytes, unwraps them to get a real session key,
// Blowfish-ECB-encrypts a hand-built index with that key, and assembles
// the full flags|wrapped_key|encrypted_index|body buffer — no private RSA
// key is needed to construct a fixture this way. The first 40-byte block
// is the integer 1, which unwraps to the single byte 0x01; the second is
// arbitrary and unwraps to at most 40 bytes. Two arbitrary blocks would
// give an 80-byte key, which Blowfish rejects (its limit is 56 bytes).
func TestEncryptedDecodeRoundTrip(t *testing.T) {
	wrapped := make([]byte, xcccrypto.WrappedKeySize)
	wrapped[0] = 1
	for i := xcccrypto.WrappedKeySize / 2; i < len(wrapped); i++ {
		wrapped[i] = byte(i*7 + 3)
	}
	key, err := xcccrypto.UnwrapBlowfishKey(wrapped)
	require.NoError(t, err)
	block, err := xcccrypto.NewBlowfishECB(key)
	require.NoError(t, err)

	body1 := []byte("alpha-payload")
	body2 := []byte("beta!!")
	entries := []entry{
		{key: 0x1001, offset: 0, size: uint32(len(body1))},
		{key: 0x2002, offset: uint32(len(body1)), size: uint32(len(body2))},
	}
	fileCount := uint16(len(entries))
	dataSize := uint32(len(body1) + len(body2))

	plain := make([]byte, 0, 6+int(fileCount)*entrySize)
	plain = binary.LittleEndian.AppendUint16(plain, fileCount)
	plain = binary.LittleEndian.AppendUint32(plain, dataSize)
	for _, e := range entries {
		plain = binary.LittleEndian.AppendUint32(plain, uint32(e.key))
		plain = binary.LittleEndian.AppendUint32(plain, e.offset)
		plain = binary.LittleEndian.AppendUint32(plain, e.size)
	}

	decryptSize, _ := xcccrypto.IndexSizing(fileCount)
	total := xcccrypto.BlockSize + decryptSize
	cipherText := make([]byte, total)
	copy(cipherText, plain)
	for i := 0; i+xcccrypto.BlockSize <= total; i += xcccrypto.BlockSize {
		block.Encrypt(cipherText[i:i+xcccrypto.BlockSize], cipherText[i:i+xcccrypto.BlockSize])
	}

	buf := make([]byte, 0, 4+xcccrypto.WrappedKeySize+total+len(body1)+len(body2))
	buf = binary.LittleEndian.AppendUint32(buf, flagEncrypted)
	buf = append(buf, wrapped...)
	buf = append(buf, cipherText...)
	buf = append(buf, body1...)
	buf = append(buf, body2...)

	a, err := Decode(buf, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, a.entries, int(fileCount))

	got1, ok := a.Entry(entries[0].key)
	require.True(t, ok)
	assert.Equal(t, body1, got1)

	got2, ok := a.Entry(entries[1].key)
	require.True(t, ok)
	assert.Equal(t, body2, got2)
}
