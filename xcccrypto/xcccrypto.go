// Package xcccrypto implements the RSA-unwrap-then-Blowfish-ECB scheme used
// by the encrypted MIX variant: an 80-byte RSA-wrapped blob yields a
// variable-length Blowfish session key, which then ECB-decrypts the
// archive's index in 8-byte blocks.
package xcccrypto

import (
	"crypto/cipher"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/blowfish"

	"github.com/1siamBot/xccarchive/xccfmt"
)

// WrappedKeySize is the size of the RSA-wrapped Blowfish key blob that
// precedes an encrypted archive's index.
const WrappedKeySize = 80

// BlockSize is the Blowfish ECB block size used throughout the index
// decryption.
const BlockSize = 8

const rsaBlockSize = 40

// rsaModulus and rsaExponent are the fixed public key used by every
// RA2/YR-family encrypted MIX; there is no corresponding private key, so
// this module can only unwrap existing archives, never rewrap new ones.
var (
	rsaModulus  = mustBig("681994811107118991598552881669230523074742337494683459234572860554038768387821901289207730765589")
	rsaExponent = big.NewInt(65537)
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("xcccrypto: invalid modulus literal")
	}
	return v
}

// UnwrapBlowfishKey RSA-unwraps an 80-byte wrapped key blob into a
// Blowfish session key. The blob is split into two 40-byte little-endian
// big-integer blocks, each exponentiated under the fixed public key, each
// result emitted little-endian with trailing zero bytes trimmed, and the
// two results concatenated. The result is typically, but not necessarily,
// 56 bytes.
func UnwrapBlowfishKey(wrapped []byte) ([]byte, error) {
	if len(wrapped) < WrappedKeySize {
		return nil, xccfmt.CryptoErrf("wrapped key too short: got %d bytes, want %d", len(wrapped), WrappedKeySize)
	}

	key := make([]byte, 0, 2*rsaBlockSize)
	key = append(key, unwrapBlock(wrapped[0:rsaBlockSize])...)
	key = append(key, unwrapBlock(wrapped[rsaBlockSize:2*rsaBlockSize])...)
	return key, nil
}

// unwrapBlock RSA-exponentiates one little-endian 40-byte block under the
// fixed public key and re-emits the result little-endian with trailing
// (high-order) zero bytes trimmed.
func unwrapBlock(block []byte) []byte {
	c := new(big.Int).SetBytes(reverse(block))
	m := new(big.Int).Exp(c, rsaExponent, rsaModulus)

	be := m.Bytes() // big-endian, no leading zeros
	le := reverse(be)

	// Trim trailing zero bytes (the high-order end once interpreted
	// little-endian), matching the reference tool's behavior: the
	// plaintext block is rarely a full 40 bytes.
	for len(le) > 0 && le[len(le)-1] == 0 {
		le = le[:len(le)-1]
	}
	return le
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// NewBlowfishECB constructs a Blowfish cipher.Block from an unwrapped
// session key. Key length is whatever UnwrapBlowfishKey produced; it must
// not be normalized or truncated before reaching this constructor.
func NewBlowfishECB(key []byte) (cipher.Block, error) {
	bf, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, xccfmt.CryptoErr(err, "blowfish key rejected (len=%d)", len(key))
	}
	return bf, nil
}

// decryptECB decrypts buf in place, BlockSize bytes at a time. len(buf)
// must be a multiple of BlockSize.
func decryptECB(block cipher.Block, buf []byte) {
	bs := block.BlockSize()
	for i := 0; i+bs <= len(buf); i += bs {
		block.Decrypt(buf[i:i+bs], buf[i:i+bs])
	}
}

// IndexHeader is the result of decrypting the first ciphertext block of
// an encrypted archive's index.
type IndexHeader struct {
	FileCount uint16
	DataSize  uint32
	// Leftover holds the first block's trailing 2 plaintext bytes,
	// which belong to the index proper and must be prepended to the
	// bytes DecryptIndexRest returns.
	Leftover [2]byte
}

// DecryptIndexHeader decrypts the first 8-byte ciphertext block following
// the wrapped key and splits it into (file_count, data_size, leftover).
func DecryptIndexHeader(block cipher.Block, firstBlock []byte) (IndexHeader, error) {
	if len(firstBlock) != BlockSize {
		return IndexHeader{}, xccfmt.InvalidFormatf("index header block must be %d bytes, got %d", BlockSize, len(firstBlock))
	}
	buf := make([]byte, BlockSize)
	copy(buf, firstBlock)
	decryptECB(block, buf)

	var h IndexHeader
	h.FileCount = binary.LittleEndian.Uint16(buf[0:2])
	h.DataSize = binary.LittleEndian.Uint32(buf[2:6])
	copy(h.Leftover[:], buf[6:8])
	return h, nil
}

// IndexSizing returns the number of additional ciphertext bytes to read
// (a multiple of BlockSize) and the padding to discard, given a decoded
// file count, per spec.md §4.2:
//
//	decrypt_size = ceil((fileCount*12 - 2) / 8) * 8
//	padding_size = decrypt_size - (fileCount*12 - 2)
func IndexSizing(fileCount uint16) (decryptSize, paddingSize int) {
	raw := int(fileCount)*12 - 2
	decryptSize = 0
	if raw > 0 {
		decryptSize = ((raw + BlockSize - 1) / BlockSize) * BlockSize
	}
	paddingSize = decryptSize - raw
	return decryptSize, paddingSize
}

// DecryptIndexRest decrypts the remaining ciphertext (whose length must
// equal IndexSizing's decryptSize) and returns the full k*12 plaintext
// index, with the header's leftover bytes prepended and the trailing
// padding bytes discarded.
func DecryptIndexRest(block cipher.Block, header IndexHeader, rest []byte) ([]byte, error) {
	decryptSize, paddingSize := IndexSizing(header.FileCount)
	if len(rest) != decryptSize {
		return nil, xccfmt.InvalidFormatf("index ciphertext must be %d bytes, got %d", decryptSize, len(rest))
	}

	buf := make([]byte, len(rest))
	copy(buf, rest)
	decryptECB(block, buf)

	full := make([]byte, 0, 2+len(buf))
	full = append(full, header.Leftover[:]...)
	full = append(full, buf...)

	want := int(header.FileCount) * 12
	if len(full)-paddingSize != want {
		return nil, xccfmt.InvalidFormatf("decrypted index size mismatch: got %d, want %d", len(full)-paddingSize, want)
	}
	return full[:want], nil
}
