package mix

import (
	"github.com/1siamBot/xccarchive/xcccrypto"
	"github.com/1siamBot/xccarchive/xccfmt"
)

// parseEncryptedFormat reads the 4-byte flags (already known encrypted),
// RSA-unwraps the 80-byte Blowfish key that follows, and Blowfish-ECB
// decrypts the index per spec.md §4.2's block-and-padding arithmetic.
func parseEncryptedFormat(data []byte) ([]entry, []byte, error) {
	const flagsSize = 4
	wrappedStart := flagsSize
	wrappedEnd := wrappedStart + xcccrypto.WrappedKeySize
	if len(data) < wrappedEnd+xcccrypto.BlockSize {
		return nil, nil, xccfmt.InvalidFormatf("file too small for encrypted MIX header: %d bytes", len(data))
	}

	key, err := xcccrypto.UnwrapBlowfishKey(data[wrappedStart:wrappedEnd])
	if err != nil {
		return nil, nil, err
	}
	block, err := xcccrypto.NewBlowfishECB(key)
	if err != nil {
		return nil, nil, err
	}

	firstBlockStart := wrappedEnd
	firstBlockEnd := firstBlockStart + xcccrypto.BlockSize
	header, err := xcccrypto.DecryptIndexHeader(block, data[firstBlockStart:firstBlockEnd])
	if err != nil {
		return nil, nil, err
	}

	decryptSize, _ := xcccrypto.IndexSizing(header.FileCount)
	restStart := firstBlockEnd
	restEnd := restStart + decryptSize
	if restEnd > len(data) {
		return nil, nil, xccfmt.InvalidFormatf("encrypted index of %d entries exceeds file size", header.FileCount)
	}

	indexBytes, err := xcccrypto.DecryptIndexRest(block, header, data[restStart:restEnd])
	if err != nil {
		return nil, nil, err
	}

	entries := readEntries(indexBytes, header.FileCount)
	return entries, data[restEnd:], nil
}

