package jpegr

import "encoding/binary"

// CIPA DC-007 Multi-Picture Format index. The container carries exactly two
// pictures: the primary SDR image and the gain map.
const (
	mpfNumPictures = 2
	mpfTagCount    = 3
	mpfTagSize     = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag        = 0xB000
	mpfNumberOfImagesTag = 0xB001
	mpfEntryTag          = 0xB002
	mpfEntrySize         = 16

	mpfAttrFormatJpeg  = 0x0000000
	mpfAttrTypePrimary = 0x030000
)

var (
	mpfSig       = []byte{'M', 'P', 'F', 0}
	mpfBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfVersion   = []byte{'0', '1', '0', '0'}
)

func calculateMpfSize() int {
	const ifdBody = 2 + mpfTagCount*mpfTagSize + 4
	return len(mpfSig) + len(mpfBigEndian) + 4 + ifdBody + mpfNumPictures*mpfEntrySize
}

// generateMpf writes the MPF index IFD. Offsets are relative to the start of
// the TIFF header, which follows the four-byte signature.
func generateMpf(primarySize, primaryOffset, secondarySize, secondaryOffset int) []byte {
	be := binary.BigEndian
	buf := make([]byte, 0, calculateMpfSize())

	buf = append(buf, mpfSig...)
	buf = append(buf, mpfBigEndian...)
	buf = be.AppendUint32(buf, uint32(len(mpfSig)+len(mpfBigEndian))) // index IFD offset

	buf = be.AppendUint16(buf, mpfTagCount)

	buf = be.AppendUint16(buf, mpfVersionTag)
	buf = be.AppendUint16(buf, mpfTypeUndefined)
	buf = be.AppendUint32(buf, uint32(len(mpfVersion)))
	buf = append(buf, mpfVersion...)

	buf = be.AppendUint16(buf, mpfNumberOfImagesTag)
	buf = be.AppendUint16(buf, mpfTypeLong)
	buf = be.AppendUint32(buf, 1)
	buf = be.AppendUint32(buf, mpfNumPictures)

	buf = be.AppendUint16(buf, mpfEntryTag)
	buf = be.AppendUint16(buf, mpfTypeUndefined)
	buf = be.AppendUint32(buf, mpfEntrySize*mpfNumPictures)
	buf = be.AppendUint32(buf, uint32(8+2+mpfTagCount*mpfTagSize+4))

	// No attribute IFD.
	buf = be.AppendUint32(buf, 0)

	buf = be.AppendUint32(buf, mpfAttrFormatJpeg|mpfAttrTypePrimary)
	buf = be.AppendUint32(buf, uint32(primarySize))
	buf = be.AppendUint32(buf, uint32(primaryOffset))
	buf = be.AppendUint16(buf, 0)
	buf = be.AppendUint16(buf, 0)

	buf = be.AppendUint32(buf, mpfAttrFormatJpeg)
	buf = be.AppendUint32(buf, uint32(secondarySize))
	buf = be.AppendUint32(buf, uint32(secondaryOffset))
	buf = be.AppendUint16(buf, 0)
	buf = be.AppendUint16(buf, 0)

	return buf
}
