package jpegr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"regexp"
	"strconv"
)

var itemLengthRe = regexp.MustCompile(`Item:Length="\d+"`)

func beginImage(out *bytes.Buffer) {
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
}

func writeAppIfPresent(out *bytes.Buffer, marker byte, payload []byte) {
	if len(payload) > 0 {
		writeAppSegment(out, marker, payload)
	}
}

// writeMPFIndex emits the MPF index segment. The primary size counts the
// header written so far, the MPF segment itself, and primaryBodyLen; the
// stored secondary offset is relative to the MPF TIFF header, which sits 8
// bytes into the segment.
func writeMPFIndex(out *bytes.Buffer, primaryBodyLen, secondarySize int) {
	headerLen := out.Len()
	primarySize := headerLen + 2 + calculateMpfSize() + primaryBodyLen
	mpf := generateMpf(primarySize, 0, secondarySize, primarySize-headerLen-8)
	writeAppSegment(out, markerAPP2, mpf)
}

// writeSecondaryImage appends the gain map image with its metadata
// segments spliced in after SOI.
func writeSecondaryImage(out *bytes.Buffer, gainmapJPEG, xmp, iso []byte) {
	beginImage(out)
	writeAppIfPresent(out, markerAPP1, xmp)
	writeAppIfPresent(out, markerAPP2, iso)
	out.Write(gainmapJPEG[2:])
}

// assembleContainerWithSegments joins two JPEGs into one container, carrying
// the given metadata payloads verbatim. The component images are used as is;
// their existing APP segments stay in place.
func assembleContainerWithSegments(primaryJPEG, gainmapJPEG []byte, segs *MetadataSegments) ([]byte, error) {
	if len(primaryJPEG) < 2 || len(gainmapJPEG) < 2 {
		return nil, errors.New("invalid JPEG data")
	}
	secondarySize := len(gainmapJPEG) + appSize(segs.SecondaryXMP) + appSize(segs.SecondaryISO)

	primaryXMP := segs.PrimaryXMP
	if len(primaryXMP) > 0 {
		var err error
		if primaryXMP, err = updatePrimaryXmpLength(primaryXMP, secondarySize); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	beginImage(&out)
	writeAppIfPresent(&out, markerAPP1, primaryXMP)
	writeAppIfPresent(&out, markerAPP2, segs.PrimaryISO)
	writeMPFIndex(&out, len(primaryJPEG), secondarySize)
	out.Write(primaryJPEG[2:])

	writeSecondaryImage(&out, gainmapJPEG, segs.SecondaryXMP, segs.SecondaryISO)
	return out.Bytes(), nil
}

// assembleContainerVipsLike mimics vips marker ordering: EXIF, ISO(version),
// MPF, ICC.
func assembleContainerVipsLike(primaryJPEG, gainmapJPEG, exif []byte, icc [][]byte, secondaryXMP, secondaryISO []byte) ([]byte, error) {
	return assembleContainerVipsLikeWithPrimaryXMP(primaryJPEG, gainmapJPEG, exif, icc, nil, secondaryXMP, secondaryISO)
}

// assembleContainerVipsLikeWithPrimaryXMP is the vips-ordered assembler with
// an optional primary XMP segment between EXIF and the ISO version word.
// Both component JPEGs are stripped of their own APP segments first, so the
// container header fully controls the metadata layout.
func assembleContainerVipsLikeWithPrimaryXMP(primaryJPEG, gainmapJPEG, exif []byte, icc [][]byte, primaryXMP, secondaryXMP, secondaryISO []byte) ([]byte, error) {
	if len(primaryJPEG) < 2 || len(gainmapJPEG) < 2 {
		return nil, errors.New("invalid JPEG data")
	}
	primaryBody, err := stripAppSegments(primaryJPEG)
	if err != nil {
		return nil, err
	}
	gainmapBody, err := stripAppSegments(gainmapJPEG)
	if err != nil {
		return nil, err
	}

	secondarySize := len(gainmapBody) + appSize(secondaryXMP) + appSize(secondaryISO)
	if len(primaryXMP) > 0 {
		if primaryXMP, err = updatePrimaryXmpLength(primaryXMP, secondarySize); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	beginImage(&out)
	writeAppIfPresent(&out, markerAPP1, exif)
	writeAppIfPresent(&out, markerAPP1, primaryXMP)
	writeAppIfPresent(&out, markerAPP2, isoVersionHeader(secondaryISO))
	// ICC lands after MPF, so the MPF written here carries placeholder
	// sizes of the right length and gets patched once the layout is final.
	writeMPFIndex(&out, len(primaryBody), secondarySize)
	for _, seg := range icc {
		writeAppSegment(&out, markerAPP2, seg)
	}
	out.Write(primaryBody[2:])

	writeSecondaryImage(&out, gainmapBody, secondaryXMP, secondaryISO)

	final := out.Bytes()
	if err := replaceMpfPayload(final); err != nil {
		return nil, err
	}
	return final, nil
}

// assembleContainer builds a container from bare component JPEGs, deriving
// the XMP and ISO segments from metadata.
func assembleContainer(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata) ([]byte, error) {
	segs, err := buildMetadataSegments(meta, len(gainmapJPEG))
	if err != nil {
		return nil, err
	}
	return assembleContainerWithSegments(primaryJPEG, gainmapJPEG, segs)
}

// buildMetadataSegments serializes metadata into fresh XMP and ISO payloads
// for both container images. gainmapLen seeds the primary XMP Item:Length;
// assembly fixes it up once the true secondary size is known.
func buildMetadataSegments(meta *GainMapMetadata, gainmapLen int) (*MetadataSegments, error) {
	iso, err := buildIsoPayload(meta)
	if err != nil {
		return nil, err
	}
	return &MetadataSegments{
		PrimaryXMP:   generatePrimaryXMP(gainmapLen),
		SecondaryXMP: generateGainmapXMP(meta),
		SecondaryISO: iso,
	}, nil
}

// isoVersionHeader derives the primary image's ISO segment from the gain
// map's: the version word only, since the full payload belongs to the gain
// map image.
func isoVersionHeader(secondaryISO []byte) []byte {
	versionLen := len(isoNamespace) + 1 + 4
	if len(secondaryISO) == 0 {
		payload := append([]byte(isoNamespace), 0)
		return append(payload, 0, 0, 0, 0)
	}
	if len(secondaryISO) > versionLen {
		return append([]byte(nil), secondaryISO[:versionLen]...)
	}
	return secondaryISO
}

// stripAppSegments removes APP0-APP15 and COM segments from a JPEG, keeping
// everything else byte for byte.
func stripAppSegments(jpegData []byte) ([]byte, error) {
	if !hasSOI(jpegData, 0) {
		return nil, errors.New("invalid jpeg")
	}
	var out bytes.Buffer
	beginImage(&out)
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			out.WriteByte(jpegData[pos])
			pos++
			continue
		}
		for pos < len(jpegData) && jpegData[pos] == markerStart {
			pos++
		}
		if pos >= len(jpegData) {
			break
		}
		marker := jpegData[pos]
		pos++
		switch {
		case marker == markerSOS || marker == markerEOI:
			out.WriteByte(markerStart)
			out.WriteByte(marker)
			out.Write(jpegData[pos:])
			return out.Bytes(), nil
		case marker >= 0xD0 && marker <= 0xD7:
			out.WriteByte(markerStart)
			out.WriteByte(marker)
			continue
		}
		if pos+1 >= len(jpegData) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos:]))
		if segLen < 2 || pos+segLen > len(jpegData) {
			return nil, errors.New("invalid segment length")
		}
		if marker != 0xFE && (marker < markerAPP0 || marker > 0xEF) {
			out.WriteByte(markerStart)
			out.WriteByte(marker)
			out.Write(jpegData[pos : pos+segLen])
		}
		pos += segLen
	}
	return out.Bytes(), nil
}

// replaceMpfPayload rewrites the MPF index in place once the final byte
// ranges of both images are known. The replacement must match the
// placeholder length exactly.
func replaceMpfPayload(data []byte) error {
	mpfStart, mpfLen, err := locateMPF(data)
	if err != nil {
		return err
	}
	ranges, err := scanJPEGs(data)
	if err != nil || len(ranges) < 2 {
		return errors.New("jpeg ranges not found")
	}
	// Stored offsets are relative to the TIFF header after the signature.
	secondaryOffset := ranges[1][0] - (mpfStart + len(mpfSig))
	mpf := generateMpf(ranges[0][1]-ranges[0][0], 0, ranges[1][1]-ranges[1][0], secondaryOffset)
	if len(mpf) != mpfLen {
		return errors.New("mpf size mismatch")
	}
	copy(data[mpfStart:mpfStart+mpfLen], mpf)
	return nil
}

// locateMPF returns the payload start and length of the MPF APP2 segment in
// the container header.
func locateMPF(data []byte) (start, length int, err error) {
	w := &segWalker{data: data, pos: 2}
	for {
		marker, more := w.next()
		if !more || marker == markerSOS || marker == markerEOI {
			return 0, 0, errors.New("mpf not found")
		}
		if standalone(marker) {
			continue
		}
		segStart := w.pos + 2
		payload, err := w.segment()
		if err != nil {
			return 0, 0, err
		}
		if marker == markerAPP2 && bytes.HasPrefix(payload, mpfSig) {
			return segStart, len(payload), nil
		}
	}
}

// updatePrimaryXmpLength patches the Item:Length attribute in the primary
// XMP directory to the final secondary image size.
func updatePrimaryXmpLength(payload []byte, newLen int) ([]byte, error) {
	if !bytes.Contains(payload, []byte(xmpNamespace)) {
		return nil, errors.New("primary xmp namespace missing")
	}
	repl := itemLengthRe.ReplaceAll(payload, []byte(`Item:Length="`+strconv.Itoa(newLen)+`"`))
	if bytes.Equal(repl, payload) {
		return payload, nil
	}
	return repl, nil
}

// appSize is the on-wire size of an APP segment carrying payload, zero when
// there is nothing to write.
func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}
