package jpegr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
)

const (
	xmpNamespace = "http://ns.adobe.com/xap/1.0/"
	isoNamespace = "urn:iso:std:iso:ts:21496:-1"
)

var (
	exifSig = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig  = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)

// segWalker steps through JPEG marker structure in an in-memory buffer.
// It is the slice-based sibling of the streaming markerScanner.
type segWalker struct {
	data []byte
	pos  int
}

// standalone reports markers that carry no length field.
func standalone(marker byte) bool {
	if marker >= 0xD0 && marker <= 0xD7 {
		return true
	}
	return marker == 0x01 || marker == markerSOI || marker == markerEOI
}

// next advances to the next marker code, collapsing 0xFF fill bytes.
// It returns false when the buffer runs out.
func (w *segWalker) next() (byte, bool) {
	for w.pos < len(w.data) {
		if w.data[w.pos] != markerStart {
			w.pos++
			continue
		}
		for w.pos < len(w.data) && w.data[w.pos] == markerStart {
			w.pos++
		}
		if w.pos >= len(w.data) {
			return 0, false
		}
		m := w.data[w.pos]
		w.pos++
		return m, true
	}
	return 0, false
}

// segment reads the length-prefixed payload of the current marker and
// leaves the cursor on the byte after it.
func (w *segWalker) segment() ([]byte, error) {
	if w.pos+1 >= len(w.data) {
		return nil, errors.New("truncated marker")
	}
	segLen := int(binary.BigEndian.Uint16(w.data[w.pos:]))
	if segLen < 2 || w.pos+segLen > len(w.data) {
		return nil, errors.New("invalid segment length")
	}
	payload := w.data[w.pos+2 : w.pos+segLen]
	w.pos += segLen
	return payload, nil
}

// scanJPEGs locates the byte ranges of every JPEG image in data. When an
// MPF index is present it is authoritative; otherwise the buffer is walked
// marker by marker.
func scanJPEGs(data []byte) ([][2]int, error) {
	if ranges, ok := scanJPEGsByMPF(data); ok {
		return ranges, nil
	}
	var ranges [][2]int
	i := 0
	for i+1 < len(data) {
		if data[i] != markerStart || data[i+1] != markerSOI {
			i++
			continue
		}
		end, err := findJPEGEnd(data, i)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, [2]int{i, end})
		i = end
	}
	if len(ranges) == 0 {
		return nil, errors.New("no JPEG images found")
	}
	return ranges, nil
}

// scanJPEGsByMPF resolves the primary and secondary image ranges from the
// MPF index of the primary image. Any inconsistency falls back to marker
// scanning rather than failing.
func scanJPEGsByMPF(data []byte) ([][2]int, bool) {
	if !hasSOI(data, 0) {
		return nil, false
	}
	primarySize, secondarySize, secondaryStart, ok := findMPFInfo(data, 0)
	if !ok || primarySize <= 0 || secondarySize <= 0 {
		return nil, false
	}
	secondaryEnd := secondaryStart + secondarySize
	if primarySize > len(data) || secondaryEnd > len(data) || secondaryStart < 0 {
		return nil, false
	}
	if !hasSOI(data, secondaryStart) {
		return nil, false
	}
	return [][2]int{{0, primarySize}, {secondaryStart, secondaryEnd}}, true
}

func hasSOI(data []byte, at int) bool {
	return at >= 0 && at+1 < len(data) && data[at] == markerStart && data[at+1] == markerSOI
}

// findMPFInfo walks the header of the image starting at primaryStart and
// parses the first MPF APP2 segment it finds. The returned secondary offset
// is absolute in data; MPF stores it relative to its TIFF header.
func findMPFInfo(data []byte, primaryStart int) (primarySize, secondarySize, secondaryOffset int, ok bool) {
	if !hasSOI(data, primaryStart) {
		return 0, 0, 0, false
	}
	w := &segWalker{data: data, pos: primaryStart + 2}
	for {
		marker, more := w.next()
		if !more {
			return 0, 0, 0, false
		}
		if marker == markerEOI || marker == markerSOS {
			return 0, 0, 0, false
		}
		if standalone(marker) {
			continue
		}
		segStart := w.pos + 2
		payload, err := w.segment()
		if err != nil {
			return 0, 0, 0, false
		}
		if marker != markerAPP2 || !bytes.HasPrefix(payload, mpfSig) {
			continue
		}
		info, err := parseMPF(payload)
		if err != nil {
			return 0, 0, 0, false
		}
		tiffBase := segStart + len(mpfSig)
		return info.primarySize, info.secondarySize, tiffBase + info.secondaryOffset, true
	}
}

type mpfInfo struct {
	primarySize     int
	secondarySize   int
	secondaryOffset int
}

// parseMPF decodes the TIFF-structured MPF payload: endianness, index IFD,
// and the two MP entries describing the primary and secondary images.
func parseMPF(payload []byte) (mpfInfo, error) {
	if len(payload) < len(mpfSig)+8 || !bytes.HasPrefix(payload, mpfSig) {
		return mpfInfo{}, errors.New("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	var order binary.ByteOrder
	switch {
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	default:
		return mpfInfo{}, errors.New("mpf endian invalid")
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return mpfInfo{}, errors.New("mpf tiff magic invalid")
	}
	ifdPos := int(order.Uint32(tiff[4:8]))
	if ifdPos < 0 || ifdPos+2 > len(tiff) {
		return mpfInfo{}, errors.New("mpf ifd offset invalid")
	}
	tagCount := int(order.Uint16(tiff[ifdPos:]))
	ifdPos += 2

	entryOffset := -1
	for i := 0; i < tagCount; i++ {
		if ifdPos+12 > len(tiff) {
			return mpfInfo{}, errors.New("mpf ifd truncated")
		}
		field := tiff[ifdPos : ifdPos+12]
		tag := order.Uint16(field[0:2])
		typ := order.Uint16(field[2:4])
		count := order.Uint32(field[4:8])
		if tag == mpfEntryTag && typ == mpfTypeUndefined && count >= mpfEntrySize {
			entryOffset = int(order.Uint32(field[8:12]))
			break
		}
		ifdPos += 12
	}
	if entryOffset < 0 || entryOffset+mpfEntrySize*mpfNumPictures > len(tiff) {
		return mpfInfo{}, errors.New("mpf entry offset invalid")
	}

	var info mpfInfo
	for i := 0; i < mpfNumPictures; i++ {
		entry := tiff[entryOffset+i*mpfEntrySize:]
		attr := order.Uint32(entry[0:4])
		size := int(order.Uint32(entry[4:8]))
		offset := int(order.Uint32(entry[8:12]))
		if attr&mpfAttrTypePrimary != 0 {
			info.primarySize = size
		} else {
			info.secondarySize = size
			info.secondaryOffset = offset
		}
	}
	if info.primarySize == 0 || info.secondarySize == 0 {
		return mpfInfo{}, errors.New("mpf sizes missing")
	}
	return info, nil
}

// findJPEGEnd returns the offset just past the EOI of the image starting at
// start. Scan data is walked byte by byte so stuffed zero bytes and restart
// markers do not terminate the image early.
func findJPEGEnd(data []byte, start int) (int, error) {
	if !hasSOI(data, start) {
		return 0, errors.New("not a JPEG SOI")
	}
	w := &segWalker{data: data, pos: start + 2}
	for {
		marker, more := w.next()
		if !more {
			return 0, errors.New("no EOI found")
		}
		switch {
		case marker == markerEOI:
			return w.pos, nil
		case marker == markerSOS:
			if _, err := w.segment(); err != nil {
				return 0, errors.New("truncated SOS")
			}
			return w.endOfScan()
		case standalone(marker):
			continue
		}
		if _, err := w.segment(); err != nil {
			return 0, err
		}
	}
}

// endOfScan consumes entropy-coded data until EOI and returns the offset
// past it. Non-restart markers inside the scan are treated as segments and
// skipped, matching how progressive files interleave DHT with scans.
func (w *segWalker) endOfScan() (int, error) {
	for w.pos+1 < len(w.data) {
		if w.data[w.pos] != markerStart {
			w.pos++
			continue
		}
		next := w.data[w.pos+1]
		switch {
		case next == 0x00, next >= 0xD0 && next <= 0xD7:
			w.pos += 2
		case next == markerEOI:
			return w.pos + 2, nil
		default:
			w.pos += 2
			if _, err := w.segment(); err != nil {
				return 0, errors.New("invalid marker length in scan")
			}
		}
	}
	return 0, errors.New("no EOI found")
}

// extractAppSegments collects all APP1 and APP2 payloads up to the scan.
func extractAppSegments(jpegData []byte) (app1 [][]byte, app2 [][]byte, err error) {
	return collectAppSegments(jpegData, false)
}

// extractContainerHeaderSegments collects APP1/APP2 payloads of the
// container header only, stopping once the MPF segment has been seen.
func extractContainerHeaderSegments(data []byte) (app1 [][]byte, app2 [][]byte, err error) {
	return collectAppSegments(data, true)
}

func collectAppSegments(data []byte, stopAtMPF bool) (app1 [][]byte, app2 [][]byte, err error) {
	if !hasSOI(data, 0) {
		return nil, nil, errors.New("invalid JPEG")
	}
	w := &segWalker{data: data, pos: 2}
	for {
		marker, more := w.next()
		if !more || marker == markerSOS || marker == markerEOI {
			return app1, app2, nil
		}
		if standalone(marker) {
			continue
		}
		payload, err := w.segment()
		if err != nil {
			return nil, nil, err
		}
		switch marker {
		case markerAPP1:
			app1 = append(app1, append([]byte(nil), payload...))
		case markerAPP2:
			app2 = append(app2, append([]byte(nil), payload...))
			if stopAtMPF && bytes.HasPrefix(payload, mpfSig) {
				return app1, app2, nil
			}
		}
	}
}

// findXMP returns the first APP1 payload carrying the XMP namespace.
func findXMP(app1 [][]byte) []byte {
	return findByPrefix(app1, xmpPrefix)
}

// findISO returns the first APP2 payload carrying the ISO 21496-1 namespace.
func findISO(app2 [][]byte) []byte {
	return findByPrefix(app2, isoPrefix)
}

func findByPrefix(segs [][]byte, prefix []byte) []byte {
	for _, seg := range segs {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

type iccSegment struct {
	seq  int
	data []byte
}

type appSegment struct {
	marker  byte
	payload []byte
}

// extractExifAndIcc returns the EXIF APP1 payload (if present) and the ICC
// APP2 payloads ordered by chunk sequence number.
func extractExifAndIcc(jpegData []byte) ([]byte, [][]byte, error) {
	app1, app2, err := extractAppSegments(jpegData)
	if err != nil {
		return nil, nil, err
	}
	exif := findByPrefix(app1, exifSig)
	if exif != nil {
		exif = append([]byte(nil), exif...)
	}
	var iccSegs []iccSegment
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, iccSig) && len(seg) >= len(iccSig)+2 {
			iccSegs = append(iccSegs, iccSegment{seq: int(seg[len(iccSig)]), data: append([]byte(nil), seg...)})
		}
	}
	if len(iccSegs) == 0 {
		return exif, nil, nil
	}
	sort.Slice(iccSegs, func(i, j int) bool { return iccSegs[i].seq < iccSegs[j].seq })
	out := make([][]byte, 0, len(iccSegs))
	for _, s := range iccSegs {
		out = append(out, s.data)
	}
	return exif, out, nil
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

// insertAppSegments splices APP segments directly after SOI.
func insertAppSegments(jpegData []byte, segs []appSegment) ([]byte, error) {
	if !hasSOI(jpegData, 0) {
		return nil, errors.New("invalid jpeg")
	}
	var out bytes.Buffer
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	for _, s := range segs {
		writeAppSegment(&out, s.marker, s.payload)
	}
	out.Write(jpegData[2:])
	return out.Bytes(), nil
}
