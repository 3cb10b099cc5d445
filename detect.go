package jpegr

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var (
	xmpPrefix = append([]byte(xmpNamespace), 0)
	isoPrefix = append([]byte(isoNamespace), 0)
)

// IsUltraHDR reports whether r carries an UltraHDR container. The check is
// streaming: it skips over the primary image and stops as soon as the gain
// map header segments are seen, so it never buffers a whole file. A stream
// that is not a JPEG at all yields (false, nil), not an error.
func IsUltraHDR(r io.Reader) (bool, error) {
	s := &markerScanner{br: bufio.NewReader(r)}
	found, err := s.seekSOI()
	if err != nil || !found {
		return false, err
	}
	if err := s.skipImage(); err != nil {
		return false, err
	}
	found, err = s.seekSOI()
	if err != nil || !found {
		return false, err
	}
	return s.gainmapHeaderPresent()
}

// markerScanner walks JPEG marker structure over a buffered stream.
type markerScanner struct {
	br *bufio.Reader
}

// seekSOI scans forward to the next SOI marker. EOF before one is found is
// a negative answer rather than an error.
func (s *markerScanner) seekSOI() (bool, error) {
	var prev byte
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if prev == markerStart && b == markerSOI {
			return true, nil
		}
		prev = b
	}
}

// skipImage consumes one complete JPEG image, scan data included.
func (s *markerScanner) skipImage() error {
	for {
		marker, err := s.nextMarker()
		if err != nil {
			return err
		}
		switch marker {
		case markerEOI:
			return nil
		case markerSOS:
			return s.skipScan()
		default:
			if err := s.discardSegment(); err != nil {
				return err
			}
		}
	}
}

// gainmapHeaderPresent inspects the APP segments of the secondary image for
// XMP or ISO gain map payloads. The search stops at the scan: metadata past
// SOS would not belong to the header.
func (s *markerScanner) gainmapHeaderPresent() (bool, error) {
	for {
		marker, err := s.nextMarker()
		if err != nil {
			return false, err
		}
		switch marker {
		case markerEOI, markerSOS:
			return false, nil
		case markerAPP1, markerAPP2:
			prefix := xmpPrefix
			if marker == markerAPP2 {
				prefix = isoPrefix
			}
			match, err := s.segmentHasPrefix(prefix)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		default:
			if err := s.discardSegment(); err != nil {
				return false, err
			}
		}
	}
}

// nextMarker reads through fill bytes to the next marker code.
func (s *markerScanner) nextMarker() (byte, error) {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != markerStart {
			continue
		}
		for {
			m, err := s.br.ReadByte()
			if err != nil {
				return 0, err
			}
			if m != markerStart {
				return m, nil
			}
		}
	}
}

func (s *markerScanner) segmentLength() (int, error) {
	hi, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := s.br.ReadByte()
	if err != nil {
		return 0, err
	}
	n := int(hi)<<8 | int(lo)
	if n < 2 {
		return 0, errors.New("invalid segment length")
	}
	return n - 2, nil
}

func (s *markerScanner) discardSegment() error {
	n, err := s.segmentLength()
	if err != nil {
		return err
	}
	return s.discard(n)
}

// segmentHasPrefix reads just enough of the current segment payload to test
// the namespace prefix, then drains the rest.
func (s *markerScanner) segmentHasPrefix(prefix []byte) (bool, error) {
	payloadLen, err := s.segmentLength()
	if err != nil {
		return false, err
	}
	readLen := payloadLen
	if readLen > len(prefix) {
		readLen = len(prefix)
	}
	buf := make([]byte, readLen)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return false, err
	}
	if err := s.discard(payloadLen - readLen); err != nil {
		return false, err
	}
	return bytes.HasPrefix(buf, prefix), nil
}

func (s *markerScanner) discard(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, s.br, int64(n))
	return err
}

// skipScan consumes entropy-coded data until EOI. Stuffed zero bytes and
// restart markers stay inside the scan.
func (s *markerScanner) skipScan() error {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return err
		}
		if b != markerStart {
			continue
		}
		m, err := s.br.ReadByte()
		if err != nil {
			return err
		}
		for m == markerStart {
			m, err = s.br.ReadByte()
			if err != nil {
				return err
			}
		}
		switch {
		case m == 0x00:
		case m >= 0xD0 && m <= 0xD7:
		case m == markerEOI:
			return nil
		}
	}
}
