package jpegr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vearutop/jpegr/internal/jpegx"
)

// jpegTables holds the coding tables of a baseline JPEG stream so a
// re-encode can reproduce the source's quantization and entropy coding.
type jpegTables struct {
	Quant    [2][64]byte
	Huff     [4]jpegx.HuffmanSpec
	Sampling [3]jpegx.SamplingFactor
	HasQuant bool
	HasHuff  bool
	HasSOF0  bool
}

// extractJpegTables walks the marker segments before the first scan and
// collects DQT, DHT and SOF0 contents. All three must be present.
func extractJpegTables(data []byte) (*jpegTables, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errors.New("invalid jpeg")
	}
	t := &jpegTables{}
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != 0xFF {
			pos++
			continue
		}
		// Fill bytes before a marker are legal.
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 { // RSTn, no payload
			continue
		}
		if pos+1 >= len(data) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return nil, errors.New("invalid segment length")
		}
		seg := data[pos+2 : pos+segLen]
		var err error
		switch marker {
		case 0xDB:
			err = t.readDQT(seg)
		case 0xC4:
			err = t.readDHT(seg)
		case 0xC0:
			err = t.readSOF0(seg)
		}
		if err != nil {
			return nil, err
		}
		pos += segLen
	}
	if !t.HasQuant || !t.HasHuff || !t.HasSOF0 {
		return nil, errors.New("missing tables or SOF0")
	}
	return t, nil
}

func (t *jpegTables) readDQT(seg []byte) error {
	for pos := 0; pos < len(seg); {
		pq, tq := seg[pos]>>4, seg[pos]&0x0F
		pos++
		if pq != 0 {
			return errors.New("unsupported 16-bit quant table")
		}
		if pos+64 > len(seg) {
			return errors.New("truncated dqt table")
		}
		if tq <= 1 {
			copy(t.Quant[tq][:], seg[pos:pos+64])
			t.HasQuant = true
		}
		pos += 64
	}
	return nil
}

func (t *jpegTables) readDHT(seg []byte) error {
	for pos := 0; pos < len(seg); {
		if pos+17 > len(seg) {
			return errors.New("truncated dht")
		}
		tc, th := seg[pos]>>4, seg[pos]&0x0F
		pos++
		var count [16]byte
		copy(count[:], seg[pos:pos+16])
		pos += 16
		total := 0
		for _, c := range count {
			total += int(c)
		}
		if pos+total > len(seg) {
			return errors.New("truncated dht values")
		}
		vals := append([]byte(nil), seg[pos:pos+total]...)
		pos += total

		// Slot layout: DC luma, AC luma, DC chroma, AC chroma.
		if tc <= 1 && th <= 1 {
			t.Huff[th<<1|tc] = jpegx.HuffmanSpec{Count: count, Value: vals}
			t.HasHuff = true
		}
	}
	return nil
}

func (t *jpegTables) readSOF0(seg []byte) error {
	if len(seg) < 6 {
		return errors.New("truncated sof0")
	}
	if seg[0] != 8 {
		return fmt.Errorf("unsupported precision %d", seg[0])
	}
	n := int(seg[5])
	if n < 1 {
		return errors.New("invalid component count")
	}
	pos := 6
	for i := 0; i < n && i < 3; i++ {
		if pos+3 > len(seg) {
			return errors.New("truncated sof0 comps")
		}
		samp := seg[pos+1]
		t.Sampling[i] = jpegx.SamplingFactor{H: samp >> 4, V: samp & 0x0F}
		pos += 3
	}
	if n == 1 {
		t.Sampling[0] = jpegx.SamplingFactor{H: 1, V: 1}
	}
	t.HasSOF0 = true
	return nil
}
