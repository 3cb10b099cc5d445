package jpegr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	for _, part := range [][]byte{sr.PrimaryJPEG, sr.GainmapJPEG} {
		if len(part) < 4 || part[0] != 0xFF || part[1] != 0xD8 {
			t.Fatalf("component missing SOI")
		}
		if part[len(part)-2] != 0xFF || part[len(part)-1] != 0xD9 {
			t.Fatalf("component missing EOI")
		}
	}
	if sr.Meta == nil || sr.Meta.Version == "" {
		t.Fatalf("gainmap metadata missing")
	}
	if sr.Segs == nil || sr.Segs.SecondaryISO == nil {
		t.Fatalf("iso segment missing from gainmap image")
	}

	repacked, err := sr.Join()
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	sr2, err := Split(repacked)
	if err != nil {
		t.Fatalf("split repacked: %v", err)
	}
	if !bytes.Equal(sr.PrimaryJPEG, sr2.PrimaryJPEG) {
		t.Fatalf("primary changed across join")
	}
	if !bytes.Equal(sr.GainmapJPEG, sr2.GainmapJPEG) {
		t.Fatalf("gainmap changed across join")
	}
}

func TestContainerMpfEntries(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	entries, err := parseMpfEntries(container)
	if err != nil {
		t.Fatalf("parse mpf: %v", err)
	}
	if err := validateMpfEntries(container, entries); err != nil {
		t.Fatalf("validate mpf: %v", err)
	}
}

func TestResizeUltraHDRContainer(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	res, err := ResizeUltraHDR(container, 32, 24)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	sr, err := Split(res.Container)
	if err != nil {
		t.Fatalf("split resized: %v", err)
	}
	if !bytes.Equal(sr.PrimaryJPEG, res.Primary) {
		t.Fatalf("primary component mismatch")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(sr.PrimaryJPEG))
	if err != nil {
		t.Fatalf("decode resized primary: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 24 {
		t.Fatalf("resized dimensions %dx%d", cfg.Width, cfg.Height)
	}
	entries, err := parseMpfEntries(res.Container)
	if err != nil {
		t.Fatalf("parse mpf: %v", err)
	}
	if err := validateMpfEntries(res.Container, entries); err != nil {
		t.Fatalf("validate mpf: %v", err)
	}
}

func TestResizeInterpolations(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	interps := []Interpolation{
		InterpolationNearest,
		InterpolationBilinear,
		InterpolationBicubic,
		InterpolationMitchellNetravali,
		InterpolationLanczos2,
		InterpolationLanczos3,
	}
	for _, interp := range interps {
		interp := interp
		t.Run(fmt.Sprintf("interp_%d", interp), func(t *testing.T) {
			res, err := ResizeUltraHDR(container, 32, 24, func(o *ResizeOptions) {
				o.Interpolation = interp
			})
			if err != nil {
				t.Fatalf("resize: %v", err)
			}
			if _, err := Split(res.Container); err != nil {
				t.Fatalf("split resized: %v", err)
			}
		})
	}
}

func TestResizeJPEGKeepMeta(t *testing.T) {
	container := encodeTestContainer(t, 64, 48, func(enc *Encoder) {
		if err := enc.SetExif(minimalExif); err != nil {
			t.Fatalf("set exif: %v", err)
		}
	})
	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	srcExif, _, err := extractExifAndIcc(sr.PrimaryJPEG)
	if err != nil {
		t.Fatalf("extract source meta: %v", err)
	}
	if srcExif == nil {
		t.Fatalf("source exif missing")
	}

	noMeta, err := ResizeJPEG(sr.PrimaryJPEG, 32, 24, 85, InterpolationLanczos3, false)
	if err != nil {
		t.Fatalf("resize without meta: %v", err)
	}
	gotExif, _, err := extractExifAndIcc(noMeta)
	if err != nil {
		t.Fatalf("extract resized meta: %v", err)
	}
	if gotExif != nil {
		t.Fatalf("exif survived a strip resize")
	}

	withMeta, err := ResizeJPEG(sr.PrimaryJPEG, 32, 24, 85, InterpolationLanczos3, true)
	if err != nil {
		t.Fatalf("resize with meta: %v", err)
	}
	gotExif, _, err = extractExifAndIcc(withMeta)
	if err != nil {
		t.Fatalf("extract resized meta: %v", err)
	}
	if !bytes.Equal(gotExif, srcExif) {
		t.Fatalf("exif not preserved")
	}
}

func TestResizeParallelNoRace(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	interps := []Interpolation{
		InterpolationNearest,
		InterpolationBilinear,
		InterpolationLanczos3,
	}
	const workers = 4
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			for i := 0; i < 3; i++ {
				interp := interps[(w+i)%len(interps)]
				if _, err := ResizeUltraHDR(container, 32, 24, func(o *ResizeOptions) {
					o.Interpolation = interp
				}); err != nil {
					errCh <- err
					return
				}
				if _, err := ResizeJPEG(sr.PrimaryJPEG, 32, 24, 85, interp, false); err != nil {
					errCh <- err
					return
				}
			}
			errCh <- nil
		}()
	}
	for w := 0; w < workers; w++ {
		if err := <-errCh; err != nil {
			t.Fatalf("parallel resize: %v", err)
		}
	}
}

func BenchmarkResize(b *testing.B) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(128, 96), IntentHDR); err != nil {
		b.Fatalf("set raw hdr: %v", err)
	}
	if err := enc.Encode(); err != nil {
		b.Fatalf("encode: %v", err)
	}
	container := enc.Output().Data

	interps := map[string]Interpolation{
		"nearest":  InterpolationNearest,
		"bilinear": InterpolationBilinear,
		"bicubic":  InterpolationBicubic,
		"mitchell": InterpolationMitchellNetravali,
		"lanczos2": InterpolationLanczos2,
		"lanczos3": InterpolationLanczos3,
	}
	for name, interp := range interps {
		interp := interp
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ResizeUltraHDR(container, 64, 48, func(o *ResizeOptions) {
					o.Interpolation = interp
				}); err != nil {
					b.Fatalf("resize: %v", err)
				}
			}
		})
	}
}

type mpfEntries struct {
	PrimarySize     uint32
	PrimaryOffset   uint32
	SecondarySize   uint32
	SecondaryOffset uint32
}

func markerSequence(data []byte) (string, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return "", errors.New("jpeg missing SOI")
	}
	i := 2
	var out []byte
	for i < len(data) {
		if data[i] != 0xFF {
			j := bytes.Index(data[i:], []byte{0xFF, 0xD9})
			if j < 0 {
				return "", errors.New("jpeg missing EOI")
			}
			i += j
		}
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++
		if marker == 0xD9 {
			out = append(out, 'E', 'O', 'I', ';')
			break
		}
		if marker == 0xDA {
			if i+2 > len(data) {
				return "", errors.New("jpeg truncated SOS")
			}
			ln := int(binary.BigEndian.Uint16(data[i : i+2]))
			out = append(out, 'S', 'O', 'S', ';')
			i += ln
			continue
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			out = append(out, 'R', 'S', 'T', ';')
			continue
		}
		if i+2 > len(data) {
			return "", errors.New("jpeg truncated segment")
		}
		ln := int(binary.BigEndian.Uint16(data[i : i+2]))
		if ln < 2 || i+ln > len(data) {
			return "", errors.New("jpeg invalid segment length")
		}
		payload := data[i+2 : i+ln]
		label := markerLabel(marker, payload)
		out = append(out, label...)
		out = append(out, ';')
		i += ln
	}
	return string(out), nil
}

func markerLabel(marker byte, payload []byte) []byte {
	switch marker {
	case 0xE1:
		if bytes.HasPrefix(payload, []byte("Exif\x00\x00")) {
			return []byte("APP1:EXIF")
		}
		if bytes.HasPrefix(payload, append([]byte(xmpNamespace), 0)) {
			return []byte("APP1:XMP")
		}
		return []byte("APP1")
	case 0xE2:
		if bytes.HasPrefix(payload, mpfSig) {
			return []byte("APP2:MPF")
		}
		if bytes.HasPrefix(payload, []byte("ICC_PROFILE")) {
			return []byte("APP2:ICC")
		}
		if bytes.HasPrefix(payload, append([]byte(isoNamespace), 0)) {
			return []byte("APP2:ISO")
		}
		return []byte("APP2")
	case 0xDB:
		return []byte("DQT")
	case 0xC4:
		return []byte("DHT")
	case 0xC0:
		return []byte("SOF0")
	default:
		return []byte("M")
	}
}

func parseMpfEntries(data []byte) (mpfEntries, error) {
	_, payload, err := findMpfPayload(data)
	if err != nil {
		return mpfEntries{}, err
	}
	if len(payload) < len(mpfSig)+len(mpfBigEndian)+4+2 {
		return mpfEntries{}, errors.New("mpf payload too small")
	}
	if !bytes.HasPrefix(payload, mpfSig) {
		return mpfEntries{}, errors.New("mpf signature missing")
	}
	if !bytes.Equal(payload[len(mpfSig):len(mpfSig)+4], mpfBigEndian) {
		return mpfEntries{}, errors.New("mpf endian mismatch")
	}
	off := len(mpfSig) + 4
	ifdOffset := int(binary.BigEndian.Uint32(payload[off : off+4]))
	if ifdOffset < 0 || ifdOffset+2 > len(payload) {
		return mpfEntries{}, errors.New("mpf ifd offset invalid")
	}
	ifd := payload[len(mpfSig):]
	if ifdOffset+2 > len(ifd) {
		return mpfEntries{}, errors.New("mpf ifd truncated")
	}
	count := int(binary.BigEndian.Uint16(ifd[ifdOffset : ifdOffset+2]))
	pos := ifdOffset + 2
	var entryOffset int
	for i := 0; i < count; i++ {
		if pos+12 > len(ifd) {
			return mpfEntries{}, errors.New("mpf entry truncated")
		}
		tag := binary.BigEndian.Uint16(ifd[pos : pos+2])
		typ := binary.BigEndian.Uint16(ifd[pos+2 : pos+4])
		_ = typ
		countVal := binary.BigEndian.Uint32(ifd[pos+4 : pos+8])
		value := binary.BigEndian.Uint32(ifd[pos+8 : pos+12])
		if tag == mpfEntryTag && countVal == mpfEntrySize*mpfNumPictures {
			entryOffset = int(value)
			break
		}
		pos += 12
	}
	if entryOffset == 0 {
		return mpfEntries{}, errors.New("mpf entries not found")
	}
	if entryOffset+mpfEntrySize*mpfNumPictures > len(ifd) {
		return mpfEntries{}, errors.New("mpf entry data truncated")
	}
	entries := ifd[entryOffset : entryOffset+mpfEntrySize*mpfNumPictures]

	parse := func(b []byte) (size, offset uint32) {
		size = binary.BigEndian.Uint32(b[4:8])
		offset = binary.BigEndian.Uint32(b[8:12])
		return
	}

	pSize, pOff := parse(entries[:mpfEntrySize])
	sSize, sOff := parse(entries[mpfEntrySize:])
	return mpfEntries{
		PrimarySize:     pSize,
		PrimaryOffset:   pOff,
		SecondarySize:   sSize,
		SecondaryOffset: sOff,
	}, nil
}

func validateMpfEntries(data []byte, entries mpfEntries) error {
	mpfStart, _, err := findMpfPayload(data)
	if err != nil {
		return err
	}
	ranges, err := scanJPEGs(data)
	if err != nil || len(ranges) < 2 {
		return errors.New("jpeg ranges not found")
	}
	primarySize := uint32(ranges[0][1] - ranges[0][0])
	secondarySize := uint32(ranges[1][1] - ranges[1][0])
	secondaryOffset := uint32(ranges[1][0] - (mpfStart + 4))
	if entries.PrimaryOffset != 0 {
		return errors.New("primary offset is not zero")
	}
	if entries.PrimarySize != primarySize {
		return errors.New("primary size mismatch")
	}
	if entries.SecondarySize != secondarySize {
		return errors.New("secondary size mismatch")
	}
	if entries.SecondaryOffset != secondaryOffset {
		return errors.New("secondary offset mismatch")
	}
	return nil
}

func findMpfPayload(data []byte) (int, []byte, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, nil, errors.New("jpeg missing SOI")
	}
	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			j := bytes.Index(data[i:], []byte{0xFF, 0xD9})
			if j < 0 {
				return 0, nil, errors.New("jpeg missing EOI")
			}
			i += j
		}
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++
		if marker == 0xD9 || marker == 0xDA {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if i+2 > len(data) {
			return 0, nil, errors.New("jpeg truncated segment")
		}
		ln := int(binary.BigEndian.Uint16(data[i : i+2]))
		if ln < 2 || i+ln > len(data) {
			return 0, nil, errors.New("jpeg invalid segment length")
		}
		payload := data[i+2 : i+ln]
		if marker == 0xE2 && bytes.HasPrefix(payload, mpfSig) {
			return i + 2, payload, nil
		}
		i += ln
	}
	return 0, nil, errors.New("mpf segment not found")
}
