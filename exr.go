package jpegr

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const exrMagic = 20000630

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// exrRole assigns a decoded channel to an output slot.
type exrRole int

const (
	exrRoleIgnore exrRole = iota
	exrRoleR
	exrRoleG
	exrRoleB
	exrRoleLuma
)

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	role      exrRole
}

func (c exrChannel) bytesPerSample() int {
	if c.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

// exrHeader holds the attributes DecodeEXR cares about.
type exrHeader struct {
	channels    []exrChannel
	dataWindow  [4]int32
	hasWindow   bool
	compression byte
}

// DecodeEXR reads a scanline OpenEXR image into a linear HDRImage. NONE,
// ZIPS and ZIP compression are supported; tiled, deep and multipart files
// are not.
func DecodeEXR(data []byte) (*HDRImage, error) {
	r := &exrReader{r: bytes.NewReader(data)}
	if err := r.checkMagicAndVersion(); err != nil {
		return nil, err
	}
	hdr, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	if err := hdr.validate(); err != nil {
		return nil, err
	}

	width := int(hdr.dataWindow[2]-hdr.dataWindow[0]) + 1
	height := int(hdr.dataWindow[3]-hdr.dataWindow[1]) + 1
	if width <= 0 || height <= 0 {
		return nil, errors.New("invalid OpenEXR dimensions")
	}

	blockLines := 1
	if hdr.compression == exrCompressionZip {
		blockLines = 16
	}
	blockCount := (height + blockLines - 1) / blockLines
	offsets := make([]uint64, blockCount)
	for i := range offsets {
		if offsets[i], err = r.u64(); err != nil {
			return nil, err
		}
	}

	out := &HDRImage{W: width, H: height, Pix: make([]float32, width*height*3)}
	baseY := int(hdr.dataWindow[1])
	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if _, err := r.r.Seek(int64(off), io.SeekStart); err != nil {
			return nil, err
		}
		y, err := r.i32()
		if err != nil {
			return nil, err
		}
		dataSize, err := r.i32()
		if err != nil {
			return nil, err
		}
		if dataSize < 0 {
			return nil, errors.New("invalid OpenEXR block size")
		}
		raw := make([]byte, dataSize)
		if _, err := io.ReadFull(r.r, raw); err != nil {
			return nil, err
		}

		startY := int(y) - baseY
		if startY < 0 || startY >= height {
			return nil, errors.New("OpenEXR scanline out of bounds")
		}
		lines := blockLines
		if startY+lines > height {
			lines = height - startY
		}

		expected := 0
		for _, ch := range hdr.channels {
			expected += width * lines * ch.bytesPerSample()
		}
		unpacked, err := exrDecompress(hdr.compression, raw, expected)
		if err != nil {
			return nil, err
		}
		if err := exrDecodeBlock(out, hdr.channels, startY, width, lines, unpacked); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type exrReader struct {
	r *bytes.Reader
}

func (e *exrReader) u32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(e.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (e *exrReader) u64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(e.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (e *exrReader) i32() (int32, error) {
	v, err := e.u32()
	return int32(v), err
}

// cstr reads a null-terminated string.
func (e *exrReader) cstr() (string, error) {
	var buf []byte
	for {
		b, err := e.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func (e *exrReader) checkMagicAndVersion() error {
	magic, err := e.u32()
	if err != nil {
		return err
	}
	if magic != exrMagic {
		return errors.New("not an OpenEXR file")
	}
	version, err := e.u32()
	if err != nil {
		return err
	}
	switch {
	case version&0x00000200 != 0:
		return errors.New("tiled OpenEXR not supported")
	case version&0x00000400 != 0:
		return errors.New("deep OpenEXR not supported")
	case version&0x00000800 != 0:
		return errors.New("multipart OpenEXR not supported")
	}
	return nil
}

// readHeader consumes the attribute list up to its empty-name terminator.
func (e *exrReader) readHeader() (*exrHeader, error) {
	hdr := &exrHeader{compression: exrCompressionNone}
	for {
		name, err := e.cstr()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return hdr, nil
		}
		typ, err := e.cstr()
		if err != nil {
			return nil, err
		}
		size, err := e.i32()
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, errors.New("invalid EXR attribute size")
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(e.r, payload); err != nil {
			return nil, err
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.New("unexpected channels attribute type")
			}
			if hdr.channels, err = parseEXRChannels(payload); err != nil {
				return nil, err
			}
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, errors.New("invalid dataWindow payload")
			}
			for i := range hdr.dataWindow {
				hdr.dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
			}
			hdr.hasWindow = true
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, errors.New("invalid compression attribute")
			}
			hdr.compression = payload[0]
		case "tiles":
			return nil, errors.New("tiled OpenEXR not supported")
		}
	}
}

func (h *exrHeader) validate() error {
	if len(h.channels) == 0 {
		return errors.New("OpenEXR missing channels")
	}
	if !h.hasWindow {
		return errors.New("OpenEXR missing dataWindow")
	}
	hasColor := false
	for _, ch := range h.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return errors.New("OpenEXR subsampled channels are not supported")
		}
		if ch.role != exrRoleIgnore {
			hasColor = true
		}
	}
	if !hasColor {
		return errors.New("OpenEXR missing R/G/B or Y channels")
	}
	switch h.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
		return nil
	}
	return fmt.Errorf("unsupported OpenEXR compression %d", h.compression)
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	e := &exrReader{r: bytes.NewReader(data)}
	var channels []exrChannel
	for {
		name, err := e.cstr()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		pixelType, err := e.i32()
		if err != nil {
			return nil, err
		}
		if pixelType != exrPixelHalf && pixelType != exrPixelFloat && pixelType != exrPixelUint {
			return nil, fmt.Errorf("unsupported OpenEXR pixel type %d", pixelType)
		}
		// pLinear byte plus three reserved bytes.
		if _, err := e.r.Seek(4, io.SeekCurrent); err != nil {
			return nil, err
		}
		xSampling, err := e.i32()
		if err != nil {
			return nil, err
		}
		ySampling, err := e.i32()
		if err != nil {
			return nil, err
		}
		role := exrRoleIgnore
		switch strings.ToUpper(name) {
		case "R":
			role = exrRoleR
		case "G":
			role = exrRoleG
		case "B":
			role = exrRoleB
		case "Y":
			role = exrRoleLuma
		}
		channels = append(channels, exrChannel{
			name:      name,
			pixelType: pixelType,
			xSampling: xSampling,
			ySampling: ySampling,
			role:      role,
		})
	}
}

func exrDecompress(compression byte, data []byte, expected int) ([]byte, error) {
	switch compression {
	case exrCompressionNone:
		if expected > 0 && len(data) != expected {
			return nil, errors.New("unexpected OpenEXR block size")
		}
		return data, nil
	case exrCompressionZips, exrCompressionZip:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		uncompressed, err := io.ReadAll(zr)
		if err != nil {
			return nil, err
		}
		if expected > 0 && len(uncompressed) != expected {
			return nil, errors.New("unexpected OpenEXR decompressed size")
		}
		if len(uncompressed)%2 != 0 {
			return nil, errors.New("invalid OpenEXR ZIP payload size")
		}
		// ZIP blocks store delta-coded, byte-interleaved samples.
		for i := 1; i < len(uncompressed); i++ {
			uncompressed[i] = byte(int(uncompressed[i]) + int(uncompressed[i-1]) - 128)
		}
		n := len(uncompressed) / 2
		out := make([]byte, len(uncompressed))
		for i := 0; i < n; i++ {
			out[2*i] = uncompressed[i]
			out[2*i+1] = uncompressed[i+n]
		}
		return out, nil
	}
	return nil, errors.New("unsupported OpenEXR compression")
}

// exrDecodeBlock scatters one decompressed block into the output image.
// Within a block, samples are grouped per scanline and then per channel in
// chlist order.
func exrDecodeBlock(dst *HDRImage, channels []exrChannel, startY, width, lines int, data []byte) error {
	offset := 0
	for row := 0; row < lines; row++ {
		y := startY + row
		for _, ch := range channels {
			lineBytes := width * ch.bytesPerSample()
			if offset+lineBytes > len(data) {
				return errors.New("OpenEXR block truncated")
			}
			line := data[offset : offset+lineBytes]
			offset += lineBytes
			if ch.role == exrRoleIgnore {
				continue
			}
			exrApplyLine(dst, ch.role, y, width, ch.pixelType, line)
		}
	}
	return nil
}

func exrApplyLine(dst *HDRImage, role exrRole, y, width int, pixelType int32, line []byte) {
	for x := 0; x < width; x++ {
		var v float32
		switch pixelType {
		case exrPixelHalf:
			v = halfToFloat32(binary.LittleEndian.Uint16(line[x*2:]))
		case exrPixelFloat:
			v = math.Float32frombits(binary.LittleEndian.Uint32(line[x*4:]))
		case exrPixelUint:
			v = float32(binary.LittleEndian.Uint32(line[x*4:]))
		}
		idx := (y*dst.W + x) * 3
		switch role {
		case exrRoleR:
			dst.Pix[idx] = v
		case exrRoleG:
			dst.Pix[idx+1] = v
		case exrRoleB:
			dst.Pix[idx+2] = v
		case exrRoleLuma:
			dst.Pix[idx] = v
			dst.Pix[idx+1] = v
			dst.Pix[idx+2] = v
		}
	}
}
