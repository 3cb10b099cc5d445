package jpegx

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"math/bits"
)

// dctCos[x][u] = cos((2x+1) * u * pi / 16)
var dctCos [8][8]float64

func init() {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			dctCos[x][u] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / 16)
		}
	}
}

type bitWriter struct {
	out   []byte
	acc   uint32
	nBits uint32
}

func (b *bitWriter) emit(v, n uint32) {
	b.acc |= v << (32 - b.nBits - n)
	b.nBits += n
	for b.nBits >= 8 {
		by := byte(b.acc >> 24)
		b.out = append(b.out, by)
		if by == 0xff {
			b.out = append(b.out, 0x00)
		}
		b.acc <<= 8
		b.nBits -= 8
	}
}

func (b *bitWriter) flush() {
	if b.nBits > 0 {
		// Pad the final byte with ones.
		b.emit(uint32(1<<(8-b.nBits))-1, 8-b.nBits)
	}
}

func (b *bitWriter) writeMarker(m byte) {
	b.out = append(b.out, 0xff, m)
}

func (b *bitWriter) writeSegment(m byte, payload []byte) {
	b.writeMarker(m)
	n := len(payload) + 2
	b.out = append(b.out, byte(n>>8), byte(n))
	b.out = append(b.out, payload...)
}

type component struct {
	id      byte
	samp    SamplingFactor
	quantID byte
	huffDC  byte
	huffAC  byte
	plane   []byte
	width   int
	height  int
}

// EncodeWithTables writes m as a baseline sequential JPEG. Quantization and
// Huffman tables default to the standard tables scaled by opt.Quality and
// can be overridden, which lets a re-encode reuse the tables of its source
// stream.
func EncodeWithTables(w io.Writer, m image.Image, opt EncoderOptions) error {
	b := m.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return errors.New("jpegx: empty image")
	}
	if width >= 1<<16 || height >= 1<<16 {
		return errors.New("jpegx: image is too large")
	}

	quant := scaleQuant(opt.Quality)
	if opt.UseQuantTables {
		quant = opt.Quant
	}
	huff := theHuffmanSpec
	if opt.UseHuffman {
		huff = opt.Huff
	}
	var luts [4][256]huffCode
	for i := range huff {
		luts[i] = buildHuffLUT(huff[i])
	}

	_, isGray := m.(*image.Gray)
	var comps []component
	if isGray {
		comps = []component{{id: 1, samp: SamplingFactor{H: 1, V: 1}, quantID: 0, huffDC: 0, huffAC: 1}}
	} else {
		sampling := [3]SamplingFactor{{H: 2, V: 2}, {H: 1, V: 1}, {H: 1, V: 1}}
		if opt.UseSampling {
			sampling = opt.Sampling
		}
		comps = []component{
			{id: 1, samp: sampling[0], quantID: 0, huffDC: 0, huffAC: 1},
			{id: 2, samp: sampling[1], quantID: 1, huffDC: 2, huffAC: 3},
			{id: 3, samp: sampling[2], quantID: 1, huffDC: 2, huffAC: 3},
		}
	}
	hMax, vMax := byte(1), byte(1)
	for _, c := range comps {
		if c.samp.H < 1 || c.samp.H > 2 || c.samp.V < 1 || c.samp.V > 2 {
			return errors.New("jpegx: unsupported sampling factor")
		}
		if c.samp.H > hMax {
			hMax = c.samp.H
		}
		if c.samp.V > vMax {
			vMax = c.samp.V
		}
	}
	for _, c := range comps {
		if hMax%c.samp.H != 0 || vMax%c.samp.V != 0 {
			return errors.New("jpegx: sampling factors must divide the maximum")
		}
	}

	fillPlanes(m, comps, isGray)

	bw := &bitWriter{out: make([]byte, 0, width*height/2+1024)}
	bw.writeMarker(soiMarker)

	nQuant := 2
	if isGray {
		nQuant = 1
	}
	if opt.SplitDQT {
		for t := 0; t < nQuant; t++ {
			payload := make([]byte, 0, 65)
			payload = append(payload, byte(t))
			payload = append(payload, quant[t][:]...)
			bw.writeSegment(dqtMarker, payload)
		}
	} else {
		payload := make([]byte, 0, 65*nQuant)
		for t := 0; t < nQuant; t++ {
			payload = append(payload, byte(t))
			payload = append(payload, quant[t][:]...)
		}
		bw.writeSegment(dqtMarker, payload)
	}

	sof := make([]byte, 0, 6+3*len(comps))
	sof = append(sof, 8, byte(height>>8), byte(height), byte(width>>8), byte(width), byte(len(comps)))
	for _, c := range comps {
		sof = append(sof, c.id, c.samp.H<<4|c.samp.V, c.quantID)
	}
	bw.writeSegment(sof0Marker, sof)

	nHuff := 4
	if isGray {
		nHuff = 2
	}
	dhtHeader := func(i int) byte {
		// Index layout: DC luma, AC luma, DC chroma, AC chroma.
		tc := byte(i) & 1
		th := byte(i) >> 1
		return tc<<4 | th
	}
	if opt.SplitDHT {
		for i := 0; i < nHuff; i++ {
			payload := make([]byte, 0, 17+len(huff[i].Value))
			payload = append(payload, dhtHeader(i))
			payload = append(payload, huff[i].Count[:]...)
			payload = append(payload, huff[i].Value...)
			bw.writeSegment(dhtMarker, payload)
		}
	} else {
		var payload []byte
		for i := 0; i < nHuff; i++ {
			payload = append(payload, dhtHeader(i))
			payload = append(payload, huff[i].Count[:]...)
			payload = append(payload, huff[i].Value...)
		}
		bw.writeSegment(dhtMarker, payload)
	}

	sos := make([]byte, 0, 4+2*len(comps))
	sos = append(sos, byte(len(comps)))
	for _, c := range comps {
		// The scan selectors are DHT table ids, shared with the quant id.
		sos = append(sos, c.id, c.quantID<<4|c.quantID)
	}
	sos = append(sos, 0, 63, 0)
	bw.writeSegment(sosMarker, sos)

	var dcPred [3]int32
	mcuW, mcuH := 8*int(hMax), 8*int(vMax)
	mcusX := (width + mcuW - 1) / mcuW
	mcusY := (height + mcuH - 1) / mcuH
	var blk block
	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			for ci := range comps {
				c := &comps[ci]
				sx := int(hMax / c.samp.H)
				sy := int(vMax / c.samp.V)
				for bv := 0; bv < int(c.samp.V); bv++ {
					for bh := 0; bh < int(c.samp.H); bh++ {
						px0 := (mx*int(c.samp.H) + bh) * 8
						py0 := (my*int(c.samp.V) + bv) * 8
						extractBlock(&blk, c, px0, py0, sx, sy)
						fdct(&blk)
						dcPred[ci] = writeBlock(bw, &blk, &quant[c.quantID],
							&luts[c.huffDC], &luts[c.huffAC], dcPred[ci])
					}
				}
			}
		}
	}
	bw.flush()
	bw.writeMarker(eoiMarker)

	_, err := w.Write(bw.out)
	return err
}

// fillPlanes converts the source into full-resolution Y (and Cb, Cr)
// planes attached to the components.
func fillPlanes(m image.Image, comps []component, isGray bool) {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	for i := range comps {
		comps[i].width = w
		comps[i].height = h
		comps[i].plane = make([]byte, w*h)
	}
	switch src := m.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			copy(comps[0].plane[y*w:y*w+w], src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):])
		}
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := src.YCbCrAt(b.Min.X+x, b.Min.Y+y)
				comps[0].plane[y*w+x] = c.Y
				if !isGray {
					comps[1].plane[y*w+x] = c.Cb
					comps[2].plane[y*w+x] = c.Cr
				}
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := m.At(b.Min.X+x, b.Min.Y+y).RGBA()
				yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
				comps[0].plane[y*w+x] = yy
				if !isGray {
					comps[1].plane[y*w+x] = cb
					comps[2].plane[y*w+x] = cr
				}
			}
		}
	}
}

// extractBlock fills one 8x8 level-shifted block from a component plane,
// averaging sx by sy source boxes and clamping at the edges.
func extractBlock(blk *block, c *component, px0, py0, sx, sy int) {
	for j := 0; j < 8; j++ {
		for i := 0; i < 8; i++ {
			var sum, n int
			for dy := 0; dy < sy; dy++ {
				for dx := 0; dx < sx; dx++ {
					x := (px0+i)*sx + dx
					y := (py0+j)*sy + dy
					if x >= c.width {
						x = c.width - 1
					}
					if y >= c.height {
						y = c.height - 1
					}
					sum += int(c.plane[y*c.width+x])
					n++
				}
			}
			blk[j*8+i] = int32(sum/n) - 128
		}
	}
}

// fdct replaces blk with its forward DCT in natural order.
func fdct(blk *block) {
	var out [blockSize]float64
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			var sum float64
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					sum += float64(blk[y*8+x]) * dctCos[x][u] * dctCos[y][v]
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = math.Sqrt2 / 2
			}
			if v == 0 {
				cv = math.Sqrt2 / 2
			}
			out[v*8+u] = sum * cu * cv / 4
		}
	}
	for i := range blk {
		blk[i] = int32(math.RoundToEven(out[i]))
	}
}

func divRound(a, b int32) int32 {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}

func emitHuff(bw *bitWriter, lut *[256]huffCode, symbol byte) {
	hc := lut[symbol]
	bw.emit(hc.code, hc.len)
}

func emitValue(bw *bitWriter, lut *[256]huffCode, run int, v int32) {
	a, b := v, v
	if a < 0 {
		a, b = -v, v-1
	}
	n := uint32(bits.Len32(uint32(a)))
	emitHuff(bw, lut, byte(run<<4)|byte(n))
	if n > 0 {
		bw.emit(uint32(b)&(1<<n-1), n)
	}
}

// writeBlock quantizes blk in zig-zag order and entropy-codes it. It
// returns the new DC predictor.
func writeBlock(bw *bitWriter, blk *block, quant *[64]byte, dcLUT, acLUT *[256]huffCode, dcPred int32) int32 {
	var zz [blockSize]int32
	for k := 0; k < blockSize; k++ {
		zz[k] = divRound(blk[unzig[k]], int32(quant[k]))
	}

	emitValue(bw, dcLUT, 0, zz[0]-dcPred)

	run := 0
	for k := 1; k < blockSize; k++ {
		if zz[k] == 0 {
			run++
			continue
		}
		for run > 15 {
			emitHuff(bw, acLUT, 0xf0)
			run -= 16
		}
		emitValue(bw, acLUT, run, zz[k])
		run = 0
	}
	if run > 0 {
		emitHuff(bw, acLUT, 0x00)
	}
	return zz[0]
}
