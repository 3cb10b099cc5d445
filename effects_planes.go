package jpegr

import (
	"encoding/binary"
	"image"

	"github.com/nfnt/resize"
)

// planeGeom describes one plane as a grid of fixed-size elements. An element
// is the unit that must move as a whole: a sample for planar 8-bit data, a
// CbCr pair for P010 chroma, a packed pixel for RGBA formats.
type planeGeom struct {
	ew, eh int
	elem   int
}

func planeGeometry(f ImageFormat, i, w, h int) planeGeom {
	switch f {
	case FormatYCbCr420:
		if i == 0 {
			return planeGeom{w, h, 1}
		}
		return planeGeom{w / 2, h / 2, 1}
	case FormatP010:
		if i == 0 {
			return planeGeom{w, h, 2}
		}
		return planeGeom{w / 2, h / 2, 4}
	case FormatRGBA8888, FormatRGBA1010102:
		return planeGeom{w, h, 4}
	case FormatRGBAF16:
		return planeGeom{w, h, 8}
	default:
		return planeGeom{w, h, 1}
	}
}

func planeStrideBytes(img *RawImage, i int) int {
	return img.Strides[i] * bytesPerSample(img.Format)
}

// rotateRaw rotates img clockwise by 90, 180 or 270 degrees into a fresh
// packed allocation.
func rotateRaw(img *RawImage, degrees int) *RawImage {
	w, h := img.Width, img.Height
	if degrees == 90 || degrees == 270 {
		w, h = h, w
	}
	out := newRawImage(img.Format, img.Gamut, img.Transfer, img.Range, w, h)
	for i := 0; i < planeCount(img.Format); i++ {
		g := planeGeometry(img.Format, i, img.Width, img.Height)
		dg := planeGeometry(out.Format, i, out.Width, out.Height)
		rotateBlock(img.Planes[i], planeStrideBytes(img, i), g,
			out.Planes[i], planeStrideBytes(out, i), dg, degrees)
	}
	return out
}

func rotateBlock(src []byte, srcStride int, sg planeGeom, dst []byte, dstStride int, dg planeGeom, degrees int) {
	elem := sg.elem
	for dy := 0; dy < dg.eh; dy++ {
		for dx := 0; dx < dg.ew; dx++ {
			var sx, sy int
			switch degrees {
			case 90:
				sx, sy = dy, sg.eh-1-dx
			case 180:
				sx, sy = sg.ew-1-dx, sg.eh-1-dy
			case 270:
				sx, sy = sg.ew-1-dy, dx
			default:
				sx, sy = dx, dy
			}
			copy(dst[dy*dstStride+dx*elem:dy*dstStride+(dx+1)*elem],
				src[sy*srcStride+sx*elem:sy*srcStride+sx*elem+elem])
		}
	}
}

// mirrorRaw flips img over the named axis into a fresh packed allocation.
func mirrorRaw(img *RawImage, dir MirrorDirection) *RawImage {
	out := newRawImage(img.Format, img.Gamut, img.Transfer, img.Range, img.Width, img.Height)
	for i := 0; i < planeCount(img.Format); i++ {
		g := planeGeometry(img.Format, i, img.Width, img.Height)
		srcStride := planeStrideBytes(img, i)
		dstStride := planeStrideBytes(out, i)
		for dy := 0; dy < g.eh; dy++ {
			sy := dy
			if dir == MirrorVertical {
				sy = g.eh - 1 - dy
			}
			if dir == MirrorHorizontal {
				for dx := 0; dx < g.ew; dx++ {
					sx := g.ew - 1 - dx
					copy(out.Planes[i][dy*dstStride+dx*g.elem:dy*dstStride+(dx+1)*g.elem],
						img.Planes[i][sy*srcStride+sx*g.elem:sy*srcStride+sx*g.elem+g.elem])
				}
			} else {
				copy(out.Planes[i][dy*dstStride:dy*dstStride+g.ew*g.elem],
					img.Planes[i][sy*srcStride:sy*srcStride+g.ew*g.elem])
			}
		}
	}
	return out
}

// cropView re-points the plane views at the requested rectangle without
// copying. Strides are left unchanged, so the result may alias img and is
// not contiguous.
func cropView(img *RawImage, left, right, top, bottom int) *RawImage {
	out := *img
	out.Width = right - left
	out.Height = bottom - top
	for i := 0; i < planeCount(img.Format); i++ {
		g := planeGeometry(img.Format, i, img.Width, img.Height)
		el, et := left, top
		if i > 0 && (img.Format == FormatYCbCr420 || img.Format == FormatP010) {
			el, et = left/2, top/2
		}
		stride := planeStrideBytes(img, i)
		off := et*stride + el*g.elem
		if off > len(img.Planes[i]) {
			return nil
		}
		out.Planes[i] = img.Planes[i][off:]
	}
	return &out
}

// resizeRaw scales img to dw x dh into a fresh packed allocation. The 8-bit
// formats resample through nfnt/resize; the wide formats go through a
// float32 bilinear path per channel.
func resizeRaw(img *RawImage, dw, dh int) *RawImage {
	out := newRawImage(img.Format, img.Gamut, img.Transfer, img.Range, dw, dh)
	switch img.Format {
	case FormatGray8:
		resizePlane8(img.Planes[0], planeStrideBytes(img, 0), img.Width, img.Height,
			out.Planes[0], planeStrideBytes(out, 0), dw, dh)
	case FormatYCbCr420:
		resizePlane8(img.Planes[0], planeStrideBytes(img, 0), img.Width, img.Height,
			out.Planes[0], planeStrideBytes(out, 0), dw, dh)
		for i := 1; i <= 2; i++ {
			resizePlane8(img.Planes[i], planeStrideBytes(img, i), img.Width/2, img.Height/2,
				out.Planes[i], planeStrideBytes(out, i), dw/2, dh/2)
		}
	case FormatRGBA8888:
		src := &image.RGBA{Pix: img.Planes[0], Stride: planeStrideBytes(img, 0),
			Rect: image.Rect(0, 0, img.Width, img.Height)}
		res, ok := resize.Resize(uint(dw), uint(dh), src, resize.Bilinear).(*image.RGBA)
		if !ok {
			return nil
		}
		copyRows(out.Planes[0], planeStrideBytes(out, 0), res.Pix, res.Stride, dw*4, dh)
	case FormatP010:
		resizePlane16(img.Planes[0], img.Strides[0], img.Width, img.Height,
			out.Planes[0], out.Strides[0], dw, dh)
		resizePlanePairs16(img.Planes[1], img.Strides[1], img.Width/2, img.Height/2,
			out.Planes[1], out.Strides[1], dw/2, dh/2)
	case FormatRGBA1010102:
		resizeRGBA1010102(img, out, dw, dh)
	case FormatRGBAF16:
		resizeRGBAF16(img, out, dw, dh)
	default:
		return nil
	}
	return out
}

func copyRows(dst []byte, dstStride int, src []byte, srcStride, rowBytes, rows int) {
	for y := 0; y < rows; y++ {
		copy(dst[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
}

func resizePlane8(src []byte, srcStride, w, h int, out []byte, outStride, dw, dh int) {
	g := &image.Gray{Pix: src, Stride: srcStride, Rect: image.Rect(0, 0, w, h)}
	res, ok := resize.Resize(uint(dw), uint(dh), g, resize.Bilinear).(*image.Gray)
	if !ok {
		return
	}
	copyRows(out, outStride, res.Pix, res.Stride, dw, dh)
}

// bilinearF32 resamples a single float32 channel.
func bilinearF32(src []float32, w, h, dw, dh int) []float32 {
	out := make([]float32, dw*dh)
	sx := float64(w) / float64(dw)
	sy := float64(h) / float64(dh)
	for y := 0; y < dh; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(fy)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 >= h {
			y1 = h - 1
		}
		wy := float32(fy - float64(y0))
		if wy < 0 {
			wy = 0
		}
		for x := 0; x < dw; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(fx)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 >= w {
				x1 = w - 1
			}
			wx := float32(fx - float64(x0))
			if wx < 0 {
				wx = 0
			}
			top := src[y0*w+x0]*(1-wx) + src[y0*w+x1]*wx
			bot := src[y1*w+x0]*(1-wx) + src[y1*w+x1]*wx
			out[y*dw+x] = top*(1-wy) + bot*wy
		}
	}
	return out
}

func resizePlane16(src []byte, srcStride, w, h int, out []byte, outStride, dw, dh int) {
	f := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f[y*w+x] = float32(binary.LittleEndian.Uint16(src[(y*srcStride+x)*2:]))
		}
	}
	r := bilinearF32(f, w, h, dw, dh)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			binary.LittleEndian.PutUint16(out[(y*outStride+x)*2:], uint16(r[y*dw+x]+0.5))
		}
	}
}

// resizePlanePairs16 resamples an interleaved CbCr plane of uint16 pairs.
// Dimensions are in pairs; strides are in uint16 samples.
func resizePlanePairs16(src []byte, srcStride, w, h int, out []byte, outStride, dw, dh int) {
	cb := make([]float32, w*h)
	cr := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*srcStride + 2*x) * 2
			cb[y*w+x] = float32(binary.LittleEndian.Uint16(src[off:]))
			cr[y*w+x] = float32(binary.LittleEndian.Uint16(src[off+2:]))
		}
	}
	rcb := bilinearF32(cb, w, h, dw, dh)
	rcr := bilinearF32(cr, w, h, dw, dh)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			off := (y*outStride + 2*x) * 2
			binary.LittleEndian.PutUint16(out[off:], uint16(rcb[y*dw+x]+0.5))
			binary.LittleEndian.PutUint16(out[off+2:], uint16(rcr[y*dw+x]+0.5))
		}
	}
}

func resizeRGBA1010102(img, out *RawImage, dw, dh int) {
	w, h := img.Width, img.Height
	stride := img.Strides[0]
	ch := [3][]float32{}
	for i := range ch {
		ch[i] = make([]float32, w*h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := binary.LittleEndian.Uint32(img.Planes[0][(y*stride+x)*4:])
			ch[0][y*w+x] = float32(v & 0x3FF)
			ch[1][y*w+x] = float32((v >> 10) & 0x3FF)
			ch[2][y*w+x] = float32((v >> 20) & 0x3FF)
		}
	}
	for i := range ch {
		ch[i] = bilinearF32(ch[i], w, h, dw, dh)
	}
	outStride := out.Strides[0]
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			r := uint32(ch[0][y*dw+x]+0.5) & 0x3FF
			g := uint32(ch[1][y*dw+x]+0.5) & 0x3FF
			b := uint32(ch[2][y*dw+x]+0.5) & 0x3FF
			binary.LittleEndian.PutUint32(out.Planes[0][(y*outStride+x)*4:], r|g<<10|b<<20|0x3<<30)
		}
	}
}

func resizeRGBAF16(img, out *RawImage, dw, dh int) {
	w, h := img.Width, img.Height
	stride := img.Strides[0]
	ch := [4][]float32{}
	for i := range ch {
		ch[i] = make([]float32, w*h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*stride + x) * 8
			for i := 0; i < 4; i++ {
				ch[i][y*w+x] = halfToFloat32(binary.LittleEndian.Uint16(img.Planes[0][off+2*i:]))
			}
		}
	}
	for i := range ch {
		ch[i] = bilinearF32(ch[i], w, h, dw, dh)
	}
	outStride := out.Strides[0]
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			off := (y*outStride + x) * 8
			for i := 0; i < 4; i++ {
				binary.LittleEndian.PutUint16(out.Planes[0][off+2*i:], float32ToHalf(ch[i][y*dw+x]))
			}
		}
	}
}
