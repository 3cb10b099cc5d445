package jpegr

import (
	"image"
	"math"
	"runtime"
	"sync"
)

// Separable two-pass resampler. A horizontal pass produces a float
// intermediate at target width, a vertical pass reduces it to target height.
// Filter weights depend only on the size pair and kernel, so they are cached
// across calls.

type resampleWeights struct {
	coeffs       []float32
	start        []int
	filterLength int
}

type kernelDef struct {
	interp Interpolation
	taps   int
	kernel func(float64) float64
}

type weightsKey struct {
	src    int
	dst    int
	interp Interpolation
}

var weightsCache sync.Map

var float32Pool = sync.Pool{
	New: func() any {
		buf := make([]float32, 0)
		return &buf
	},
}

func kernelForInterpolation(interp Interpolation) kernelDef {
	switch interp {
	case InterpolationBilinear:
		return kernelDef{interp: interp, taps: 2, kernel: linearKernel}
	case InterpolationBicubic:
		return kernelDef{interp: interp, taps: 4, kernel: cubicKernel}
	case InterpolationMitchellNetravali:
		return kernelDef{interp: interp, taps: 4, kernel: mitchellNetravaliKernel}
	case InterpolationLanczos2:
		return kernelDef{interp: interp, taps: 4, kernel: lanczos2Kernel}
	case InterpolationLanczos3:
		return kernelDef{interp: interp, taps: 6, kernel: lanczos3Kernel}
	}
	return kernelDef{interp: InterpolationNearest, taps: 2, kernel: nearestKernel}
}

func resizeYCbCrInterpolated(src *image.YCbCr, w, h int, interp Interpolation) *image.YCbCr {
	if interp == InterpolationNearest {
		return resizeYCbCrNearest(src, w, h)
	}
	def := kernelForInterpolation(interp)
	dst := image.NewYCbCr(image.Rect(0, 0, w, h), src.SubsampleRatio)

	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane8(dst.Y, dst.YStride, w, h,
		resample(src.Y, srcW, srcH, src.YStride, w, h, 1, false, def))

	srcCbW, srcCbH := chromaSize(src.Rect, src.SubsampleRatio)
	dstCbW, dstCbH := chromaSize(dst.Rect, dst.SubsampleRatio)
	writePlane8(dst.Cb, dst.CStride, dstCbW, dstCbH,
		resample(src.Cb, srcCbW, srcCbH, src.CStride, dstCbW, dstCbH, 1, false, def))
	writePlane8(dst.Cr, dst.CStride, dstCbW, dstCbH,
		resample(src.Cr, srcCbW, srcCbH, src.CStride, dstCbW, dstCbH, 1, false, def))

	return dst
}

func resizeGrayInterpolated(src *image.Gray, w, h int, interp Interpolation) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane8(dst.Pix, dst.Stride, w, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 1, false, def))
	return dst
}

func resizeGray16Interpolated(src *image.Gray16, w, h int, interp Interpolation) *image.Gray16 {
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane16(dst.Pix, dst.Stride, w*1, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 1, true, def))
	return dst
}

func resizeRGBAInterpolated(src *image.RGBA, w, h int, interp Interpolation) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane8(dst.Pix, dst.Stride, w*4, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 4, false, def))
	return dst
}

func resizeNRGBAInterpolated(src *image.NRGBA, w, h int, interp Interpolation) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane8(dst.Pix, dst.Stride, w*4, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 4, false, def))
	return dst
}

func resizeRGBA64Interpolated(src *image.RGBA64, w, h int, interp Interpolation) *image.RGBA64 {
	dst := image.NewRGBA64(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane16(dst.Pix, dst.Stride, w*4, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 4, true, def))
	return dst
}

func resizeNRGBA64Interpolated(src *image.NRGBA64, w, h int, interp Interpolation) *image.NRGBA64 {
	dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
	if interp == InterpolationNearest {
		nearestScale(dst, src)
		return dst
	}
	def := kernelForInterpolation(interp)
	srcW, srcH := src.Rect.Dx(), src.Rect.Dy()
	writePlane16(dst.Pix, dst.Stride, w*4, h,
		resample(src.Pix, srcW, srcH, src.Stride, w, h, 4, true, def))
	return dst
}

// resample runs both filter passes over an interleaved plane with nch
// channels. wide selects 16-bit big-endian samples. The result is a float
// plane of dstW by dstH pixels; writers clamp it back to integer samples.
func resample(src []uint8, srcW, srcH, srcStride, dstW, dstH, nch int, wide bool, def kernelDef) []float32 {
	wx := getWeights(srcW, dstW, def, float64(srcW)/float64(dstW))
	wy := getWeights(srcH, dstH, def, float64(srcH)/float64(dstH))

	sample := func(row []uint8, xi, c int) float32 {
		if wide {
			off := (xi*nch + c) * 2
			return float32(uint16(row[off])<<8 | uint16(row[off+1]))
		}
		return float32(row[xi*nch+c])
	}

	temp := getFloat32(dstW * srcH * nch)
	parallelFor(srcH, func(start, end int) {
		for y := start; y < end; y++ {
			row := src[y*srcStride:]
			outRow := temp[y*dstW*nch:]
			for x := 0; x < dstW; x++ {
				s := wx.start[x]
				base := x * wx.filterLength
				acc := outRow[x*nch : x*nch+nch]
				for c := range acc {
					acc[c] = 0
				}
				for i := 0; i < wx.filterLength; i++ {
					xi := clampInt(s+i, 0, srcW-1)
					w := wx.coeffs[base+i]
					for c := 0; c < nch; c++ {
						acc[c] += sample(row, xi, c) * w
					}
				}
			}
		}
	})

	out := make([]float32, dstW*dstH*nch)
	parallelFor(dstH, func(start, end int) {
		for y := start; y < end; y++ {
			s := wy.start[y]
			base := y * wy.filterLength
			row := out[y*dstW*nch:]
			for i := 0; i < wy.filterLength; i++ {
				yi := clampInt(s+i, 0, srcH-1)
				w := wy.coeffs[base+i]
				tempRow := temp[yi*dstW*nch:]
				for x := 0; x < dstW*nch; x++ {
					row[x] += tempRow[x] * w
				}
			}
		}
	})

	putFloat32(temp)
	return out
}

// getWeights builds (or fetches) the filter coefficients and left-edge
// offsets for one axis. Weights for each output sample are normalized to
// sum to one.
func getWeights(src, dst int, def kernelDef, scale float64) resampleWeights {
	if src <= 0 || dst <= 0 {
		return resampleWeights{}
	}
	key := weightsKey{src: src, dst: dst, interp: def.interp}
	if cached, ok := weightsCache.Load(key); ok {
		return cached.(resampleWeights)
	}
	filterLength := def.taps * int(math.Max(math.Ceil(scale), 1))
	filterFactor := math.Min(1.0/scale, 1.0)
	coeffs := make([]float32, dst*filterLength)
	start := make([]int, dst)
	for y := 0; y < dst; y++ {
		interpX := scale*(float64(y)+0.5) - 0.5
		start[y] = int(interpX) - filterLength/2 + 1
		interpX -= float64(start[y])
		base := y * filterLength
		var sum float64
		for i := 0; i < filterLength; i++ {
			w := def.kernel((interpX - float64(i)) * filterFactor)
			coeffs[base+i] = float32(w)
			sum += w
		}
		if sum != 0 {
			inv := float32(1.0 / sum)
			for i := 0; i < filterLength; i++ {
				coeffs[base+i] *= inv
			}
		}
	}
	weights := resampleWeights{coeffs: coeffs, start: start, filterLength: filterLength}
	weightsCache.Store(key, weights)
	return weights
}

// parallelFor splits [0, total) into contiguous chunks, one per worker.
func parallelFor(total int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		fn(0, total)
		return
	}
	step := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < total; start += step {
		end := start + step
		if end > total {
			end = total
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

func getFloat32(n int) []float32 {
	bufPtr := float32Pool.Get().(*[]float32)
	buf := *bufPtr
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

func putFloat32(buf []float32) {
	if buf == nil {
		return
	}
	for i := range buf {
		buf[i] = 0
	}
	buf = buf[:0]
	float32Pool.Put(&buf)
}

func nearestKernel(in float64) float64 {
	if in >= -0.5 && in < 0.5 {
		return 1
	}
	return 0
}

func linearKernel(in float64) float64 {
	in = math.Abs(in)
	if in <= 1 {
		return 1 - in
	}
	return 0
}

func cubicKernel(in float64) float64 {
	in = math.Abs(in)
	if in <= 1 {
		return in*in*(1.5*in-2.5) + 1.0
	}
	if in <= 2 {
		return in*(in*(2.5-0.5*in)-4.0) + 2.0
	}
	return 0
}

func mitchellNetravaliKernel(in float64) float64 {
	in = math.Abs(in)
	if in <= 1 {
		return (7.0*in*in*in - 12.0*in*in + 5.33333333333) * 0.16666666666
	}
	if in <= 2 {
		return (-2.33333333333*in*in*in + 12.0*in*in - 20.0*in + 10.6666666667) * 0.16666666666
	}
	return 0
}

func sinc(x float64) float64 {
	x = math.Abs(x) * math.Pi
	if x >= 1.220703e-4 {
		return math.Sin(x) / x
	}
	return 1
}

func lanczos2Kernel(in float64) float64 {
	if in > -2 && in < 2 {
		return sinc(in) * sinc(in*0.5)
	}
	return 0
}

func lanczos3Kernel(in float64) float64 {
	if in > -3 && in < 3 {
		return sinc(in) * sinc(in*0.3333333333333333)
	}
	return 0
}

func clampToByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampToUint16(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}

// writePlane8 clamps float samples into an 8-bit strided plane. samplesPerRow
// counts individual samples, channels included.
func writePlane8(dst []uint8, dstStride, samplesPerRow, rows int, src []float32) {
	for y := 0; y < rows; y++ {
		out := dst[y*dstStride:]
		in := src[y*samplesPerRow:]
		for x := 0; x < samplesPerRow; x++ {
			out[x] = clampToByte(in[x])
		}
	}
}

// writePlane16 clamps float samples into a big-endian 16-bit strided plane.
func writePlane16(dst []uint8, dstStride, samplesPerRow, rows int, src []float32) {
	for y := 0; y < rows; y++ {
		out := dst[y*dstStride:]
		in := src[y*samplesPerRow:]
		for x := 0; x < samplesPerRow; x++ {
			v := clampToUint16(in[x])
			out[x*2] = uint8(v >> 8)
			out[x*2+1] = uint8(v)
		}
	}
}
