package jpegr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/vearutop/jpegr/internal/jpegx"
)

// ResizeOptions controls the UltraHDR resize behavior.
type ResizeOptions struct {
	PrimaryQuality int
	GainmapQuality int
	// Interpolation selects the built-in interpolation mode for the primary
	// image and gainmap when Resize is nil.
	Interpolation Interpolation
	OnResult      func(res *ResizeResult)
	OnSplit       func(sr *SplitResult)
	PrimaryOut    string
	GainmapOut    string
}

func defaultResizeOptions(opts []func(o *ResizeOptions)) ResizeOptions {
	opt := ResizeOptions{
		PrimaryQuality: 85,
		GainmapQuality: 75,
		Interpolation:  InterpolationNearest,
	}
	for _, apply := range opts {
		apply(&opt)
	}
	return opt
}

// ResizeResult contains the resized container and its component JPEGs.
type ResizeResult struct {
	Container []byte
	Primary   []byte
	Gainmap   []byte
}

// ResizeUltraHDR resizes an UltraHDR JPEG container to the requested
// dimensions, scaling the primary image and the gain map together and
// reassembling the container with the original metadata.
func ResizeUltraHDR(data []byte, width, height uint, opts ...func(o *ResizeOptions)) (*ResizeResult, error) {
	if width == 0 || height == 0 {
		return nil, errors.New("invalid target dimensions")
	}
	sr, err := Split(data)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if sr.Segs == nil {
		return nil, errors.New("metadata segments missing")
	}

	opt := defaultResizeOptions(opts)
	if opt.OnSplit != nil {
		opt.OnSplit(sr)
	}

	primaryThumb, err := resizeJPEG(sr.PrimaryJPEG, width, height, nil, opt.PrimaryQuality, opt.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("resize primary: %w", err)
	}
	gainmapThumb, err := resizeGainmapJPEG(sr.GainmapJPEG, width, height, nil, opt.GainmapQuality, sr.Meta, opt.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("resize gainmap: %w", err)
	}
	exif, icc, err := extractExifAndIcc(sr.PrimaryJPEG)
	if err != nil {
		return nil, fmt.Errorf("extract exif and icc: %w", err)
	}
	container, err := assembleContainerVipsLike(primaryThumb, gainmapThumb, exif, icc, sr.Segs.SecondaryXMP, sr.Segs.SecondaryISO)
	if err != nil {
		return nil, fmt.Errorf("assemble container: %w", err)
	}

	parts, err := Split(container)
	if err != nil {
		return nil, fmt.Errorf("split resized: %w", err)
	}
	res := ResizeResult{
		Container: container,
		Primary:   parts.PrimaryJPEG,
		Gainmap:   parts.GainmapJPEG,
	}
	if opt.OnResult != nil {
		opt.OnResult(&res)
	}
	return &res, nil
}

// ResizeJPEG resizes a regular JPEG to the requested dimensions using the
// built-in interpolation. When keepMeta is true, EXIF and ICC segments are
// carried over to the output.
func ResizeJPEG(data []byte, width, height uint, quality int, interp Interpolation, keepMeta bool) ([]byte, error) {
	if width == 0 || height == 0 {
		return nil, errors.New("invalid target dimensions")
	}
	var segs []appSegment
	if keepMeta {
		exif, icc, err := extractExifAndIcc(data)
		if err != nil {
			return nil, err
		}
		if exif != nil {
			segs = append(segs, appSegment{marker: markerAPP1, payload: exif})
		}
		for _, seg := range icc {
			segs = append(segs, appSegment{marker: markerAPP2, payload: seg})
		}
	}
	return resizeJPEG(data, width, height, segs, quality, interp)
}

// ResizeUltraHDRFile reads an UltraHDR JPEG from inPath, resizes it, and
// writes the container to outPath. Non-empty PrimaryOut/GainmapOut options
// also write the resized component JPEGs.
func ResizeUltraHDRFile(inPath, outPath string, width, height uint, opts ...func(opt *ResizeOptions)) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	resized, err := ResizeUltraHDR(data, width, height, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(outPath), resized.Container, 0o644); err != nil {
		return err
	}

	opt := ResizeOptions{}
	for _, apply := range opts {
		apply(&opt)
	}
	if opt.PrimaryOut != "" {
		if err := os.WriteFile(opt.PrimaryOut, resized.Primary, 0o644); err != nil {
			return fmt.Errorf("write primary: %w", err)
		}
	}
	if opt.GainmapOut != "" {
		if err := os.WriteFile(opt.GainmapOut, resized.Gainmap, 0o644); err != nil {
			return fmt.Errorf("write gainmap: %w", err)
		}
	}
	return nil
}

// Interpolation selects the built-in interpolation mode.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

// resizeDecoded scales a decoded image to w by h, keeping the source pixel
// layout where an interpolated path exists for it.
func resizeDecoded(img image.Image, w, h int, interp Interpolation) image.Image {
	switch src := img.(type) {
	case *image.YCbCr:
		return resizeYCbCrInterpolated(src, w, h, interp)
	case *image.Gray:
		return resizeGrayInterpolated(src, w, h, interp)
	case *image.Gray16:
		return resizeGray16Interpolated(src, w, h, interp)
	case *image.RGBA:
		return resizeRGBAInterpolated(src, w, h, interp)
	case *image.NRGBA:
		return resizeNRGBAInterpolated(src, w, h, interp)
	case *image.RGBA64:
		return resizeRGBA64Interpolated(src, w, h, interp)
	case *image.NRGBA64:
		return resizeNRGBA64Interpolated(src, w, h, interp)
	default:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		nearestScale(dst, img)
		return dst
	}
}

func resizeJPEG(jpegData []byte, w, h uint, segs []appSegment, quality int, interp Interpolation) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}
	out, err := encodeWithQuality(resizeDecoded(img, int(w), int(h), interp), quality)
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		return insertAppSegments(out, segs)
	}
	return out, nil
}

func resizeGainmapJPEG(jpegData []byte, w, h uint, segs []appSegment, quality int, meta *GainMapMetadata, interp Interpolation) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	out, err := encodeWithQuality(resizeDecoded(img, int(w), int(h), interp), quality)
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		return insertAppSegments(out, segs)
	}
	return out, nil
}

func resizeYCbCrNearest(src *image.YCbCr, w, h int) *image.YCbCr {
	dst := image.NewYCbCr(image.Rect(0, 0, w, h), src.SubsampleRatio)
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	for y := 0; y < h; y++ {
		srcRow := src.Y[(y*sh/h)*src.YStride:]
		dstRow := dst.Y[y*dst.YStride:]
		for x := 0; x < w; x++ {
			dstRow[x] = srcRow[x*sw/w]
		}
	}

	dcw, dch := chromaSize(dst.Rect, dst.SubsampleRatio)
	scw, sch := chromaSize(src.Rect, src.SubsampleRatio)
	for y := 0; y < dch; y++ {
		srcOff := (y * sch / dch) * src.CStride
		dstOff := y * dst.CStride
		for x := 0; x < dcw; x++ {
			sx := x * scw / dcw
			dst.Cb[dstOff+x] = src.Cb[srcOff+sx]
			dst.Cr[dstOff+x] = src.Cr[srcOff+sx]
		}
	}
	return dst
}

func chromaSize(r image.Rectangle, subsample image.YCbCrSubsampleRatio) (cw, ch int) {
	w, h := r.Dx(), r.Dy()
	switch subsample {
	case image.YCbCrSubsampleRatio444:
		return w, h
	case image.YCbCrSubsampleRatio422:
		return (w + 1) / 2, h
	case image.YCbCrSubsampleRatio440:
		return w, (h + 1) / 2
	default:
		// 4:2:0 and anything exotic.
		return (w + 1) / 2, (h + 1) / 2
	}
}

func nearestScale(dst draw.Image, src image.Image) {
	sb, db := src.Bounds(), dst.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	dw, dh := db.Dx(), db.Dy()
	for y := 0; y < dh; y++ {
		sy := sb.Min.Y + y*sh/dh
		for x := 0; x < dw; x++ {
			dst.Set(x, y, src.At(sb.Min.X+x*sw/dw, sy))
		}
	}
}

func encodeWithQuality(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	opt := jpegx.EncoderOptions{
		Quality:     quality,
		UseSampling: true,
		Sampling:    [3]jpegx.SamplingFactor{{H: 2, V: 2}, {H: 1, V: 1}, {H: 1, V: 1}},
		SplitDQT:    true,
		SplitDHT:    true,
	}
	if err := jpegx.EncodeWithTables(&buf, img, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeMatchingTables re-encodes img reusing the quantization and Huffman
// tables and sampling of the src JPEG stream. Falls back to quality-scaled
// standard tables when src carries none.
func encodeMatchingTables(img image.Image, src []byte, quality int) ([]byte, error) {
	t, err := extractJpegTables(src)
	if err != nil {
		return encodeWithQuality(img, quality)
	}
	var buf bytes.Buffer
	opt := jpegx.EncoderOptions{
		Quality:        quality,
		UseQuantTables: true,
		Quant:          t.Quant,
		UseHuffman:     true,
		Huff:           t.Huff,
		UseSampling:    true,
		Sampling:       t.Sampling,
		SplitDQT:       true,
		SplitDHT:       true,
	}
	if err := jpegx.EncodeWithTables(&buf, img, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gainmapDecodeValue maps a stored gain map sample back to its linear 0..1
// recovery value.
func gainmapDecodeValue(v uint8, gamma float32) float32 {
	g := float32(v) / 255.0
	if gamma != 1 {
		g = float32(math.Pow(float64(g), float64(1.0/gamma)))
	}
	return clamp01(g)
}

// gainmapEncodeValue gamma-encodes a 0..1 recovery value into a stored
// gain map sample.
func gainmapEncodeValue(v float32, gamma float32) uint8 {
	g := clamp01(v)
	if gamma != 1 {
		g = float32(math.Pow(float64(g), float64(gamma)))
	}
	return uint8(clamp01(g)*255.0 + 0.5)
}

func toGray16(v float32) uint16 {
	return uint16(clamp01(v) * 65535.0)
}

func encodeGainmapGray(img image.Image, gamma float32) image.Image {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			out.SetGray(x, y, color.Gray{Y: gainmapEncodeValue(float32(c.Y)/65535.0, gamma)})
		}
	}
	return out
}

func encodeGainmapRGB(img image.Image, gamma [3]float32) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.RGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA64)
			out.SetRGBA(x, y, color.RGBA{
				R: gainmapEncodeValue(float32(c.R)/65535.0, gamma[0]),
				G: gainmapEncodeValue(float32(c.G)/65535.0, gamma[1]),
				B: gainmapEncodeValue(float32(c.B)/65535.0, gamma[2]),
				A: 0xFF,
			})
		}
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
