package jpegr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
)

// RebaseOptions controls gainmap rebase behavior.
type RebaseOptions struct {
	BaseQuality    int
	GainmapQuality int
}

// RebaseResult contains the rebased container and component JPEGs.
type RebaseResult struct {
	Container []byte
	Primary   []byte
	Gainmap   []byte
}

// RebaseUltraHDR replaces the primary SDR image while adjusting the gainmap
// to preserve the original HDR reconstruction as closely as possible.
func RebaseUltraHDR(data []byte, newSDR image.Image, opt *RebaseOptions) (*RebaseResult, error) {
	if newSDR == nil {
		return nil, errors.New("new SDR image is nil")
	}
	sr, err := Split(data)
	if err != nil {
		return nil, err
	}
	primaryJPEG, gainmapJPEG, meta := sr.PrimaryJPEG, sr.GainmapJPEG, sr.Meta
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	oldSDR, _, err := image.Decode(bytes.NewReader(primaryJPEG))
	if err != nil {
		return nil, err
	}
	gainmapImg, _, err := image.Decode(bytes.NewReader(gainmapJPEG))
	if err != nil {
		return nil, err
	}
	if oldSDR.Bounds().Dx() != newSDR.Bounds().Dx() || oldSDR.Bounds().Dy() != newSDR.Bounds().Dy() {
		return nil, errors.New("new SDR dimensions must match original")
	}

	gainmapOut, err := rebaseGainmap(oldSDR, newSDR, gainmapImg, meta)
	if err != nil {
		return nil, err
	}

	gainQ := defaultGainMapQuality
	baseQ := 0
	if opt != nil {
		if opt.GainmapQuality > 0 {
			gainQ = opt.GainmapQuality
		}
		if opt.BaseQuality > 0 {
			baseQ = opt.BaseQuality
		}
	}
	gainmapJpeg, err := encodeWithQuality(gainmapOut, gainQ)
	if err != nil {
		return nil, err
	}

	var primaryOut []byte
	if baseQ > 0 {
		primaryOut, err = encodeWithQuality(newSDR, baseQ)
	} else {
		// No explicit quality requested: reuse the tables of the original
		// base so the rebased file keeps its compression characteristics.
		primaryOut, err = encodeMatchingTables(newSDR, primaryJPEG, defaultBaseQuality)
	}
	if err != nil {
		return nil, err
	}

	exif, icc, err := extractExifAndIcc(primaryOut)
	if err != nil {
		return nil, err
	}
	if len(exif) == 0 && len(icc) == 0 {
		exif, icc, err = extractExifAndIcc(primaryJPEG)
		if err != nil {
			return nil, err
		}
	}
	container, err := assembleContainerVipsLike(primaryOut, gainmapJpeg, exif, icc, sr.Segs.SecondaryXMP, sr.Segs.SecondaryISO)
	if err != nil {
		return nil, err
	}
	return &RebaseResult{
		Container: container,
		Primary:   primaryOut,
		Gainmap:   gainmapJpeg,
	}, nil
}

// writeComponentFiles writes the component JPEGs for any non-empty path.
func writeComponentFiles(primaryPath, gainmapPath string, primary, gainmap []byte) error {
	if primaryPath != "" {
		if err := os.WriteFile(filepath.Clean(primaryPath), primary, 0o644); err != nil {
			return err
		}
	}
	if gainmapPath != "" {
		if err := os.WriteFile(filepath.Clean(gainmapPath), gainmap, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// RebaseUltraHDRFile reads an UltraHDR JPEG, rebases it on newSDRPath, and
// writes the output.
func RebaseUltraHDRFile(inPath, newSDRPath, outPath string, opt *RebaseOptions, primaryOut, gainmapOut string) error {
	data, err := os.ReadFile(filepath.Clean(inPath))
	if err != nil {
		return err
	}
	newSDRFile, err := os.Open(filepath.Clean(newSDRPath))
	if err != nil {
		return err
	}
	defer newSDRFile.Close()
	newSDR, _, err := image.Decode(newSDRFile)
	if err != nil {
		return err
	}
	res, err := RebaseUltraHDR(data, newSDR, opt)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(outPath), res.Container, 0o644); err != nil {
		return err
	}
	return writeComponentFiles(primaryOut, gainmapOut, res.Primary, res.Gainmap)
}

// RebaseUltraHDRFromEXRFile builds an UltraHDR JPEG from an SDR JPEG and an
// OpenEXR rendition of the same scene. The JPEG bytes become the base image
// unchanged and the EXR drives the gain map.
func RebaseUltraHDRFromEXRFile(sdrPath, exrPath, outPath string, opt *RebaseOptions, primaryOut, gainmapOut string) error {
	sdrData, err := os.ReadFile(filepath.Clean(sdrPath))
	if err != nil {
		return err
	}
	exrData, err := os.ReadFile(filepath.Clean(exrPath))
	if err != nil {
		return err
	}
	hdrImg, err := DecodeEXR(exrData)
	if err != nil {
		return err
	}
	sdrDecoded, _, err := image.Decode(bytes.NewReader(sdrData))
	if err != nil {
		return err
	}

	enc := NewEncoder()
	if err := enc.SetRawImage(RawFromHDR(hdrImg), IntentHDR); err != nil {
		return err
	}
	if err := enc.SetRawImage(rawSDRFromImage(sdrDecoded, GamutBT709), IntentSDR); err != nil {
		return err
	}
	if err := enc.SetCompressedImage(&CompressedImage{Data: sdrData}, IntentSDR); err != nil {
		return err
	}
	if opt != nil {
		if opt.BaseQuality > 0 {
			if err := enc.SetQuality(opt.BaseQuality, IntentBase); err != nil {
				return err
			}
		}
		if opt.GainmapQuality > 0 {
			if err := enc.SetQuality(opt.GainmapQuality, IntentGainMap); err != nil {
				return err
			}
		}
	}
	if err := enc.Encode(); err != nil {
		return err
	}
	container := enc.Output().Data
	if err := os.WriteFile(filepath.Clean(outPath), container, 0o644); err != nil {
		return err
	}
	if primaryOut == "" && gainmapOut == "" {
		return nil
	}
	sr, err := Split(container)
	if err != nil {
		return err
	}
	return writeComponentFiles(primaryOut, gainmapOut, sr.PrimaryJPEG, sr.GainmapJPEG)
}

// rebaseGainmap recomputes the gain map against a new base image. The HDR
// rendition implied by the old base and map is held fixed; each texel is
// re-derived so that the new base recovers the same rendition.
func rebaseGainmap(oldSDR, newSDR, gainmap image.Image, meta *GainMapMetadata) (image.Image, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	b := newSDR.Bounds()
	w, h := b.Dx(), b.Dy()
	gb := gainmap.Bounds()
	gmW, gmH := gb.Dx(), gb.Dy()

	texelX := func(x int) int { return clampInt(int(float32(x)*float32(gmW)/float32(w)+0.5), 0, gmW-1) }
	texelY := func(y int) int { return clampInt(int(float32(y)*float32(gmH)/float32(h)+0.5), 0, gmH-1) }

	if isGrayImage(gainmap) {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			gy := texelY(y)
			for x := 0; x < w; x++ {
				oldRGB := sampleSDR(oldSDR, b.Min.X+x, b.Min.Y+y)
				newRGB := sampleSDR(newSDR, b.Min.X+x, b.Min.Y+y)
				stored := grayAt(gainmap, texelX(x), gy)
				factor := boostFactor(float32(stored)/255.0, meta, 0, 1)
				hdrY := max3(
					(oldRGB.r+meta.OffsetSDR[0])*factor,
					(oldRGB.g+meta.OffsetSDR[0])*factor,
					(oldRGB.b+meta.OffsetSDR[0])*factor,
				) - meta.OffsetHDR[0]
				newGain := recoveryRatio(hdrY, max3(newRGB.r, newRGB.g, newRGB.b), meta, 0)
				out.SetGray(x, y, color.Gray{Y: gainFromFactor(newGain, meta.MinContentBoost[0], meta.MaxContentBoost[0], meta.Gamma[0])})
			}
		}
		return out, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		gy := texelY(y)
		for x := 0; x < w; x++ {
			oldRGB := sampleSDR(oldSDR, b.Min.X+x, b.Min.Y+y)
			newRGB := sampleSDR(newSDR, b.Min.X+x, b.Min.Y+y)
			gr, gg, gbv := rgbAt(gainmap, texelX(x), gy)

			stored := [3]float32{float32(gr) / 255.0, float32(gg) / 255.0, float32(gbv) / 255.0}
			oldCh := [3]float32{oldRGB.r, oldRGB.g, oldRGB.b}
			newCh := [3]float32{newRGB.r, newRGB.g, newRGB.b}
			var enc [3]uint8
			for c := 0; c < 3; c++ {
				factor := boostFactor(stored[c], meta, c, 1)
				hdrV := (oldCh[c]+meta.OffsetSDR[c])*factor - meta.OffsetHDR[c]
				newGain := recoveryRatio(hdrV, newCh[c], meta, c)
				enc[c] = gainFromFactor(newGain, meta.MinContentBoost[c], meta.MaxContentBoost[c], meta.Gamma[c])
			}
			out.SetRGBA(x, y, color.RGBA{R: enc[0], G: enc[1], B: enc[2], A: 0xFF})
		}
	}
	return out, nil
}

// recoveryRatio is the gain a texel must carry so that sdrV recovers hdrV.
func recoveryRatio(hdrV, sdrV float32, meta *GainMapMetadata, c int) float32 {
	denom := sdrV + meta.OffsetSDR[c]
	if denom <= 0 {
		denom = 1e-6
	}
	return (hdrV + meta.OffsetHDR[c]) / denom
}

// gainFromFactor encodes a linear gain factor into a stored map sample.
func gainFromFactor(gainFactor, minBoost, maxBoost, gamma float32) uint8 {
	if gainFactor < minBoost {
		gainFactor = minBoost
	}
	if gainFactor > maxBoost {
		gainFactor = maxBoost
	}
	logMin, logMax := log2f(minBoost), log2f(maxBoost)
	g := float32(0)
	if logMax != logMin {
		g = (log2f(gainFactor) - logMin) / (logMax - logMin)
	}
	g = clamp01(g)
	if gamma != 1 {
		g = float32(math.Pow(float64(g), float64(gamma)))
	}
	return uint8(g*255.0 + 0.5)
}
