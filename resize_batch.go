package jpegr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

// ResizeJPEGSpec describes one output of a batch resize.
type ResizeJPEGSpec struct {
	Width         uint
	Height        uint
	Quality       int
	Interpolation Interpolation
	KeepMeta      bool
}

// ResizeJPEGResult pairs a batch output with the spec that produced it.
type ResizeJPEGResult struct {
	Spec ResizeJPEGSpec
	Data []byte
}

// ResizeJPEGBatch produces several resized renditions of one JPEG. The
// source is decoded and its EXIF/ICC segments extracted once, then each
// spec is scaled and encoded independently. Outputs are byte-identical to
// the corresponding single ResizeJPEG calls.
func ResizeJPEGBatch(data []byte, specs []ResizeJPEGSpec) ([]ResizeJPEGResult, error) {
	if len(specs) == 0 {
		return nil, errors.New("no resize specs")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var metaSegs []appSegment
	metaLoaded := false

	results := make([]ResizeJPEGResult, len(specs))
	for i, s := range specs {
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("invalid target dimensions in spec %d", i)
		}
		var segs []appSegment
		if s.KeepMeta {
			if !metaLoaded {
				exif, icc, err := extractExifAndIcc(data)
				if err != nil {
					return nil, err
				}
				if exif != nil {
					metaSegs = append(metaSegs, appSegment{marker: markerAPP1, payload: exif})
				}
				for _, seg := range icc {
					metaSegs = append(metaSegs, appSegment{marker: markerAPP2, payload: seg})
				}
				metaLoaded = true
			}
			segs = metaSegs
		}

		out, err := encodeWithQuality(resizeDecoded(img, int(s.Width), int(s.Height), s.Interpolation), s.Quality)
		if err != nil {
			return nil, fmt.Errorf("resize spec %d: %w", i, err)
		}
		if len(segs) > 0 {
			out, err = insertAppSegments(out, segs)
			if err != nil {
				return nil, fmt.Errorf("resize spec %d: %w", i, err)
			}
		}
		results[i] = ResizeJPEGResult{Spec: s, Data: out}
	}
	return results, nil
}
