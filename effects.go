package jpegr

import "fmt"

// Effect is a geometric transformation applied to the session images when
// the session commits. Effects run in insertion order.
type Effect interface {
	fmt.Stringer
	isEffect()
}

// RotateEffect rotates clockwise by Degrees, one of 90, 180 or 270.
type RotateEffect struct {
	Degrees int
}

func (RotateEffect) isEffect() {}

func (e RotateEffect) String() string { return fmt.Sprintf("rotate(%d)", e.Degrees) }

// MirrorDirection selects the mirror axis.
type MirrorDirection int

const (
	// MirrorHorizontal flips the image left to right.
	MirrorHorizontal MirrorDirection = iota
	// MirrorVertical flips the image top to bottom.
	MirrorVertical
)

func (d MirrorDirection) String() string {
	if d == MirrorVertical {
		return "vertical"
	}
	return "horizontal"
}

// MirrorEffect flips the image over the axis named by Direction.
type MirrorEffect struct {
	Direction MirrorDirection
}

func (MirrorEffect) isEffect() {}

func (e MirrorEffect) String() string { return fmt.Sprintf("mirror(%s)", e.Direction) }

// CropEffect keeps the rectangle [Left,Right) x [Top,Bottom). Coordinates are
// signed so out-of-range requests are observable before clamping.
type CropEffect struct {
	Left, Right, Top, Bottom int
}

func (CropEffect) isEffect() {}

func (e CropEffect) String() string {
	return fmt.Sprintf("crop(left=%d, right=%d, top=%d, bottom=%d)", e.Left, e.Right, e.Top, e.Bottom)
}

// ResizeEffect scales the image to Width x Height.
type ResizeEffect struct {
	Width, Height int
}

func (ResizeEffect) isEffect() {}

func (e ResizeEffect) String() string { return fmt.Sprintf("resize(%dx%d)", e.Width, e.Height) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyEffectsEncoder runs the effect list over the attached raw images
// before encoding. hdr is always present; sdr may be nil. Crop and resize
// dimensions must stay positive and even so the images remain valid 4:2:0
// sources. When the trailing effect is a crop and an sdr image is present,
// the sdr buffer is re-materialized so its planes are contiguous again.
func applyEffectsEncoder(hdr, sdr *RawImage, effects []Effect) (*RawImage, *RawImage, error) {
	for _, e := range effects {
		var err error
		hdr, sdr, err = applyEffectPair(hdr, sdr, e, true)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(effects) > 0 {
		if _, isCrop := effects[len(effects)-1].(CropEffect); isCrop && sdr != nil && !sdr.contiguous() {
			sdr = sdr.clone()
		}
	}
	return hdr, sdr, nil
}

// applyEffectsDecoder runs the effect list over the decoded image and its
// gain map. The gain map dimensions are aspect-locked to the image: the
// width and height ratios are computed per effect and preserved.
func applyEffectsDecoder(img, gainmap *RawImage, effects []Effect) (*RawImage, *RawImage, error) {
	for _, e := range effects {
		wr := float64(img.Width) / float64(gainmap.Width)
		hr := float64(img.Height) / float64(gainmap.Height)
		switch ef := e.(type) {
		case RotateEffect, MirrorEffect:
			next, err := applyGeometric(img, e)
			if err != nil {
				return nil, nil, err
			}
			nextGM, err := applyGeometric(gainmap, e)
			if err != nil {
				return nil, nil, err
			}
			img, gainmap = next, nextGM
		case CropEffect:
			left := clampInt(ef.Left, 0, img.Width)
			right := clampInt(ef.Right, 0, img.Width)
			top := clampInt(ef.Top, 0, img.Height)
			bottom := clampInt(ef.Bottom, 0, img.Height)
			if right <= left || bottom <= top {
				return nil, nil, errInvalidParam("unexpected crop dimensions, crop region is empty, got left %d, right %d, top %d, bottom %d",
					left, right, top, bottom)
			}
			gmLeft := int(float64(left) / wr)
			gmRight := int(float64(right) / wr)
			gmTop := int(float64(top) / hr)
			gmBottom := int(float64(bottom) / hr)
			if gmRight <= gmLeft || gmBottom <= gmTop {
				return nil, nil, errInvalidParam("unexpected crop dimensions for gain map, got left %d, right %d, top %d, bottom %d",
					gmLeft, gmRight, gmTop, gmBottom)
			}
			img = cropView(img, left, right, top, bottom)
			gainmap = cropView(gainmap, gmLeft, gmRight, gmTop, gmBottom)
			if img == nil || gainmap == nil {
				return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
			}
		case ResizeEffect:
			if ef.Width <= 0 || ef.Height <= 0 {
				return nil, nil, errInvalidParam("destination dimensions cannot be zero, got %dx%d", ef.Width, ef.Height)
			}
			gmW := int(float64(ef.Width) / wr)
			gmH := int(float64(ef.Height) / hr)
			if gmW <= 0 || gmH <= 0 {
				return nil, nil, errInvalidParam("destination dimensions for gain map cannot be zero, got %dx%d", gmW, gmH)
			}
			next := resizeRaw(img, ef.Width, ef.Height)
			nextGM := resizeRaw(gainmap, gmW, gmH)
			if next == nil || nextGM == nil {
				return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
			}
			img, gainmap = next, nextGM
		default:
			return nil, nil, errInvalidParam("unsupported effect %s", e)
		}
	}
	return img, gainmap, nil
}

// applyEffectPair applies a single effect to an image and, when present, its
// same-sized companion. The encoder flag enforces even crop and resize
// dimensions.
func applyEffectPair(img, companion *RawImage, e Effect, encoder bool) (*RawImage, *RawImage, error) {
	switch ef := e.(type) {
	case RotateEffect, MirrorEffect:
		next, err := applyGeometric(img, e)
		if err != nil {
			return nil, nil, err
		}
		if companion != nil {
			companion, err = applyGeometric(companion, e)
			if err != nil {
				return nil, nil, err
			}
		}
		return next, companion, nil
	case CropEffect:
		left := clampInt(ef.Left, 0, img.Width)
		right := clampInt(ef.Right, 0, img.Width)
		top := clampInt(ef.Top, 0, img.Height)
		bottom := clampInt(ef.Bottom, 0, img.Height)
		cw, ch := right-left, bottom-top
		if encoder {
			if cw <= 0 || cw%2 != 0 {
				return nil, nil, errInvalidParam("unexpected crop dimensions, crop width is expected to be > 0 and even, got %d", cw)
			}
			if ch <= 0 || ch%2 != 0 {
				return nil, nil, errInvalidParam("unexpected crop dimensions, crop height is expected to be > 0 and even, got %d", ch)
			}
		} else if cw <= 0 || ch <= 0 {
			return nil, nil, errInvalidParam("unexpected crop dimensions, crop region is empty, got left %d, right %d, top %d, bottom %d",
				left, right, top, bottom)
		}
		next := cropView(img, left, right, top, bottom)
		if next == nil {
			return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
		}
		if companion != nil {
			companion = cropView(companion, left, right, top, bottom)
			if companion == nil {
				return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
			}
		}
		return next, companion, nil
	case ResizeEffect:
		if encoder && (ef.Width <= 0 || ef.Height <= 0 || ef.Width%2 != 0 || ef.Height%2 != 0) {
			return nil, nil, errInvalidParam("destination dimensions cannot be zero or odd, got %dx%d", ef.Width, ef.Height)
		}
		if ef.Width <= 0 || ef.Height <= 0 {
			return nil, nil, errInvalidParam("destination dimensions cannot be zero, got %dx%d", ef.Width, ef.Height)
		}
		next := resizeRaw(img, ef.Width, ef.Height)
		if next == nil {
			return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
		}
		if companion != nil {
			companion = resizeRaw(companion, ef.Width, ef.Height)
			if companion == nil {
				return nil, nil, errUnknown("encountered unknown error while applying effect %s", e)
			}
		}
		return next, companion, nil
	}
	return nil, nil, errInvalidParam("unsupported effect %s", e)
}

func applyGeometric(img *RawImage, e Effect) (*RawImage, error) {
	var out *RawImage
	switch ef := e.(type) {
	case RotateEffect:
		out = rotateRaw(img, ef.Degrees)
	case MirrorEffect:
		out = mirrorRaw(img, ef.Direction)
	}
	if out == nil {
		return nil, errUnknown("encountered unknown error while applying effect %s", e)
	}
	return out, nil
}
