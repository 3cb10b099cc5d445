package jpegr

// Validators are pure: they inspect an input and return nil or an *Error,
// never touching session state.

func validateRawImage(img *RawImage, intent ImageIntent) error {
	if img == nil {
		return errInvalidParam("received nil raw image")
	}
	if intent != IntentHDR && intent != IntentSDR {
		return errInvalidParam("invalid intent %v, expects one of {hdr, sdr}", intent)
	}
	switch intent {
	case IntentHDR:
		if img.Format != FormatP010 && img.Format != FormatRGBA1010102 {
			return errInvalidParam("unsupported pixel format %v for hdr intent, expects one of {p010, rgba1010102}", img.Format)
		}
		if img.Transfer != TransferHLG && img.Transfer != TransferPQ && img.Transfer != TransferLinear {
			return errInvalidParam("unsupported color transfer %v for hdr intent, expects one of {hlg, pq, linear}", img.Transfer)
		}
	case IntentSDR:
		if img.Format != FormatYCbCr420 && img.Format != FormatRGBA8888 {
			return errInvalidParam("unsupported pixel format %v for sdr intent, expects one of {ycbcr420, rgba8888}", img.Format)
		}
		if img.Transfer != TransferSRGB {
			return errInvalidParam("unsupported color transfer %v for sdr intent, expects srgb", img.Transfer)
		}
	}
	if img.Gamut != GamutBT709 && img.Gamut != GamutDisplayP3 && img.Gamut != GamutBT2100 {
		return errInvalidParam("unsupported color gamut %v, expects one of {bt709, display-p3, bt2100}", img.Gamut)
	}
	if img.Width%2 != 0 || img.Height%2 != 0 {
		return errInvalidParam("image dimensions cannot be odd, got %dx%d", img.Width, img.Height)
	}
	if img.Width < minImageDimension || img.Height < minImageDimension {
		return errInvalidParam("image dimensions cannot be less than %dx%d, got %dx%d",
			minImageDimension, minImageDimension, img.Width, img.Height)
	}
	if img.Width > maxImageDimension || img.Height > maxImageDimension {
		return errInvalidParam("image dimensions cannot exceed %dx%d, got %dx%d",
			maxImageDimension, maxImageDimension, img.Width, img.Height)
	}
	if img.Planes[0] == nil {
		return errInvalidParam("received nil pointer for luma plane")
	}
	if img.Strides[0] < img.Width {
		return errInvalidParam("luma stride must not be smaller than width, stride=%d, width=%d",
			img.Strides[0], img.Width)
	}
	switch img.Format {
	case FormatYCbCr420:
		for i := 1; i <= 2; i++ {
			if img.Planes[i] == nil {
				return errInvalidParam("received nil pointer for chroma plane %d", i)
			}
			if img.Strides[i] < img.Width/2 {
				return errInvalidParam("chroma stride must not be smaller than half the width, stride=%d, width=%d",
					img.Strides[i], img.Width)
			}
		}
	case FormatP010:
		if img.Planes[1] == nil {
			return errInvalidParam("received nil pointer for chroma plane 1")
		}
		if img.Strides[1] < img.Width {
			return errInvalidParam("chroma stride must not be smaller than width, stride=%d, width=%d",
				img.Strides[1], img.Width)
		}
	}
	return nil
}

func validateCompressedImage(img *CompressedImage) error {
	if img == nil {
		return errInvalidParam("received nil compressed image")
	}
	if len(img.Data) == 0 {
		return errInvalidParam("received compressed image with no data")
	}
	if img.Capacity > 0 && len(img.Data) > img.Capacity {
		return errInvalidParam("compressed image capacity %d is less than data size %d",
			img.Capacity, len(img.Data))
	}
	return nil
}

func validateQuality(quality int, intent ImageIntent) error {
	if quality < 0 || quality > 100 {
		return errInvalidParam("invalid quality factor %d, expects in range [0-100]", quality)
	}
	switch intent {
	case IntentHDR, IntentSDR, IntentBase, IntentGainMap:
		return nil
	}
	return errInvalidParam("invalid intent %v for quality factor", intent)
}

func validateGainMapMetadata(m *GainMapMetadata) error {
	if m == nil {
		return errInvalidParam("received nil gainmap metadata")
	}
	for i := 0; i < 3; i++ {
		if m.MaxContentBoost[i] < m.MinContentBoost[i] {
			return errInvalidParam("received bad value for max content boost %f, expects to be >= min content boost %f",
				m.MaxContentBoost[i], m.MinContentBoost[i])
		}
		if m.Gamma[i] <= 0 {
			return errInvalidParam("received bad value for gamma %f, expects to be > 0", m.Gamma[i])
		}
		if m.OffsetSDR[i] < 0 {
			return errInvalidParam("received bad value for offset sdr %f, expects to be >= 0", m.OffsetSDR[i])
		}
		if m.OffsetHDR[i] < 0 {
			return errInvalidParam("received bad value for offset hdr %f, expects to be >= 0", m.OffsetHDR[i])
		}
	}
	if m.HDRCapacityMin < 1.0 {
		return errInvalidParam("received bad value for hdr capacity min %f, expects to be >= 1.0", m.HDRCapacityMin)
	}
	if m.HDRCapacityMax < m.HDRCapacityMin {
		return errInvalidParam("received bad value for hdr capacity max %f, expects to be >= hdr capacity min %f",
			m.HDRCapacityMax, m.HDRCapacityMin)
	}
	return nil
}

func validateEffect(e Effect) error {
	switch ef := e.(type) {
	case RotateEffect:
		if ef.Degrees != 90 && ef.Degrees != 180 && ef.Degrees != 270 {
			return errInvalidParam("unsupported rotation degrees %d, expects one of {90, 180, 270}", ef.Degrees)
		}
	case MirrorEffect:
		if ef.Direction != MirrorHorizontal && ef.Direction != MirrorVertical {
			return errInvalidParam("unsupported mirror direction %d, expects one of {horizontal, vertical}", int(ef.Direction))
		}
	case CropEffect, ResizeEffect:
	default:
		return errInvalidParam("unsupported effect %s", e)
	}
	return nil
}
