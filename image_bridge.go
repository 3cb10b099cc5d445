package jpegr

import "image"

// Bridges between session-owned raw buffers and the image.Image values the
// baseline JPEG codec consumes and produces.

func ycbcrImageFromRaw(img *RawImage) *image.YCbCr {
	out := image.NewYCbCr(image.Rect(0, 0, img.Width, img.Height), image.YCbCrSubsampleRatio420)
	for y := 0; y < img.Height; y++ {
		copy(out.Y[y*out.YStride:y*out.YStride+img.Width], img.Planes[0][y*img.Strides[0]:])
	}
	cw, ch := img.Width/2, img.Height/2
	for y := 0; y < ch; y++ {
		copy(out.Cb[y*out.CStride:y*out.CStride+cw], img.Planes[1][y*img.Strides[1]:])
		copy(out.Cr[y*out.CStride:y*out.CStride+cw], img.Planes[2][y*img.Strides[2]:])
	}
	return out
}

func grayImageFromRaw(img *RawImage) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+img.Width], img.Planes[0][y*img.Strides[0]:])
	}
	return out
}

func rgbaImageFromRaw(img *RawImage) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+img.Width*4], img.Planes[0][y*img.Strides[0]*4:])
	}
	return out
}

// rawSDRFromImage converts a decoded base JPEG into the planar session
// representation. A 4:2:0 YCbCr source is copied plane by plane, anything
// else goes through the color model.
func rawSDRFromImage(img image.Image, gamut ColorGamut) *RawImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := newRawImage(FormatYCbCr420, gamut, TransferSRGB, RangeFull, w, h)

	if yc, ok := img.(*image.YCbCr); ok && yc.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		for y := 0; y < h; y++ {
			copy(out.Planes[0][y*out.Strides[0]:y*out.Strides[0]+w], yc.Y[(y+b.Min.Y-yc.Rect.Min.Y)*yc.YStride:])
		}
		cw, ch := w/2, h/2
		for y := 0; y < ch; y++ {
			copy(out.Planes[1][y*out.Strides[1]:y*out.Strides[1]+cw], yc.Cb[y*yc.CStride:])
			copy(out.Planes[2][y*out.Strides[2]:y*out.Strides[2]+cw], yc.Cr[y*yc.CStride:])
		}
		return out
	}

	// sampleSDR yields linear light; rgbToYCbCr takes sRGB-encoded values.
	encoded := func(x, y int) rgb {
		v := sampleSDR(img, x, y)
		return rgb{r: srgbOetf(v.r), g: srgbOetf(v.g), b: srgbOetf(v.b)}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ly, _, _ := rgbToYCbCr(encoded(b.Min.X+x, b.Min.Y+y))
			out.Planes[0][y*out.Strides[0]+x] = uint8(clampf(ly, 0, 1)*255.0 + 0.5)
		}
	}
	for y := 0; y < h/2; y++ {
		for x := 0; x < w/2; x++ {
			var cbSum, crSum float32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					_, cb, cr := rgbToYCbCr(encoded(b.Min.X+2*x+dx, b.Min.Y+2*y+dy))
					cbSum += cb
					crSum += cr
				}
			}
			out.Planes[1][y*out.Strides[1]+x] = uint8(clampf(cbSum/4, 0, 1)*255.0 + 0.5)
			out.Planes[2][y*out.Strides[2]+x] = uint8(clampf(crSum/4, 0, 1)*255.0 + 0.5)
		}
	}
	return out
}
