package jpegr

import (
	"image"
	"image/color"
	_ "image/jpeg" // register the JPEG decoder for image.Decode
)

// sampleSDR reads one pixel as linear light, clamping coordinates to the
// image bounds so gain generation can sample past the edge.
func sampleSDR(img image.Image, x, y int) rgb {
	b := img.Bounds()
	x = clampInt(x, b.Min.X, b.Max.X-1)
	y = clampInt(y, b.Min.Y, b.Max.Y-1)
	r, g, bl, _ := img.At(x, y).RGBA()
	const scale = 1.0 / 65535.0
	return rgb{
		r: srgbInvOetf(float32(r) * scale),
		g: srgbInvOetf(float32(g) * scale),
		b: srgbInvOetf(float32(bl) * scale),
	}
}

func isGrayImage(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

func grayAt(img image.Image, x, y int) uint8 {
	min := img.Bounds().Min
	return color.GrayModel.Convert(img.At(min.X+x, min.Y+y)).(color.Gray).Y
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	min := img.Bounds().Min
	r, g, b, _ := img.At(min.X+x, min.Y+y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func max3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
