package jpegx

// Marker bytes used by the baseline sequential encoder.
const (
	soiMarker  = 0xd8
	eoiMarker  = 0xd9
	sosMarker  = 0xda
	sof0Marker = 0xc0
	dhtMarker  = 0xc4
	dqtMarker  = 0xdb
)

// blockSize is the number of samples in one 8x8 DCT block.
const blockSize = 64

type block [blockSize]int32

// unzig maps zig-zag positions back to natural raster order, so quantized
// coefficients can be emitted in the order the scan expects.
var unzig = [blockSize]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}
