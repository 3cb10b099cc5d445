package jpegr

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
	hlgMaxNits   = 1000.0
)

const (
	defaultGainMapScale   = 4
	defaultBaseQuality    = 95
	defaultGainMapQuality = 85
	defaultGamma          = 1.0
	defaultHDRWhiteNits   = 1000.0
)

// Raw image dimension limits. Fixed per build.
const (
	minImageDimension = 8
	maxImageDimension = 16384
)

const (
	minTargetPeakNits = sdrWhiteNits
	maxTargetPeakNits = pqMaxNits
)

// maxErrorDetail bounds the detail string carried by an Error.
const maxErrorDetail = 256

const (
	jpegrVersion = "1.0"
)
