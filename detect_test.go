package jpegr

import (
	"bytes"
	"io"
	"testing"
)

func TestIsUltraHDR(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	ok, err := IsUltraHDR(bytes.NewReader(container))
	if err != nil {
		t.Fatalf("detect container: %v", err)
	}
	if !ok {
		t.Fatal("container not detected")
	}

	ok, err = IsUltraHDR(bytes.NewReader(synthPlainJPEG(t, 64, 48, true)))
	if err != nil {
		t.Fatalf("detect plain jpeg: %v", err)
	}
	if ok {
		t.Fatal("plain jpeg detected as UltraHDR")
	}

	ok, err = IsUltraHDR(bytes.NewReader([]byte("no jpeg here")))
	if err != nil {
		t.Fatalf("detect garbage: %v", err)
	}
	if ok {
		t.Fatal("garbage detected as UltraHDR")
	}
}

// onebyteReader forces the streaming path through minimal reads.
type onebyteReader struct {
	r io.Reader
}

func (o onebyteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

func TestIsUltraHDRStreaming(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	ok, err := IsUltraHDR(onebyteReader{r: bytes.NewReader(container)})
	if err != nil {
		t.Fatalf("detect with one-byte reads: %v", err)
	}
	if !ok {
		t.Fatal("container not detected through one-byte reads")
	}
}

func TestIsUltraHDRTruncated(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	// Cut inside the primary image scan so detection cannot reach the
	// gainmap header.
	ok, err := IsUltraHDR(bytes.NewReader(container[:len(container)/4]))
	if ok {
		t.Fatal("truncated stream detected as UltraHDR")
	}
	_ = err
}
