package payload

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression modes
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encode applies the configured compression
func encode(data []byte, compression string) []byte {
	if compression != CompressionZstd {
		return data
	}
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// decode detects zstd frames by magic number so entries written under a
// previous compression setting stay readable
func decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}
