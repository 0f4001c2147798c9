// internal/dxl/serial/codec.go
package serial

import "github.com/pkg/errors"

// decodeItem converts little-endian register bytes to a float64. Multi-byte
// registers are two's-complement signed on X-series devices (position,
// velocity, current); single bytes are plain unsigned.
func decodeItem(data []byte, size int) (float64, error) {
	if len(data) < size {
		return 0, errors.Errorf("short register payload: got %d bytes, want %d", len(data), size)
	}
	switch size {
	case 1:
		return float64(data[0]), nil
	case 2:
		v := int16(uint16(data[0]) | uint16(data[1])<<8)
		return float64(v), nil
	case 4:
		v := int32(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
		return float64(v), nil
	}
	return 0, errors.Errorf("unsupported register size %d", size)
}

// encodeItem converts a float64 into little-endian register bytes.
func encodeItem(value float64, size int) ([]byte, error) {
	switch size {
	case 1:
		return []byte{byte(int64(value))}, nil
	case 2:
		v := uint16(int16(value))
		return []byte{byte(v), byte(v >> 8)}, nil
	case 4:
		v := uint32(int32(value))
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}, nil
	}
	return nil, errors.Errorf("unsupported register size %d", size)
}
