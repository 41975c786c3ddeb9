package compression

import (
	"errors"
	"fmt"
)

// frameMagic opens a framed payload. JSON documents never start with it, so
// unframed JSON from other producers is still accepted by Unframe.
const frameMagic byte = 0xB7

// ErrCorruptFrame is returned for a framed payload that cannot be decoded
var ErrCorruptFrame = errors.New("corrupt frame")

// Frame compresses payload with algo. None returns payload unchanged so plain
// JSON stays readable on the bus; other algorithms get a two byte header
// {magic, algorithm}.
func Frame(algo Algorithm, payload []byte) ([]byte, error) {
	if algo == None {
		return payload, nil
	}

	c, err := GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	body, err := c.Compress(payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+2)
	out = append(out, frameMagic, byte(algo))
	return append(out, body...), nil
}

// Unframe reverses Frame, detecting the algorithm from the header. Payloads
// without the header are returned as they are.
func Unframe(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != frameMagic {
		return data, nil
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptFrame)
	}

	c, err := GetCompressor(Algorithm(data[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	out, err := c.Decompress(data[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	return out, nil
}
