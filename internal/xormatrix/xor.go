package xormatrix

import (
	"fmt"

	"mtpcrib/pkg/contract"
)

// XOR 逐字节异或两段等长序列，返回新切片。
func XOR(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", contract.ErrLengthMismatch, len(a), len(b))
	}
	out := make([]byte, len(a))
	xorInto(out, a, b)
	return out, nil
}

// xorInto 写入 dst[i] = a[i] ^ b[i]；调用方保证三者等长。
func xorInto(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
