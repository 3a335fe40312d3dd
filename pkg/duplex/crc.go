// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package duplex

import "hash/crc32"

// Checksum computes the frame CRC32: reflected IEEE polynomial, initial value
// 0xFFFFFFFF, no final inversion. A frame carrying its own checksum as a
// little-endian trailer checksums to zero.
func Checksum(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}
