// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

// PSI section的CRC_32
// <iso13818-1.pdf> <Annex A> 多项式0x04C11DB7，初值0xFFFFFFFF，MSB先行，无最终异或
//
// 注意，标准库hash/crc32的IEEE是反射实现，算出来的值对不上，不能用

var crc32Table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crc32Table[i] = crc
	}
}

func CalcCrc32(crc uint32, b []byte) uint32 {
	for _, v := range b {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^v]
	}
	return crc
}

// ValidateSectionCrc32 对包含CRC_32字段在内的整个section计算，结果为0说明校验通过
func ValidateSectionCrc32(section []byte) bool {
	return CalcCrc32(0xffffffff, section) == 0
}
