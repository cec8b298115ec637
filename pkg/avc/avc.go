// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"errors"

	"github.com/q191201771/naza/pkg/nazabits"
)

var ErrAvc = errors.New("tstoolbox.avc: fxxk")

var NaluTypeMapping = map[uint8]string{
	1:  "SLICE",
	5:  "IDR",
	6:  "SEI",
	7:  "SPS",
	8:  "PPS",
	9:  "AUD",
	10: "EOSEQ",
	11: "EOSTREAM",
	12: "FILLER",
}

var SliceTypeMapping = map[uint8]string{
	0: "P",
	1: "B",
	2: "I",
	3: "SP",
	4: "SI",
}

const (
	NaluTypeSlice    uint8 = 1
	NaluTypeIdrSlice uint8 = 5
	NaluTypeSei      uint8 = 6
	NaluTypeSps      uint8 = 7
	NaluTypePps      uint8 = 8
	NaluTypeAud      uint8 = 9
	NaluTypeEoSeq    uint8 = 10
	NaluTypeEoStream uint8 = 11
	NaluTypeFiller   uint8 = 12
)

const (
	SliceTypeP  uint8 = 0
	SliceTypeB  uint8 = 1
	SliceTypeI  uint8 = 2
	SliceTypeSP uint8 = 3
	SliceTypeSI uint8 = 4
)

// ParseNaluType nal header里的nal_unit_type
func ParseNaluType(v uint8) uint8 {
	return v & 0x1f
}

// ParseNalRefIdc nal header里的nal_ref_idc
func ParseNalRefIdc(v uint8) uint8 {
	return (v >> 5) & 0x03
}

func IsVclNaluType(t uint8) bool {
	return t == NaluTypeSlice || t == NaluTypeIdrSlice || (t >= 2 && t <= 4)
}

func NaluTypeReadable(t uint8) string {
	ret, ok := NaluTypeMapping[t]
	if !ok {
		return "unknown"
	}
	return ret
}

// NormalizeSliceType slice_type对5取模，5..9与0..4同义
func NormalizeSliceType(t uint32) uint8 {
	if t > 4 {
		t -= 5
	}
	return uint8(t)
}

func SliceTypeReadable(t uint32) string {
	ret, ok := SliceTypeMapping[NormalizeSliceType(t)]
	if !ok {
		return "unknown"
	}
	return ret
}

// ReadSignedGolomb se(v)
//
// <ISO-14496-10.pdf> <9.1.1> k偶数映射到k/2，奇数映射到-(k+1)/2
func ReadSignedGolomb(br *nazabits.BitReader) (int32, error) {
	k, err := br.ReadGolomb()
	if err != nil {
		return 0, err
	}
	if k%2 == 0 {
		return int32(k / 2), nil
	}
	return -int32((k + 1) / 2), nil
}
