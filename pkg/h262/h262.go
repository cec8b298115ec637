// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h262

import (
	"errors"
)

var ErrH262 = errors.New("tstoolbox.h262: fxxk")

// H.262 start code
// <iso13818-2.pdf> <6.2.1> <Table 6-1>
const (
	StartCodePicture    uint8 = 0x00
	StartCodeUserData   uint8 = 0xb2
	StartCodeSeqHeader  uint8 = 0xb3
	StartCodeSeqError   uint8 = 0xb4
	StartCodeExtension  uint8 = 0xb5
	StartCodeSeqEnd     uint8 = 0xb7
	StartCodeGroupStart uint8 = 0xb8

	StartCodeSliceFirst uint8 = 0x01
	StartCodeSliceLast  uint8 = 0xaf
)

// picture_coding_type
const (
	PictureCodingI uint8 = 1
	PictureCodingP uint8 = 2
	PictureCodingB uint8 = 3
)

// picture_structure
const (
	PictureStructureTop    uint8 = 1
	PictureStructureBottom uint8 = 2
	PictureStructureFrame  uint8 = 3
)

// extension_start_code_identifier高4位
const (
	extensionIdSequence      uint8 = 1
	extensionIdPictureCoding uint8 = 8
)

// AFD的user data标识 "DTG1"
var afdIdentifier = []byte{0x44, 0x54, 0x47, 0x31}

// UnsetAfd AFD 8（active format与编码帧一致），高4位是保留的1111
const UnsetAfd byte = 0xf8

func PictureCodingStr(t uint8) string {
	switch t {
	case PictureCodingI:
		return "I"
	case PictureCodingP:
		return "P"
	case PictureCodingB:
		return "B"
	}
	return "?"
}

func StartCodeStr(code uint8) string {
	switch code {
	case StartCodePicture:
		return "Picture"
	case StartCodeUserData:
		return "User data"
	case StartCodeSeqHeader:
		return "Sequence header"
	case StartCodeSeqError:
		return "Sequence error"
	case StartCodeExtension:
		return "Extension"
	case StartCodeSeqEnd:
		return "Sequence end"
	case StartCodeGroupStart:
		return "Group start"
	}
	if code >= StartCodeSliceFirst && code <= StartCodeSliceLast {
		return "Slice"
	}
	return "Reserved/system"
}
