// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// Sps access unit边界判断和slice header解析用得到的那部分字段
//
// <ISO-14496-10.pdf> <7.3.2.1> Sequence parameter set RBSP syntax
//
type Sps struct {
	ProfileIdc uint8
	LevelIdc   uint8
	SpsId      uint32

	Log2MaxFrameNum uint32 // log2_max_frame_num_minus4 + 4

	PicOrderCntType          uint32
	Log2MaxPicOrderCntLsb    uint32 // 仅type 0
	DeltaPicOrderAlwaysZero  uint8  // 仅type 1
	FrameMbsOnlyFlag         uint8
}

// ParseSps 只解析到frame_mbs_only_flag，后面的裁剪信息用不到
//
// @param rbsp 去过防竞争字节，从nal header起
//
func ParseSps(rbsp []byte) (sps Sps, err error) {
	br := nazabits.NewBitReader(rbsp)

	if _, err = br.ReadBits8(8); err != nil { // nal header
		return sps, nazaerrors.Wrap(err)
	}
	if sps.ProfileIdc, err = br.ReadBits8(8); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	if _, err = br.ReadBits8(8); err != nil { // constraint set flags + reserved
		return sps, nazaerrors.Wrap(err)
	}
	if sps.LevelIdc, err = br.ReadBits8(8); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	if sps.SpsId, err = br.ReadGolomb(); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	if sps.SpsId >= 32 {
		return sps, nazaerrors.Wrap(ErrAvc)
	}

	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		var chromaFormatIdc uint32
		if chromaFormatIdc, err = br.ReadGolomb(); err != nil {
			return sps, nazaerrors.Wrap(err)
		}
		if chromaFormatIdc == 3 {
			if _, err = br.ReadBits8(1); err != nil { // separate_colour_plane_flag
				return sps, nazaerrors.Wrap(err)
			}
		}
		if _, err = br.ReadGolomb(); err != nil { // bit_depth_luma_minus8
			return sps, nazaerrors.Wrap(err)
		}
		if _, err = br.ReadGolomb(); err != nil { // bit_depth_chroma_minus8
			return sps, nazaerrors.Wrap(err)
		}
		if _, err = br.ReadBits8(1); err != nil { // qpprime_y_zero_transform_bypass_flag
			return sps, nazaerrors.Wrap(err)
		}
		var scalingMatrixPresent uint8
		if scalingMatrixPresent, err = br.ReadBits8(1); err != nil {
			return sps, nazaerrors.Wrap(err)
		}
		if scalingMatrixPresent == 1 {
			count := 8
			if chromaFormatIdc == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				var present uint8
				if present, err = br.ReadBits8(1); err != nil {
					return sps, nazaerrors.Wrap(err)
				}
				if present == 1 {
					if err = skipScalingList(&br, listSize(i)); err != nil {
						return sps, nazaerrors.Wrap(err)
					}
				}
			}
		}
	}

	var v uint32
	if v, err = br.ReadGolomb(); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	sps.Log2MaxFrameNum = v + 4

	if sps.PicOrderCntType, err = br.ReadGolomb(); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	switch sps.PicOrderCntType {
	case 0:
		if v, err = br.ReadGolomb(); err != nil {
			return sps, nazaerrors.Wrap(err)
		}
		sps.Log2MaxPicOrderCntLsb = v + 4
	case 1:
		if sps.DeltaPicOrderAlwaysZero, err = br.ReadBits8(1); err != nil {
			return sps, nazaerrors.Wrap(err)
		}
		if _, err = ReadSignedGolomb(&br); err != nil { // offset_for_non_ref_pic
			return sps, nazaerrors.Wrap(err)
		}
		if _, err = ReadSignedGolomb(&br); err != nil { // offset_for_top_to_bottom_field
			return sps, nazaerrors.Wrap(err)
		}
		var n uint32
		if n, err = br.ReadGolomb(); err != nil {
			return sps, nazaerrors.Wrap(err)
		}
		for i := uint32(0); i < n; i++ {
			if _, err = ReadSignedGolomb(&br); err != nil {
				return sps, nazaerrors.Wrap(err)
			}
		}
	}

	if _, err = br.ReadGolomb(); err != nil { // max_num_ref_frames
		return sps, nazaerrors.Wrap(err)
	}
	if _, err = br.ReadBits8(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return sps, nazaerrors.Wrap(err)
	}
	if _, err = br.ReadGolomb(); err != nil { // pic_width_in_mbs_minus1
		return sps, nazaerrors.Wrap(err)
	}
	if _, err = br.ReadGolomb(); err != nil { // pic_height_in_map_units_minus1
		return sps, nazaerrors.Wrap(err)
	}
	if sps.FrameMbsOnlyFlag, err = br.ReadBits8(1); err != nil {
		return sps, nazaerrors.Wrap(err)
	}
	return sps, nil
}

func listSize(i int) int {
	if i < 6 {
		return 16
	}
	return 64
}

func skipScalingList(br *nazabits.BitReader, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := ReadSignedGolomb(br)
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

// Pps slice header解析用得到的那部分字段
//
// <ISO-14496-10.pdf> <7.3.2.2> Picture parameter set RBSP syntax
//
type Pps struct {
	PpsId uint32
	SpsId uint32

	// bottom_field_pic_order_in_frame_present_flag
	PicOrderPresentFlag uint8
}

func ParsePps(rbsp []byte) (pps Pps, err error) {
	br := nazabits.NewBitReader(rbsp)
	if _, err = br.ReadBits8(8); err != nil { // nal header
		return pps, nazaerrors.Wrap(err)
	}
	if pps.PpsId, err = br.ReadGolomb(); err != nil {
		return pps, nazaerrors.Wrap(err)
	}
	if pps.PpsId >= 256 {
		return pps, nazaerrors.Wrap(ErrAvc)
	}
	if pps.SpsId, err = br.ReadGolomb(); err != nil {
		return pps, nazaerrors.Wrap(err)
	}
	if _, err = br.ReadBits8(1); err != nil { // entropy_coding_mode_flag
		return pps, nazaerrors.Wrap(err)
	}
	if pps.PicOrderPresentFlag, err = br.ReadBits8(1); err != nil {
		return pps, nazaerrors.Wrap(err)
	}
	return pps, nil
}
