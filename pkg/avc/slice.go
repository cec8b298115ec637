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

// SliceHeader access unit边界判断要比的字段，解析到够用为止
//
// <ISO-14496-10.pdf> <7.3.3> Slice header syntax
//
type SliceHeader struct {
	FirstMbInSlice uint32
	SliceType      uint32
	PpsId          uint32
	FrameNum       uint32

	FieldPicFlag    uint8
	BottomFieldFlag uint8

	IdrPicId uint32 // 仅IDR

	// pic_order_cnt_type == 0
	PicOrderCntLsb          uint32
	DeltaPicOrderCntBottom  int32

	// pic_order_cnt_type == 1
	DeltaPicOrderCnt0 int32
	DeltaPicOrderCnt1 int32
}

// ParseSliceHeader 解析一个VCL NAL的slice header
//
// @param rbsp     去过防竞争字节，从nal header起
// @param lookupSps/lookupPps 参数集查询，没缓存到对应id时返回false
//
func ParseSliceHeader(rbsp []byte, lookupSps func(id uint32) (Sps, bool), lookupPps func(id uint32) (Pps, bool)) (sh SliceHeader, err error) {
	br := nazabits.NewBitReader(rbsp)

	var header uint8
	if header, err = br.ReadBits8(8); err != nil {
		return sh, nazaerrors.Wrap(err)
	}
	naluType := ParseNaluType(header)

	if sh.FirstMbInSlice, err = br.ReadGolomb(); err != nil {
		return sh, nazaerrors.Wrap(err)
	}
	if sh.SliceType, err = br.ReadGolomb(); err != nil {
		return sh, nazaerrors.Wrap(err)
	}
	if sh.PpsId, err = br.ReadGolomb(); err != nil {
		return sh, nazaerrors.Wrap(err)
	}

	pps, ok := lookupPps(sh.PpsId)
	if !ok {
		return sh, nazaerrors.Wrap(ErrAvc)
	}
	sps, ok := lookupSps(pps.SpsId)
	if !ok {
		return sh, nazaerrors.Wrap(ErrAvc)
	}

	if sh.FrameNum, err = br.ReadBits32(uint(sps.Log2MaxFrameNum)); err != nil {
		return sh, nazaerrors.Wrap(err)
	}

	if sps.FrameMbsOnlyFlag == 0 {
		if sh.FieldPicFlag, err = br.ReadBits8(1); err != nil {
			return sh, nazaerrors.Wrap(err)
		}
		if sh.FieldPicFlag == 1 {
			if sh.BottomFieldFlag, err = br.ReadBits8(1); err != nil {
				return sh, nazaerrors.Wrap(err)
			}
		}
	}

	if naluType == NaluTypeIdrSlice {
		if sh.IdrPicId, err = br.ReadGolomb(); err != nil {
			return sh, nazaerrors.Wrap(err)
		}
	}

	switch sps.PicOrderCntType {
	case 0:
		if sh.PicOrderCntLsb, err = br.ReadBits32(uint(sps.Log2MaxPicOrderCntLsb)); err != nil {
			return sh, nazaerrors.Wrap(err)
		}
		if pps.PicOrderPresentFlag == 1 && sh.FieldPicFlag == 0 {
			if sh.DeltaPicOrderCntBottom, err = ReadSignedGolomb(&br); err != nil {
				return sh, nazaerrors.Wrap(err)
			}
		}
	case 1:
		if sps.DeltaPicOrderAlwaysZero == 0 {
			if sh.DeltaPicOrderCnt0, err = ReadSignedGolomb(&br); err != nil {
				return sh, nazaerrors.Wrap(err)
			}
			if pps.PicOrderPresentFlag == 1 && sh.FieldPicFlag == 0 {
				if sh.DeltaPicOrderCnt1, err = ReadSignedGolomb(&br); err != nil {
					return sh, nazaerrors.Wrap(err)
				}
			}
		}
	}
	return sh, nil
}
