// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h262

import (
	"bytes"

	"github.com/q191201771/tstoolbox/pkg/es"
)

// Item 一个带H.262语义的ES unit
type Item struct {
	Unit es.Unit

	// 仅当start code是picture时有效
	PictureCodingType uint8
}

// NextItem 从scanner取下一个unit并做初步分类
func NextItem(s *es.UnitScanner) (*Item, error) {
	unit, err := s.NextUnit()
	if err != nil {
		return nil, err
	}
	item := &Item{
		Unit: *unit,
	}
	if unit.StartCode == StartCodePicture && len(unit.Data) > 5 {
		item.PictureCodingType = (unit.Data[5] & 0x38) >> 3
	}
	return item, nil
}

func (item *Item) IsPicture() bool {
	return item.Unit.StartCode == StartCodePicture
}

func (item *Item) IsSeqHeader() bool {
	return item.Unit.StartCode == StartCodeSeqHeader
}

func (item *Item) IsSeqEnd() bool {
	return item.Unit.StartCode == StartCodeSeqEnd
}

func (item *Item) IsSlice() bool {
	return item.Unit.StartCode >= StartCodeSliceFirst && item.Unit.StartCode <= StartCodeSliceLast
}

func (item *Item) IsExtension() bool {
	return item.Unit.StartCode == StartCodeExtension
}

func (item *Item) IsUserData() bool {
	return item.Unit.StartCode == StartCodeUserData
}

// IsAfdUserData user data且带"DTG1"标识
func (item *Item) IsAfdUserData() bool {
	d := item.Unit.Data
	return item.IsUserData() && len(d) >= 9 && bytes.Equal(d[4:8], afdIdentifier)
}
