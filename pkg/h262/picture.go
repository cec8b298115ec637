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

// Picture 一个聚合后的"picture"
//
// 三种形态：真正的coded picture（含extension、user data、slice），
// sequence header及其随行unit，以及单个的sequence end
//
type Picture struct {
	IsPicture        bool
	IsSequenceHeader bool

	PictureCodingType uint8 // I/P/B，仅picture
	TemporalReference uint16
	PictureStructure  uint8 // 默认frame，picture coding extension里改写
	WasTwoFields      bool

	Afd       byte
	IsRealAfd bool

	AspectRatioInfo     uint8 // 仅sequence header
	ProgressiveSequence uint8

	Units []es.Unit
}

func newPictureFromItem(ctx *Context, item *Item) *Picture {
	pic := &Picture{}
	data := item.Unit.Data
	switch {
	case item.IsPicture():
		pic.IsPicture = true
		pic.PictureCodingType = item.PictureCodingType
		pic.TemporalReference = uint16(data[4])<<2 | uint16(data[5]&0xc0)>>6
		// MPEG-1不会再告诉我们别的，先当frame
		pic.PictureStructure = PictureStructureFrame
		pic.Afd = ctx.lastAfd
	case item.IsSeqHeader():
		pic.IsSequenceHeader = true
		if len(data) > 7 {
			pic.AspectRatioInfo = (data[7] & 0xf0) >> 4
		}
		pic.ProgressiveSequence = 1
	case item.IsSeqEnd():
		// 单unit picture，无其他字段
	}
	pic.appendItem(item)
	return pic
}

func (pic *Picture) appendItem(item *Item) {
	if item.IsExtension() {
		data := item.Unit.Data
		if len(data) > 6 {
			switch (data[4] & 0xf0) >> 4 {
			case extensionIdSequence:
				pic.ProgressiveSequence = data[5] & 0x08
			case extensionIdPictureCoding:
				pic.PictureStructure = data[6] & 0x03
			}
		}
	}
	pic.Units = append(pic.Units, item.Unit)
}

// IsField 场图，等着跟下一场并帧
func (pic *Picture) IsField() bool {
	return pic.IsPicture &&
		(pic.PictureStructure == PictureStructureTop || pic.PictureStructure == PictureStructureBottom)
}

// mergeFields 把第二场的unit并进来
func (pic *Picture) mergeFields(second *Picture) {
	pic.Units = append(pic.Units, second.Units...)
	pic.WasTwoFields = true
}

// Same 按unit数据逐字节比较（sequence header去重用）
func (pic *Picture) Same(other *Picture) bool {
	if pic == other {
		return true
	}
	if pic == nil || other == nil {
		return false
	}
	if len(pic.Units) != len(other.Units) {
		return false
	}
	for i := range pic.Units {
		if !bytes.Equal(pic.Units[i].Data, other.Units[i].Data) {
			return false
		}
	}
	return true
}

// Bounds picture首字节的位置和所有unit的总字节数
func (pic *Picture) Bounds() (es.Offset, int) {
	var total int
	for i := range pic.Units {
		total += len(pic.Units[i].Data)
	}
	if len(pic.Units) == 0 {
		return es.Offset{}, 0
	}
	return pic.Units[0].StartPosn, total
}

// Data 所有unit数据拼起来（过滤器输出用）
func (pic *Picture) Data() []byte {
	var total int
	for i := range pic.Units {
		total += len(pic.Units[i].Data)
	}
	out := make([]byte, 0, total)
	for i := range pic.Units {
		out = append(out, pic.Units[i].Data...)
	}
	return out
}
