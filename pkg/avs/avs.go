// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avs

import (
	"errors"
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/es"
)

var ErrAvs = errors.New("tstoolbox.avs: fxxk")

// AVS start code
const (
	StartCodeSeqHeader uint8 = 0xb0
	StartCodeSeqEnd    uint8 = 0xb1
	StartCodeUserData  uint8 = 0xb2
	StartCodeIFrame    uint8 = 0xb3
	StartCodeExtension uint8 = 0xb5
	StartCodePbFrame   uint8 = 0xb6
	StartCodeVideoEdit uint8 = 0xb7

	startCodeSliceLast uint8 = 0xaf
)

// picture_coding_type，I frame没有这个字段，给它发明一个0
const (
	PictureCodingI uint8 = 0
	PictureCodingP uint8 = 1
	PictureCodingB uint8 = 2
)

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
	if code <= startCodeSliceLast {
		return "Slice"
	}
	switch code {
	case StartCodeSeqHeader:
		return "Sequence header"
	case StartCodeSeqEnd:
		return "Sequence end"
	case StartCodeUserData:
		return "User data"
	case StartCodeIFrame:
		return "I frame"
	case StartCodeExtension:
		return "Extension"
	case StartCodePbFrame:
		return "P/B frame"
	case StartCodeVideoEdit:
		return "Video edit"
	}
	return "Reserved"
}

// Frame 一个聚合后的AVS帧（或sequence header）
type Frame struct {
	StartCode         uint8
	IsFrame           bool
	IsSequenceHeader  bool
	PictureCodingType uint8

	Units []es.Unit
}

func (f *Frame) Bounds() (es.Offset, int) {
	var total int
	for i := range f.Units {
		total += len(f.Units[i].Data)
	}
	if len(f.Units) == 0 {
		return es.Offset{}, 0
	}
	return f.Units[0].StartPosn, total
}

// Context AVS流的帧聚合器，esinfo等报告类工具用
type Context struct {
	scanner *es.UnitScanner

	lastUnit *es.Unit

	FrameIndex uint32
}

func NewContext(scanner *es.UnitScanner) *Context {
	return &Context{
		scanner: scanner,
	}
}

// NextFrame 取下一个帧级聚合
//
// 从I frame/P/B frame/sequence header起，到下一个这三者（或sequence end）止
//
func (ctx *Context) NextFrame() (*Frame, error) {
	unit := ctx.lastUnit
	ctx.lastUnit = nil

	for {
		if unit == nil {
			u, err := ctx.scanner.NextUnit()
			if err != nil {
				return nil, err
			}
			unit = u
		}
		if isFrameStart(unit.StartCode) {
			break
		}
		nazalog.Debugf("skip leading %s unit", StartCodeStr(unit.StartCode))
		unit = nil
	}

	frame := &Frame{
		StartCode: unit.StartCode,
	}
	switch unit.StartCode {
	case StartCodeIFrame:
		frame.IsFrame = true
		frame.PictureCodingType = PictureCodingI
	case StartCodePbFrame:
		frame.IsFrame = true
		frame.PictureCodingType = pictureCodingType(unit)
	case StartCodeSeqHeader:
		frame.IsSequenceHeader = true
	}
	frame.Units = append(frame.Units, *unit)

	if unit.StartCode == StartCodeSeqEnd {
		return frame, nil
	}

	for {
		u, err := ctx.scanner.NextUnit()
		if err != nil {
			if err == io.EOF || err == es.ErrShortUnit {
				ctx.finish(frame)
				return frame, nil
			}
			return nil, err
		}
		if isFrameStart(u.StartCode) || u.StartCode == StartCodeSeqEnd {
			ctx.lastUnit = u
			break
		}
		frame.Units = append(frame.Units, *u)
	}
	ctx.finish(frame)
	return frame, nil
}

func (ctx *Context) finish(frame *Frame) {
	if frame.IsFrame {
		ctx.FrameIndex++
	}
}

func isFrameStart(code uint8) bool {
	return code == StartCodeIFrame || code == StartCodePbFrame || code == StartCodeSeqHeader
}

// <GB/T 20090.2> picture header里的picture_coding_type
func pictureCodingType(unit *es.Unit) uint8 {
	if len(unit.Data) > 6 {
		t := (unit.Data[6] & 0xc0) >> 6
		if t == PictureCodingP || t == PictureCodingB {
			return t
		}
		nazalog.Warnf("avs picture coding type %d unexpected", t)
	}
	return PictureCodingB
}
