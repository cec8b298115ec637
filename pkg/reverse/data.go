// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package reverse

import (
	"errors"

	"github.com/q191201771/tstoolbox/pkg/es"
)

var (
	ErrReverse = errors.New("tstoolbox.reverse: fxxk")

	// 正向扫完一个可用的锚点帧都没有
	ErrNoData = errors.New("tstoolbox.reverse: no anchor frames collected")
)

// FrameKind catalog里一条记录的帧类型
type FrameKind int

const (
	KindSeqHeader FrameKind = iota // H.262 sequence header，不单独输出
	KindI                          // H.262 I picture
	KindP                          // H.262 P picture（allref时收）
	KindIdr                        // H.264 IDR
	KindAllI                       // H.264 非IDR但slice全I
	KindAllIOrP                    // H.264 slice全I/P（allref时收）
)

func (k FrameKind) String() string {
	switch k {
	case KindSeqHeader:
		return "seqh"
	case KindI:
		return "I"
	case KindP:
		return "P"
	case KindIdr:
		return "IDR"
	case KindAllI:
		return "I-slices"
	case KindAllIOrP:
		return "P-slices"
	}
	return "unknown"
}

// Entry 一个可独立解码的锚点（或它依赖的sequence header）
type Entry struct {
	Index   uint32 // 正向扫描时的帧序号，sequence header条目沿用0
	Posn    es.Offset
	Length  int
	Kind    FrameKind
	SeqHdr  bool
	Afd     byte // 仅H.262
}

// Data 正向扫描攒出来的倒放目录
//
// 追加时保证Posn单调不减，倒放时从尾往头走
//
type Data struct {
	IsH264 bool

	Entries []Entry

	// 输出统计，esreverse结束时的summary用
	FirstWritten    int
	PicturesKept    uint32
	PicturesWritten uint32

	lastPosnAdded es.Offset
}

func NewData(isH264 bool) *Data {
	return &Data{
		IsH264:       isH264,
		FirstWritten: -1,
	}
}

// Remember 追加一条记录
func (d *Data) Remember(index uint32, posn es.Offset, length int, kind FrameKind, afd byte) error {
	if len(d.Entries) > 0 && posn.Before(d.lastPosnAdded) {
		// 目录必须随输入位置单调增长，乱了说明上游出了问题
		return ErrReverse
	}
	d.Entries = append(d.Entries, Entry{
		Index:  index,
		Posn:   posn,
		Length: length,
		Kind:   kind,
		SeqHdr: kind == KindSeqHeader,
		Afd:    afd,
	})
	d.lastPosnAdded = posn
	if kind != KindSeqHeader {
		d.PicturesKept++
	}
	return nil
}

func (d *Data) Length() int {
	return len(d.Entries)
}

// Reset 重新扫描前清空
func (d *Data) Reset() {
	d.Entries = d.Entries[0:0]
	d.FirstWritten = -1
	d.PicturesKept = 0
	d.PicturesWritten = 0
	d.lastPosnAdded = es.Offset{}
}
