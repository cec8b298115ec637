// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pes

import "errors"

var (
	ErrPes = errors.New("tstoolbox.pes: fxxk")
)

// stream_id
// <iso13818-1.pdf> <Table 2-18> <page 52/174>
const (
	SidPrivateStream1 uint8 = 0xbd
	SidPaddingStream  uint8 = 0xbe
	SidPrivateStream2 uint8 = 0xbf
	SidAudioFirst     uint8 = 0xc0
	SidAudioLast      uint8 = 0xdf
	SidVideoFirst     uint8 = 0xe0
	SidVideoLast      uint8 = 0xef

	SidDefaultVideo uint8 = 0xe0
	SidDefaultAudio uint8 = 0xc0
)

func IsVideoSid(sid uint8) bool {
	return sid >= SidVideoFirst && sid <= SidVideoLast
}

func IsAudioSid(sid uint8) bool {
	return sid >= SidAudioFirst && sid <= SidAudioLast
}

// PacketSource 按输入流顺序产出PES包
//
// TS和PS输入都归一成这个接口，ES视图建立在它之上
//
type PacketSource interface {
	// NextPes 正常结束时返回io.EOF
	NextPes() (*Packet, error)

	// Seek 定位到起始位置为posn的PES包，下一次NextPes从它开始
	//
	// 倒放要求输入可seek，不可seek的输入返回错误
	Seek(posn int64) error

	Seekable() bool
}
