// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import "errors"

var (
	ErrTs        = errors.New("tstoolbox.ts: fxxk")
	ErrShortRead = errors.New("tstoolbox.ts: short read")
	ErrLostSync  = errors.New("tstoolbox.ts: lost sync")
)

const (
	syncByte uint8 = 0x47

	PacketSize = 188

	PidPat  uint16 = 0x0000
	PidNull uint16 = 0x1fff
)

// 自己合成TS流时使用的固定值
const (
	DefaultTsid          uint16 = 1
	DefaultProgramNumber uint16 = 1
	DefaultPidPmt        uint16 = 0x66
	DefaultPidAudio      uint16 = 0x67
	DefaultPidVideo      uint16 = 0x68
)

// stream_type
// <iso13818-1.pdf> <Table 2-29> <page 66/174>
const (
	StreamTypeMpeg1Video uint8 = 0x01
	StreamTypeMpeg2Video uint8 = 0x02
	StreamTypeMpeg1Audio uint8 = 0x03
	StreamTypeMpeg2Audio uint8 = 0x04
	StreamTypePrivate    uint8 = 0x06
	StreamTypeAdts       uint8 = 0x0f
	StreamTypeAvc        uint8 = 0x1b
	StreamTypeAvs        uint8 = 0x42
	StreamTypeAc3        uint8 = 0x81
)

// DVB subtitling_descriptor
const descriptorTagSubtitling uint8 = 0x59

// StreamTypeName 返回可读的流类型名
//
// @param esInfo PMT中该流的descriptor原始数据，用于区分0x06下的DVB subtitle，可以为nil
//
func StreamTypeName(streamType uint8, esInfo []byte) string {
	switch streamType {
	case StreamTypeMpeg1Video:
		return "MPEG-1 video"
	case StreamTypeMpeg2Video:
		return "MPEG-2 video"
	case StreamTypeMpeg1Audio:
		return "MPEG-1 audio"
	case StreamTypeMpeg2Audio:
		return "MPEG-2 audio"
	case StreamTypePrivate:
		if hasDescriptor(esInfo, descriptorTagSubtitling) {
			return "DVB subtitles"
		}
		return "PES private data"
	case StreamTypeAdts:
		return "ADTS audio"
	case StreamTypeAvc:
		return "H.264 video"
	case StreamTypeAvs:
		return "AVS video"
	case StreamTypeAc3:
		return "AC-3 audio"
	}
	return "unknown"
}

// IsVideoStreamType I帧挑选、倒放等逻辑只关心视频流
func IsVideoStreamType(streamType uint8) bool {
	switch streamType {
	case StreamTypeMpeg1Video, StreamTypeMpeg2Video, StreamTypeAvc, StreamTypeAvs:
		return true
	}
	return false
}

func IsAudioStreamType(streamType uint8) bool {
	switch streamType {
	case StreamTypeMpeg1Audio, StreamTypeMpeg2Audio, StreamTypeAdts, StreamTypeAc3:
		return true
	}
	return false
}

func hasDescriptor(esInfo []byte, tag uint8) bool {
	for len(esInfo) >= 2 {
		length := int(esInfo[1])
		if esInfo[0] == tag {
			return true
		}
		if len(esInfo) < 2+length {
			return false
		}
		esInfo = esInfo[2+length:]
	}
	return false
}
