// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pes

import (
	"github.com/q191201771/naza/pkg/nazalog"
)

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
//
// MPEG-1（iso11172-1）的包头不一样：长度字段后面是若干0xFF填充，
// 可选的STD buffer字段（'01'打头2字节），然后是PTS/PTS+DTS/无时间戳标记
//
type Packet struct {
	Sid    uint8
	Length uint16 // PES_packet_length声明值，视频流允许为0

	PtsDtsFlag uint8 // 2:只有PTS 3:PTS+DTS 0:都没有
	Pts        uint64
	Dts        uint64

	Payload []byte

	// 包首字节（start code的第一个0x00）在输入流中的位置，ES offset的infile部分
	Posn int64
}

func (p *Packet) HasPts() bool {
	return p.PtsDtsFlag&0x2 != 0
}

func (p *Packet) HasDts() bool {
	return p.PtsDtsFlag&0x1 != 0
}

// ParsePacket 解析一个完整的PES包（包头可能跨TS包，所以在攒齐后统一解析）
//
// @param b 从start code prefix开始的完整PES包数据
//
func ParsePacket(b []byte, posn int64, mpeg1 bool) (pkt *Packet, err error) {
	if len(b) < 6 {
		return nil, ErrPes
	}
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		return nil, ErrPes
	}
	pkt = &Packet{
		Sid:    b[3],
		Length: uint16(b[4])<<8 | uint16(b[5]),
		Posn:   posn,
	}

	switch pkt.Sid {
	case SidPaddingStream, SidPrivateStream2:
		// 这两类没有扩展包头
		pkt.Payload = b[6:]
		return pkt, nil
	}

	if mpeg1 {
		return parseMpeg1Header(pkt, b)
	}

	if len(b) < 9 {
		return nil, ErrPes
	}
	if b[6]&0xc0 != 0x80 {
		// 不是'10'打头，按MPEG-1再试一次
		return parseMpeg1Header(pkt, b)
	}

	pkt.PtsDtsFlag = (b[7] & 0xc0) >> 6
	phdl := int(b[8])
	if 9+phdl > len(b) {
		return nil, ErrPes
	}

	if pkt.PtsDtsFlag&0x2 != 0 {
		pkt.Pts, err = readPts(b[9:])
		if err != nil {
			return nil, err
		}
	}
	if pkt.PtsDtsFlag&0x1 != 0 {
		pkt.Dts, err = readPts(b[14:])
		if err != nil {
			return nil, err
		}
	} else {
		pkt.Dts = pkt.Pts
	}

	pkt.Payload = b[9+phdl:]
	return pkt, nil
}

func parseMpeg1Header(pkt *Packet, b []byte) (*Packet, error) {
	index := 6
	// 跳过0xFF填充
	for index < len(b) && b[index] == 0xff {
		index++
	}
	if index < len(b) && b[index]&0xc0 == 0x40 {
		// STD buffer scale/size
		index += 2
	}
	if index >= len(b) {
		return nil, ErrPes
	}
	switch b[index] >> 4 {
	case 0x2:
		pts, err := readPts(b[index:])
		if err != nil {
			return nil, err
		}
		pkt.PtsDtsFlag = 0x2
		pkt.Pts = pts
		pkt.Dts = pts
		index += 5
	case 0x3:
		pts, err := readPts(b[index:])
		if err != nil {
			return nil, err
		}
		dts, err := readPts(b[index+5:])
		if err != nil {
			return nil, err
		}
		pkt.PtsDtsFlag = 0x3
		pkt.Pts = pts
		pkt.Dts = dts
		index += 10
	default:
		if b[index] != 0x0f {
			nazalog.Warnf("unexpected mpeg1 pes header byte. b=%#x", b[index])
		}
		index++
	}
	if index > len(b) {
		return nil, ErrPes
	}
	pkt.Payload = b[index:]
	return pkt, nil
}

// read pts or dts
//
// 33位拆成3+15+15，中间夹3个marker bit
//
func readPts(b []byte) (pts uint64, err error) {
	if len(b) < 5 {
		return 0, ErrPes
	}
	if b[0]&0x01 != 0x01 || b[2]&0x01 != 0x01 || b[4]&0x01 != 0x01 {
		return 0, ErrPes
	}
	pts |= uint64((b[0]>>1)&0x07) << 30
	pts |= (uint64(b[1])<<8 | uint64(b[2])) >> 1 << 15
	pts |= (uint64(b[3])<<8 | uint64(b[4])) >> 1
	return pts, nil
}
