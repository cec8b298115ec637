// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"github.com/q191201771/naza/pkg/nazabits"
)

// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type PacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

// adaptation_field_control
const (
	AdaptationFieldControlReserved uint8 = 0
	AdaptationFieldControlNo       uint8 = 1
	AdaptationFieldControlOnly     uint8 = 2
	AdaptationFieldControlFollowed uint8 = 3
)

func (h *PacketHeader) HasPayload() bool {
	return h.Adaptation == AdaptationFieldControlNo || h.Adaptation == AdaptationFieldControlFollowed
}

func (h *PacketHeader) HasAdaptation() bool {
	return h.Adaptation == AdaptationFieldControlOnly || h.Adaptation == AdaptationFieldControlFollowed
}

// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 40/174>
// adaptation_field_length              [8b] * 不包括自己这1字节
// discontinuity_indicator              [1b]
// random_access_indicator              [1b]
// elementary_stream_priority_indicator [1b]
// PCR_flag                             [1b]
// OPCR_flag                            [1b]
// splicing_point_flag                  [1b]
// transport_private_data_flag          [1b]
// adaptation_field_extension_flag      [1b] *
// -----if PCR_flag == 1-----
// program_clock_reference_base         [33b]
// reserved                             [6b]
// program_clock_reference_extension    [9b] ******
// ----------------------------------------------------------
type PacketAdaptation struct {
	Length        uint8
	Discontinuity uint8
	RandomAccess  uint8
	PcrFlag       uint8
	PcrBase       uint64 // 90kHz
	PcrExt        uint16 // 27MHz余数
}

// Pcr 27MHz时钟值
func (a *PacketAdaptation) Pcr() uint64 {
	return a.PcrBase*300 + uint64(a.PcrExt)
}

// Packet 一个解析后的188字节TS包
//
// Payload和AdaptationField是对原始包内存的切片引用
//
type Packet struct {
	Header     PacketHeader
	Adaptation PacketAdaptation
	Payload    []byte
	Posn       int64 // 包首字节在输入流中的位置
}

// 解析4字节TS Packet header
func ParsePacketHeader(b []byte) (h PacketHeader) {
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

func ParsePacketAdaptation(b []byte) (a PacketAdaptation, err error) {
	br := nazabits.NewBitReader(b)
	a.Length, _ = br.ReadBits8(8)
	if a.Length == 0 {
		return
	}
	a.Discontinuity, _ = br.ReadBits8(1)
	a.RandomAccess, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(1)
	a.PcrFlag, _ = br.ReadBits8(1)
	if _, err = br.ReadBits8(4); err != nil {
		return
	}
	if a.PcrFlag == 1 {
		var hi uint32
		var lo uint32
		hi, _ = br.ReadBits32(32)
		lo, err = br.ReadBits32(16)
		if err != nil {
			return
		}
		// 48位 = base33 + reserved6 + ext9
		v := uint64(hi)<<16 | uint64(lo)
		a.PcrBase = v >> 15
		a.PcrExt = uint16(v & 0x1ff)
	}
	return
}
