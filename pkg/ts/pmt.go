// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"bytes"

	"github.com/q191201771/naza/pkg/nazabits"
)

// ----------------------------------------
// Program Map Table
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// 0                        [1b]
// reserved                 [2b]
// section_length           [12b] **
// program_number           [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length           [12b] **
// --------------
// CRC32                    [32b] ****
// ----------------------------------------
type Pmt struct {
	Tid             uint8
	Pn              uint16
	Vn              uint8
	PcrPid          uint16
	ProgramInfo     []byte
	ProgramElements []PmtProgramElement
	crc32           uint32
}

type PmtProgramElement struct {
	StreamType uint8
	Pid        uint16
	EsInfo     []byte
}

func ParsePmt(b []byte) (pmt Pmt, err error) {
	if len(b) < 16 {
		return pmt, ErrTs
	}
	br := nazabits.NewBitReader(b)
	pmt.Tid, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(4)
	var sl uint16
	sl, _ = br.ReadBits16(12)
	if int(sl)+3 > len(b) || sl < 13 {
		return pmt, ErrTs
	}
	pmt.Pn, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	pmt.Vn, _ = br.ReadBits8(5)
	_, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(3)
	pmt.PcrPid, _ = br.ReadBits16(13)
	if pmt.PcrPid == 0 {
		// 有些流把PCR_PID写成0表示没有，归一成0x1FFF
		pmt.PcrPid = PidNull
	}
	_, _ = br.ReadBits8(4)
	var pil uint16
	pil, _ = br.ReadBits16(12)
	if pil > 0 {
		pmt.ProgramInfo, err = br.ReadBytes(uint(pil))
		if err != nil {
			return pmt, ErrTs
		}
	}

	// section_length以下去掉固定头9字节、program_info和CRC
	remain := int(sl) - 9 - int(pil) - 4
	for remain >= 5 {
		var ppe PmtProgramElement
		ppe.StreamType, _ = br.ReadBits8(8)
		_, _ = br.ReadBits8(3)
		ppe.Pid, _ = br.ReadBits16(13)
		_, _ = br.ReadBits8(4)
		var eil uint16
		eil, _ = br.ReadBits16(12)
		remain -= 5
		if eil > 0 {
			if int(eil) > remain {
				return pmt, ErrTs
			}
			ppe.EsInfo, err = br.ReadBytes(uint(eil))
			if err != nil {
				return pmt, ErrTs
			}
			remain -= int(eil)
		}
		pmt.ProgramElements = append(pmt.ProgramElements, ppe)
	}
	pmt.crc32, err = br.ReadBits32(32)
	return
}

// SearchPid 找出pid对应的流
func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// FirstVideo 第一条视频流
func (pmt *Pmt) FirstVideo() *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if IsVideoStreamType(pmt.ProgramElements[i].StreamType) {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// Equal 流的顺序无关，ES_info要逐字节一致
func (pmt *Pmt) Equal(other *Pmt) bool {
	if other == nil {
		return false
	}
	if pmt.Pn != other.Pn || pmt.PcrPid != other.PcrPid {
		return false
	}
	if !bytes.Equal(pmt.ProgramInfo, other.ProgramInfo) {
		return false
	}
	if len(pmt.ProgramElements) != len(other.ProgramElements) {
		return false
	}
	for i := range pmt.ProgramElements {
		mine := &pmt.ProgramElements[i]
		found := false
		for j := range other.ProgramElements {
			theirs := &other.ProgramElements[j]
			if mine.Pid == theirs.Pid && mine.StreamType == theirs.StreamType && bytes.Equal(mine.EsInfo, theirs.EsInfo) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
