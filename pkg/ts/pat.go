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

// ---------------------------------------------------------------------------------------------------
// Program association section
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// table_id                 [8b] *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] **
// transport_stream_id      [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	Tid   uint8
	Tsi   uint16
	Vn    uint8
	Ppes  []PatProgramElement
	crc32 uint32
}

type PatProgramElement struct {
	Pn    uint16 // program_number，0是network PID，选流时忽略
	PmPid uint16
}

func ParsePat(b []byte) (pat Pat, err error) {
	if len(b) < 12 {
		return pat, ErrTs
	}
	br := nazabits.NewBitReader(b)
	pat.Tid, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(4)
	var sl uint16
	sl, _ = br.ReadBits16(12)
	pat.Tsi, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	pat.Vn, _ = br.ReadBits8(5)
	_, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(8)

	if int(sl)+3 > len(b) || sl < 9 {
		return pat, ErrTs
	}

	length := sl - 9
	for i := uint16(0); i < length; i += 4 {
		var ppe PatProgramElement
		ppe.Pn, _ = br.ReadBits16(16)
		_, _ = br.ReadBits8(3)
		ppe.PmPid, _ = br.ReadBits16(13)
		pat.Ppes = append(pat.Ppes, ppe)
	}
	pat.crc32, err = br.ReadBits32(32)
	return
}

// SearchPid pid是否是某个节目的PMT PID
func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.Ppes {
		if ppe.Pn != 0 && pid == ppe.PmPid {
			return true
		}
	}
	return false
}

// FirstProgram 第一个真实节目（program_number非0）
func (pat *Pat) FirstProgram() (PatProgramElement, bool) {
	for _, ppe := range pat.Ppes {
		if ppe.Pn != 0 {
			return ppe, true
		}
	}
	return PatProgramElement{}, false
}

// Equal 内容相同的PAT不重复通知上层
func (pat *Pat) Equal(other *Pat) bool {
	if other == nil || len(pat.Ppes) != len(other.Ppes) {
		return false
	}
	if pat.Tsi != other.Tsi {
		return false
	}
	for i := range pat.Ppes {
		if pat.Ppes[i] != other.Ppes[i] {
			return false
		}
	}
	return true
}
