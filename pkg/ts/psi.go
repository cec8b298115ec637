// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"github.com/q191201771/naza/pkg/nazalog"
)

// table_id
const (
	TableIdPat uint8 = 0x00
	TableIdPmt uint8 = 0x02
)

// SectionAssembler 把跨TS包的PSI section数据拼起来
//
// 状态机：{Idle, Collecting}
// Idle + PUSI        -> Collecting 跳过pointer_field，开始新section
// Collecting + 非PUSI -> Collecting 追加数据
// Collecting + PUSI   -> 告警，丢弃半截section，开始新section
// 收满length+3字节    -> 校验CRC并交付，回到Idle
//
type SectionAssembler struct {
	Pid uint16

	collecting bool
	length     int // section_length，收齐前3字节后已知，未知时为-1
	buf        []byte
}

func NewSectionAssembler(pid uint16) *SectionAssembler {
	return &SectionAssembler{
		Pid:    pid,
		length: -1,
	}
}

// Feed 喂入一个TS包的payload
//
// 返回该包内收齐的完整section（可能有多个，CRC已通过校验）
//
func (sa *SectionAssembler) Feed(pusi bool, payload []byte) (sections [][]byte) {
	if len(payload) == 0 {
		return
	}
	if pusi {
		pointer := int(payload[0])
		if 1+pointer > len(payload) {
			nazalog.Warnf("psi pointer field out of range. pid=%d, pointer=%d", sa.Pid, pointer)
			sa.reset()
			return
		}
		if sa.collecting {
			// 前一个section还没收完，新的又来了
			nazalog.Warnf("psi section interrupted by new section. pid=%d, have=%d, want=%d", sa.Pid, len(sa.buf), sa.length+3)
			sa.reset()
		}
		sa.collecting = true
		payload = payload[1+pointer:]
	} else if !sa.collecting {
		return
	}

	sa.buf = append(sa.buf, payload...)

	for sa.collecting {
		if sa.length < 0 {
			if len(sa.buf) < 3 {
				return
			}
			sa.length = int(sa.buf[1]&0x0f)<<8 | int(sa.buf[2])
		}
		total := sa.length + 3
		if len(sa.buf) < total {
			return
		}
		section := make([]byte, total)
		copy(section, sa.buf[:total])
		rest := sa.buf[total:]

		if ValidateSectionCrc32(section) {
			sections = append(sections, section)
		} else {
			nazalog.Warnf("psi section crc32 mismatch, dropped. pid=%d, table_id=%d, length=%d", sa.Pid, section[0], sa.length)
		}

		// 同一包里可能还跟着下一个section（table_id 0xFF开始的是填充）
		sa.reset()
		if len(rest) > 0 && rest[0] != 0xff {
			sa.collecting = true
			sa.buf = append(sa.buf, rest...)
		}
	}
	return
}

func (sa *SectionAssembler) reset() {
	sa.collecting = false
	sa.length = -1
	sa.buf = sa.buf[0:0]
}
