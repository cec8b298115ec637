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

// Assembler 单个PID的PES重组
//
// 状态机：{Idle, Open}
// Idle + PUSI  -> Open 记下包首位置，开始攒数据
// Open + 非PUSI -> Open 追加
// Open + PUSI  -> 交付旧包，开始新包
// EOF          -> 交付未完的包
//
// 声明长度为0的包（视频流允许）只能靠下一个PUSI或EOF闭合
//
type Assembler struct {
	Pid uint16

	open           bool
	buf            []byte
	posn           int64
	warnedOverflow bool
}

func NewAssembler(pid uint16) *Assembler {
	return &Assembler{
		Pid: pid,
	}
}

// Feed 喂入一个TS包的payload
//
// @param posn 该TS包首字节的输入流位置，作为新开PES包的Posn
//
// @return 本次闭合的PES包，0到2个（PUSI既闭合旧包，新包又可能一个包就收齐）
//
func (a *Assembler) Feed(pusi bool, payload []byte, posn int64) (completed []*Packet) {
	if pusi {
		if pkt := a.Flush(); pkt != nil {
			completed = append(completed, pkt)
		}
		a.open = true
		a.posn = posn
		a.buf = append(a.buf[0:0], payload...)
	} else {
		if !a.open {
			return
		}
		a.buf = append(a.buf, payload...)
	}

	// 声明了长度的包，收齐即闭合，多出来的字节截掉
	if total := a.declaredTotal(); total > 0 && len(a.buf) >= total {
		if len(a.buf) > total && !a.warnedOverflow {
			nazalog.Warnf("pes packet overflows declared length, truncated. pid=%d, declared=%d, got=%d", a.Pid, total, len(a.buf))
			a.warnedOverflow = true
		}
		a.buf = a.buf[:total]
		if pkt := a.Flush(); pkt != nil {
			completed = append(completed, pkt)
		}
	}
	return
}

// Flush EOF时调用，交付未闭合的包
func (a *Assembler) Flush() *Packet {
	if !a.open {
		return nil
	}
	a.open = false
	if len(a.buf) < 6 {
		if len(a.buf) > 0 {
			nazalog.Warnf("discard pes fragment shorter than header. pid=%d, len=%d", a.Pid, len(a.buf))
		}
		return nil
	}
	// buf会被下一个包复用，交付出去的数据必须独立
	b := make([]byte, len(a.buf))
	copy(b, a.buf)
	pkt, err := ParsePacket(b, a.posn, false)
	if err != nil {
		nazalog.Warnf("parse pes packet failed. pid=%d, posn=%d, err=%+v", a.Pid, a.posn, err)
		return nil
	}
	return pkt
}

// Reset seek之后丢弃攒了一半的数据
func (a *Assembler) Reset() {
	a.open = false
	a.buf = a.buf[0:0]
}

func (a *Assembler) declaredTotal() int {
	if len(a.buf) < 6 {
		return 0
	}
	length := int(a.buf[4])<<8 | int(a.buf[5])
	if length == 0 {
		return 0
	}
	return 6 + length
}
