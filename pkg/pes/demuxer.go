// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pes

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

// DemuxResult 一次NextData的产物，最多一项非空
type DemuxResult struct {
	Pat *ts.Pat
	Pmt *ts.Pmt
	Pes *Packet
	Pid uint16 // Pes所属的elementary PID
}

// Demuxer TS解复用：PSI重组 + 按PID的PES重组
//
// 单线程同步驱动，上层循环调NextData把数据拉出来
//
type Demuxer struct {
	pr *ts.PacketReader

	patAsm *ts.SectionAssembler
	pmtAsm map[uint16]*ts.SectionAssembler

	pat *ts.Pat
	pmt *ts.Pmt

	// 选中的节目，0表示用PAT里的第一个
	programNumber uint16

	assemblers map[uint16]*Assembler

	// 只交付视频PES（倒放收集阶段用）
	videoOnly bool
	videoPid  uint16

	pending []*DemuxResult

	// 读这么多个TS包后停（0表示不限）
	maxPackets int64

	eof bool
}

type DemuxerOption struct {
	ProgramNumber uint16
	VideoOnly     bool
	MaxPackets    int64
}

func NewDemuxer(pr *ts.PacketReader, modOptions ...func(option *DemuxerOption)) *Demuxer {
	var option DemuxerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	return &Demuxer{
		pr:            pr,
		patAsm:        ts.NewSectionAssembler(ts.PidPat),
		pmtAsm:        make(map[uint16]*ts.SectionAssembler),
		assemblers:    make(map[uint16]*Assembler),
		programNumber: option.ProgramNumber,
		videoOnly:     option.VideoOnly,
		maxPackets:    option.MaxPackets,
	}
}

// Pat 已解析出的PAT，可能为nil
func (d *Demuxer) Pat() *ts.Pat { return d.pat }

// Pmt 选中节目的PMT，可能为nil
func (d *Demuxer) Pmt() *ts.Pmt { return d.pmt }

// VideoPid 选中节目的第一条视频流PID，没有则为PidNull
func (d *Demuxer) VideoPid() uint16 {
	if d.videoPid == 0 {
		return ts.PidNull
	}
	return d.videoPid
}

func (d *Demuxer) Reader() *ts.PacketReader { return d.pr }

// NextData 取下一项解出的数据
//
// PAT/PMT只在内容变化时产出一次，正常结束返回io.EOF
//
func (d *Demuxer) NextData() (*DemuxResult, error) {
	for {
		if len(d.pending) > 0 {
			r := d.pending[0]
			d.pending = d.pending[1:]
			return r, nil
		}
		if d.eof {
			return nil, io.EOF
		}
		if err := d.step(); err != nil {
			if err == io.EOF {
				d.eof = true
				d.flushAll()
				continue
			}
			return nil, err
		}
	}
}

// NextPes 跳过PSI，只取PES
func (d *Demuxer) NextPes() (*Packet, error) {
	for {
		r, err := d.NextData()
		if err != nil {
			return nil, err
		}
		if r.Pes != nil {
			return r.Pes, nil
		}
	}
}

// Seek 定位到posn（TS包边界），重新从那里解析PES
//
// PSI结果保留，半截PES丢弃
//
func (d *Demuxer) Seek(posn int64) error {
	if !d.pr.Seekable() {
		return ErrPes
	}
	if err := d.pr.Seek(posn); err != nil {
		return err
	}
	for _, a := range d.assemblers {
		a.Reset()
	}
	d.pending = d.pending[0:0]
	d.eof = false
	return nil
}

func (d *Demuxer) Seekable() bool {
	return d.pr.Seekable()
}

// 消费一个TS包
func (d *Demuxer) step() error {
	if d.maxPackets > 0 && d.pr.Count() >= d.maxPackets {
		return io.EOF
	}
	pkt, err := d.pr.Next()
	if err != nil {
		return err
	}
	h := &pkt.Header
	if h.Err == 1 || !h.HasPayload() {
		return nil
	}
	pusi := h.PayloadUnitStart == 1

	if h.Pid == ts.PidPat {
		for _, section := range d.patAsm.Feed(pusi, pkt.Payload) {
			d.onPatSection(section)
		}
		return nil
	}

	if asm, ok := d.pmtAsm[h.Pid]; ok {
		for _, section := range asm.Feed(pusi, pkt.Payload) {
			d.onPmtSection(section)
		}
		return nil
	}

	if asm, ok := d.assemblers[h.Pid]; ok {
		for _, p := range asm.Feed(pusi, pkt.Payload, pkt.Posn) {
			d.pending = append(d.pending, &DemuxResult{Pes: p, Pid: h.Pid})
		}
	}
	return nil
}

func (d *Demuxer) onPatSection(section []byte) {
	pat, err := ts.ParsePat(section)
	if err != nil {
		nazalog.Warnf("parse pat failed. err=%+v", err)
		return
	}
	if pat.Tid != ts.TableIdPat {
		return
	}
	if d.pat != nil && pat.Equal(d.pat) {
		return
	}
	d.pat = &pat

	// 挑出要跟踪的PMT PID
	var target ts.PatProgramElement
	var ok bool
	if d.programNumber != 0 {
		for _, ppe := range pat.Ppes {
			if ppe.Pn == d.programNumber {
				target = ppe
				ok = true
				break
			}
		}
	} else {
		target, ok = pat.FirstProgram()
	}
	if ok {
		if _, exist := d.pmtAsm[target.PmPid]; !exist {
			d.pmtAsm[target.PmPid] = ts.NewSectionAssembler(target.PmPid)
		}
	}
	d.pending = append(d.pending, &DemuxResult{Pat: d.pat})
}

func (d *Demuxer) onPmtSection(section []byte) {
	pmt, err := ts.ParsePmt(section)
	if err != nil {
		nazalog.Warnf("parse pmt failed. err=%+v", err)
		return
	}
	if pmt.Tid != ts.TableIdPmt {
		return
	}
	if d.pmt != nil && pmt.Equal(d.pmt) {
		return
	}
	d.pmt = &pmt

	for _, ppe := range pmt.ProgramElements {
		if ts.IsVideoStreamType(ppe.StreamType) && d.videoPid == 0 {
			d.videoPid = ppe.Pid
		}
		if d.videoOnly && !ts.IsVideoStreamType(ppe.StreamType) {
			continue
		}
		if _, exist := d.assemblers[ppe.Pid]; !exist {
			d.assemblers[ppe.Pid] = NewAssembler(ppe.Pid)
		}
	}
	d.pending = append(d.pending, &DemuxResult{Pmt: d.pmt})
}

func (d *Demuxer) flushAll() {
	for pid, a := range d.assemblers {
		if p := a.Flush(); p != nil {
			d.pending = append(d.pending, &DemuxResult{Pes: p, Pid: pid})
		}
	}
}
