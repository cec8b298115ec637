// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package reverse

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

const (
	// 每输出这么多帧重发一轮PAT/PMT
	DefaultPsiInterval = 40

	// 合成PTS的步长按这个帧率算
	DefaultFrameRate = 25

	// PCR比PTS提前200ms
	pcrOffset90k = 18000
)

// Writer 把catalog里的锚点帧倒序写出去
//
// 输出ES时直接写字节；输出TS时每帧独立成一个PES包，
// PTS/DTS用合成的90kHz计数，PCR写在帧首个TS包里
//
type Writer struct {
	Src  es.ByteSource
	Data *Data

	// 近似每Freq帧留一帧，0表示全部锚点都输出
	Freq int

	// 二选一
	EsOut    io.Writer
	TsWriter *ts.Writer

	// TS输出的参数
	VideoPid   uint16
	StreamId   uint8
	StreamType uint8
	Tsid       uint16
	ProgramNum uint16
	PmtPid     uint16

	FrameRate   int
	PtsBase     uint64
	PsiInterval int
}

func (w *Writer) asTs() bool {
	return w.TsWriter != nil
}

func (w *Writer) frameRate() int {
	if w.FrameRate <= 0 {
		return DefaultFrameRate
	}
	return w.FrameRate
}

func (w *Writer) psiInterval() int {
	if w.PsiInterval <= 0 {
		return DefaultPsiInterval
	}
	return w.PsiInterval
}

// WriteProgramData 输出一对PAT/PMT（仅TS模式）
func (w *Writer) WriteProgramData() error {
	if !w.asTs() {
		return nil
	}
	return w.TsWriter.WriteProgramData(w.Tsid, w.ProgramNum, w.PmtPid, w.VideoPid,
		[]ts.PmtProgramElement{{StreamType: w.StreamType, Pid: w.VideoPid}})
}

// WriteParamSets 把缓存的SPS/PPS按记下的位置回读并重发（H.264倒放的第一步）
func (w *Writer) WriteParamSets(records []ParamRecord) error {
	for _, rec := range records {
		data, err := es.ReadData(w.Src, rec.Posn, rec.Length)
		if err != nil {
			nazalog.Errorf("read parameter set %d data from %d/%d for %d failed. err=%+v",
				rec.Id, rec.Posn.Infile, rec.Posn.Inpacket, rec.Length, err)
			return err
		}
		if err = w.writePacketData(data, false, 0); err != nil {
			return err
		}
	}
	return nil
}

// ParamRecord 倒放前要重发的参数集落点，跟avc.Context里记的对应
type ParamRecord struct {
	Id     uint32
	Posn   es.Offset
	Length int
}

// OutputInReverse 倒序输出
//
// catalog里一个锚点帧都没有时返回ErrNoData（PSI可能已经发过了）
//
func (w *Writer) OutputInReverse() error {
	entries := w.Data.Entries

	pictures := 0
	for i := range entries {
		if !entries[i].SeqHdr {
			pictures++
		}
	}
	if pictures == 0 {
		return ErrNoData
	}

	written := 0
	lastSeqHdrWritten := -1
	// 倒着数的picture序号，freq按它算间隔
	ordinal := pictures
	lastKeptOrdinal := pictures + w.Freq // 让最后一个picture一定能选上

	for i := len(entries) - 1; i >= 0; i-- {
		e := &entries[i]
		if e.SeqHdr {
			continue
		}
		ordinal--

		if w.Freq > 0 && lastKeptOrdinal-ordinal < w.Freq {
			continue
		}

		// 这一帧用的sequence header变了的话先写它
		if hdrIdx := precedingSeqHdr(entries, i); hdrIdx >= 0 && hdrIdx != lastSeqHdrWritten {
			hdr := &entries[hdrIdx]
			data, err := es.ReadData(w.Src, hdr.Posn, hdr.Length)
			if err != nil {
				// 单条读不出来就跳过，别让整个倒放挂掉
				nazalog.Warnf("fetch sequence header at %d/%d failed, skipped. err=%+v",
					hdr.Posn.Infile, hdr.Posn.Inpacket, err)
			} else {
				// sequence header跟着它的I一起发，不占用一帧的时间戳
				if err = w.writePacketData(data, false, 0); err != nil {
					return err
				}
				lastSeqHdrWritten = hdrIdx
			}
		}

		data, err := es.ReadData(w.Src, e.Posn, e.Length)
		if err != nil {
			nazalog.Warnf("fetch frame %d at %d/%d failed, skipped. err=%+v",
				e.Index, e.Posn.Infile, e.Posn.Inpacket, err)
			continue
		}
		// 输出端出错是致命的，读帧出错才可跳过
		if err = w.writePacketData(data, true, written); err != nil {
			return err
		}
		written++

		if w.asTs() && written%w.psiInterval() == 0 {
			if err = w.WriteProgramData(); err != nil {
				return err
			}
		}

		lastKeptOrdinal = ordinal
		w.Data.FirstWritten = i
		w.Data.PicturesWritten++
	}
	return nil
}

// 往输出端写一段ES数据；TS模式包成独立的PES
func (w *Writer) writePacketData(data []byte, timed bool, n int) error {
	if !w.asTs() {
		_, err := w.EsOut.Write(data)
		return err
	}

	frame := &ts.Frame{
		Pid: w.VideoPid,
		Sid: w.StreamId,
		Raw: data,
	}
	if timed {
		step := uint64(90000 / w.frameRate())
		pts := w.PtsBase + uint64(n)*step
		frame.Pts = pts
		frame.Dts = pts
		frame.HasPts = true

		pcr := uint64(0)
		if pts > pcrOffset90k {
			pcr = pts - pcrOffset90k
		}
		frame.Pcr = pcr * 300
		frame.HasPcr = true
		frame.RandomAccess = true
	}
	return w.TsWriter.WriteFrame(frame)
}

// 离i最近的、位置在它前面的sequence header条目
func precedingSeqHdr(entries []Entry, i int) int {
	for j := i - 1; j >= 0; j-- {
		if entries[j].SeqHdr {
			return j
		}
	}
	return -1
}
