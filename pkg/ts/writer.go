// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"io"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// Frame 一段要打包成TS的PES数据
//
type Frame struct {
	Pts uint64 // 90kHz，无效时HasPts为false
	Dts uint64
	Pcr uint64 // 27MHz，写入帧首个TS包的adaptation field

	HasPts bool
	HasDts bool
	HasPcr bool

	Pid uint16
	Sid uint8 // stream_id of PES Header

	RandomAccess bool

	// AnnexB或其他裸ES数据，整帧作为一个PES packet
	Raw []byte
}

// Writer 把PES帧和PSI打包成188字节TS包序列写入sink
//
// 每个PID独立维护continuity_counter
//
type Writer struct {
	w  io.Writer
	cc map[uint16]uint8
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:  w,
		cc: make(map[uint16]uint8),
	}
}

// WriteFrame 一帧打成一个PES packet，尾部不足188字节用adaptation field填充
func (tw *Writer) WriteFrame(frame *Frame) error {
	cc := tw.cc[frame.Pid]

	lpos := 0
	rpos := len(frame.Raw)
	first := true

	packet := make([]byte, PacketSize)

	for first || lpos != rpos {
		wpos := 0
		cc = (cc + 1) & 0x0f

		// -----TS Header----------------
		// sync_byte
		// transport_error_indicator    0
		// payload_unit_start_indicator if first then 1; else then 0;
		// transport_priority           0
		// PID
		// transport_scrambling_control 0
		// adaptation_field_control
		// continuity_counter
		// ------------------------------
		packet[0] = syncByte
		packet[1] = 0x0
		if first {
			packet[1] = 0x40
		}
		packet[1] |= uint8((frame.Pid >> 8) & 0x1F)
		packet[2] = uint8(frame.Pid & 0xFF)
		packet[3] = 0x10 | cc
		wpos += 4

		if first {
			if frame.HasPcr || frame.RandomAccess {
				// -----Adaptation-----------------------
				// adaptation_field_length
				// discontinuity_indicator              0
				// random_access_indicator
				// elementary_stream_priority_indicator 0
				// PCR_flag
				// OPCR_flag                            0
				// splicing_point_flag                  0
				// transport_private_data_flag          0
				// adaptation_field_extension_flag      0
				// program_clock_reference_base
				// reserved
				// program_clock_reference_extension
				// --------------------------------------
				packet[3] |= 0x20
				flags := uint8(0)
				if frame.RandomAccess {
					flags |= 0x40
				}
				if frame.HasPcr {
					flags |= 0x10
					packet[4] = 7
					packet[5] = flags
					packPcr(packet[6:], frame.Pcr)
					wpos += 8
				} else {
					packet[4] = 1
					packet[5] = flags
					wpos += 2
				}
			}

			// -----PES Header------------
			// packet_start_code_prefix
			// stream_id
			// PES_packet_length
			// '10' + 其余标志位全0
			// PTS_DTS_flags
			// PES_header_data_length
			// ---------------------------
			packet[wpos] = 0x00
			packet[wpos+1] = 0x00
			packet[wpos+2] = 0x01
			packet[wpos+3] = frame.Sid
			wpos += 4

			headerSize := uint8(0)
			flags := uint8(0)
			if frame.HasPts {
				headerSize += 5
				flags |= 0x80
			}
			if frame.HasDts && frame.Dts != frame.Pts {
				headerSize += 5
				flags |= 0x40
			}

			pesSize := rpos + int(headerSize) + 3
			if pesSize > 0xFFFF {
				// 视频流允许声明长度为0
				pesSize = 0
			}

			packet[wpos] = uint8(pesSize >> 8)
			packet[wpos+1] = uint8(pesSize & 0xFF)
			packet[wpos+2] = 0x80
			packet[wpos+3] = flags
			packet[wpos+4] = headerSize
			wpos += 5

			if flags&0x80 != 0 {
				packPts(packet[wpos:], flags>>6, frame.Pts)
				wpos += 5
			}
			if flags&0x40 != 0 {
				packPts(packet[wpos:], 1, frame.Dts)
				wpos += 5
			}

			first = false
		}

		bodySize := PacketSize - wpos
		inSize := rpos - lpos

		if bodySize <= inSize {
			copy(packet[wpos:], frame.Raw[lpos:lpos+bodySize])
			lpos += bodySize
		} else {
			// 数据不够填满这个包，真实数据挪最后，中间用adaptation field的0xFF补齐
			stuffSize := bodySize - inSize

			if packet[3]&0x20 != 0 {
				base := int(4 + 1 + packet[4])
				if wpos > base {
					copy(packet[base+stuffSize:], packet[base:wpos])
				}
				wpos += stuffSize
				packet[4] += uint8(stuffSize)
				for i := 0; i < stuffSize; i++ {
					packet[base+i] = 0xFF
				}
			} else {
				packet[3] |= 0x20
				base := 4
				if wpos > base {
					copy(packet[base+stuffSize:], packet[base:wpos])
				}
				wpos += stuffSize
				packet[4] = uint8(stuffSize - 1)
				if stuffSize >= 2 {
					packet[5] = 0
					for i := 0; i < stuffSize-2; i++ {
						packet[6+i] = 0xFF
					}
				}
			}

			copy(packet[wpos:], frame.Raw[lpos:rpos])
			lpos = rpos
		}

		if _, err := tw.w.Write(packet); err != nil {
			return err
		}
	}

	tw.cc[frame.Pid] = cc
	return nil
}

// WriteProgramData 写出一对PAT和PMT
func (tw *Writer) WriteProgramData(tsid uint16, programNumber uint16, pmtPid uint16, pcrPid uint16, elements []PmtProgramElement) error {
	if err := tw.WritePat(tsid, programNumber, pmtPid); err != nil {
		return err
	}
	return tw.WritePmt(pmtPid, programNumber, pcrPid, elements)
}

// WritePat 单节目PAT，独占一个TS包
func (tw *Writer) WritePat(tsid uint16, programNumber uint16, pmtPid uint16) error {
	section := make([]byte, 12+4)
	bw := nazabits.NewBitWriter(section)
	tw.writeSectionHeader(&bw, TableIdPat, tsid, 4)
	bw.WriteBits16(16, programNumber)
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, pmtPid)
	bele.BePutUint32(section[12:], CalcCrc32(0xffffffff, section[:12]))
	return tw.writeSection(PidPat, section)
}

// WritePmt 单节目PMT，独占一个TS包
func (tw *Writer) WritePmt(pmtPid uint16, programNumber uint16, pcrPid uint16, elements []PmtProgramElement) error {
	bodyLen := 4
	for _, e := range elements {
		bodyLen += 5 + len(e.EsInfo)
	}
	section := make([]byte, 8+bodyLen+4)
	bw := nazabits.NewBitWriter(section)
	tw.writeSectionHeader(&bw, TableIdPmt, programNumber, uint16(bodyLen))
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, pcrPid)
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, 0)
	for _, e := range elements {
		bw.WriteBits8(8, e.StreamType)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, e.Pid)
		bw.WriteBits8(4, 0xff)
		bw.WriteBits16(12, uint16(len(e.EsInfo)))
		for _, b := range e.EsInfo {
			bw.WriteBits8(8, b)
		}
	}
	bele.BePutUint32(section[8+bodyLen:], CalcCrc32(0xffffffff, section[:8+bodyLen]))
	return tw.writeSection(pmtPid, section)
}

// table_id + section_length + 固定语法段，bodyLen是固定语法段之后、CRC之前的长度（PMT含PCR_PID和program_info_length这4字节）
func (tw *Writer) writeSectionHeader(bw *nazabits.BitWriter, tableId uint8, idExt uint16, bodyLen uint16) {
	bw.WriteBits8(8, tableId)
	bw.WriteBit(1) // section_syntax_indicator
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits16(12, 5+bodyLen+4)
	bw.WriteBits16(16, idExt)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, 0) // version_number
	bw.WriteBit(1)      // current_next_indicator
	bw.WriteBits8(8, 0)
	bw.WriteBits8(8, 0)
}

// section前加pointer_field，一个TS包装下，尾部填0xFF
func (tw *Writer) writeSection(pid uint16, section []byte) error {
	if 4+1+len(section) > PacketSize {
		return ErrTs
	}
	cc := tw.cc[pid]
	cc = (cc + 1) & 0x0f
	tw.cc[pid] = cc

	packet := make([]byte, PacketSize)
	packet[0] = syncByte
	packet[1] = 0x40 | uint8((pid>>8)&0x1F)
	packet[2] = uint8(pid & 0xFF)
	packet[3] = 0x10 | cc
	packet[4] = 0x00 // pointer_field
	n := copy(packet[5:], section)
	for i := 5 + n; i < PacketSize; i++ {
		packet[i] = 0xFF
	}
	_, err := tw.w.Write(packet)
	return err
}

func packPcr(out []byte, pcr uint64) {
	base := pcr / 300
	ext := pcr % 300
	out[0] = uint8(base >> 25)
	out[1] = uint8(base >> 17)
	out[2] = uint8(base >> 9)
	out[3] = uint8(base >> 1)
	out[4] = uint8(base<<7) | 0x7e | uint8(ext>>8)
	out[5] = uint8(ext)
}

// 注意，除PTS外，DTS也使用这个函数打包
func packPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | ((uint8(pts>>30) & 0x07) << 1) | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}
