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
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

// 节目1，PMT PID 0x66，CRC是按附录A的多项式算出来的
var patSection = []byte{
	0x00, 0xB0, 0x0D, 0x00, 0x01, 0xC1, 0x00, 0x00,
	0x00, 0x01, 0xE0, 0x66, 0x8C, 0xC3, 0x14, 0x84,
}

// PCR PID 0x68，一条流：stream_type 0x1B，PID 0x68
var pmtSection = []byte{
	0x02, 0xB0, 0x12, 0x00, 0x01, 0xC1, 0x00, 0x00,
	0xE0, 0x68, 0xF0, 0x00, 0x1B, 0xE0, 0x68, 0xF0, 0x00,
	0x4D, 0x37, 0x83, 0xC2,
}

func TestCrc32(t *testing.T) {
	assert.Equal(t, true, ValidateSectionCrc32(patSection))
	assert.Equal(t, true, ValidateSectionCrc32(pmtSection))

	bad := make([]byte, len(patSection))
	copy(bad, patSection)
	bad[4] ^= 0x01
	assert.Equal(t, false, ValidateSectionCrc32(bad))
}

func TestParsePat(t *testing.T) {
	pat, err := ParsePat(patSection)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pat.Tsi)
	assert.Equal(t, 1, len(pat.Ppes))
	assert.Equal(t, uint16(1), pat.Ppes[0].Pn)
	assert.Equal(t, uint16(0x66), pat.Ppes[0].PmPid)
	assert.Equal(t, true, pat.SearchPid(0x66))
	assert.Equal(t, false, pat.SearchPid(0x67))
}

func TestParsePmt(t *testing.T) {
	pmt, err := ParsePmt(pmtSection)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pmt.Pn)
	assert.Equal(t, uint16(0x68), pmt.PcrPid)
	assert.Equal(t, 1, len(pmt.ProgramElements))
	assert.Equal(t, StreamTypeAvc, pmt.ProgramElements[0].StreamType)
	assert.Equal(t, uint16(0x68), pmt.ProgramElements[0].Pid)
	assert.Equal(t, "H.264 video", StreamTypeName(pmt.ProgramElements[0].StreamType, nil))
}

func TestSectionAssemblerSplit(t *testing.T) {
	sa := NewSectionAssembler(PidPat)

	// pointer byte + section前半
	payload1 := append([]byte{0x00}, patSection[:6]...)
	sections := sa.Feed(true, payload1)
	assert.Equal(t, 0, len(sections))

	// 后半
	sections = sa.Feed(false, patSection[6:])
	assert.Equal(t, 1, len(sections))
	assert.Equal(t, patSection, sections[0])
}

func TestSectionAssemblerSpuriousPusi(t *testing.T) {
	sa := NewSectionAssembler(PidPat)

	// 只给前半就来了新的PUSI，半截的丢掉，新的照常收
	sections := sa.Feed(true, append([]byte{0x00}, patSection[:6]...))
	assert.Equal(t, 0, len(sections))

	sections = sa.Feed(true, append([]byte{0x00}, patSection...))
	assert.Equal(t, 1, len(sections))
	assert.Equal(t, patSection, sections[0])
}

func TestSectionAssemblerBadCrc(t *testing.T) {
	sa := NewSectionAssembler(PidPat)
	bad := make([]byte, len(patSection))
	copy(bad, patSection)
	bad[9] ^= 0xff
	sections := sa.Feed(true, append([]byte{0x00}, bad...))
	assert.Equal(t, 0, len(sections))
}

func TestWriterProgramData(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)
	err := tw.WriteProgramData(DefaultTsid, DefaultProgramNumber, DefaultPidPmt, DefaultPidVideo,
		[]PmtProgramElement{{StreamType: StreamTypeAvc, Pid: DefaultPidVideo}})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2*PacketSize, buf.Len())

	out := buf.Bytes()

	// 写出的PAT再解回来
	h := ParsePacketHeader(out)
	assert.Equal(t, uint8(0x47), h.Sync)
	assert.Equal(t, PidPat, h.Pid)
	assert.Equal(t, uint8(1), h.PayloadUnitStart)

	sa := NewSectionAssembler(PidPat)
	sections := sa.Feed(true, out[4:PacketSize])
	assert.Equal(t, 1, len(sections))
	pat, err := ParsePat(sections[0])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(DefaultPidPmt), pat.Ppes[0].PmPid)

	// PMT
	h = ParsePacketHeader(out[PacketSize:])
	assert.Equal(t, DefaultPidPmt, h.Pid)
	sa = NewSectionAssembler(DefaultPidPmt)
	sections = sa.Feed(true, out[PacketSize+4:])
	assert.Equal(t, 1, len(sections))
	pmt, err := ParsePmt(sections[0])
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(DefaultPidVideo), pmt.PcrPid)
	assert.Equal(t, StreamTypeAvc, pmt.ProgramElements[0].StreamType)
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf)

	raw := make([]byte, 1000)
	for i := range raw {
		raw[i] = byte(i)
	}
	frame := &Frame{
		Pts:          90000,
		Dts:          90000,
		Pcr:          (90000 - 18000) * 300,
		HasPts:       true,
		HasPcr:       true,
		RandomAccess: true,
		Pid:          DefaultPidVideo,
		Sid:          0xe0,
		Raw:          raw,
	}
	err := tw.WriteFrame(frame)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, buf.Len()%PacketSize)

	out := buf.Bytes()
	var lastCc uint8
	var payload []byte
	for i := 0; i < len(out); i += PacketSize {
		packet := out[i : i+PacketSize]
		h := ParsePacketHeader(packet)
		assert.Equal(t, uint8(0x47), h.Sync)
		assert.Equal(t, DefaultPidVideo, h.Pid)
		if i == 0 {
			assert.Equal(t, uint8(1), h.PayloadUnitStart)
			// 首包的adaptation里有PCR
			a, err := ParsePacketAdaptation(packet[4:])
			assert.Equal(t, nil, err)
			assert.Equal(t, uint8(1), a.PcrFlag)
			assert.Equal(t, uint8(1), a.RandomAccess)
			assert.Equal(t, frame.Pcr, a.Pcr())
		} else {
			assert.Equal(t, uint8(0), h.PayloadUnitStart)
			assert.Equal(t, (lastCc+1)&0x0f, h.Cc)
		}
		lastCc = h.Cc

		index := 4
		if h.HasAdaptation() {
			a, _ := ParsePacketAdaptation(packet[4:])
			index += 1 + int(a.Length)
		}
		payload = append(payload, packet[index:]...)
	}

	// 掐头（PES header）对一下内容
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xe0}, payload[:4])
	phdl := int(payload[8])
	body := payload[9+phdl:]
	assert.Equal(t, raw, body)
}
