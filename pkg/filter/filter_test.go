// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package filter

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/tstoolbox/pkg/avc"
	"github.com/q191201771/tstoolbox/pkg/es"
)

type bitBuf struct {
	bw   nazabits.BitWriter
	buf  []byte
	bits int
}

func newBitBuf() *bitBuf {
	buf := make([]byte, 64)
	return &bitBuf{
		bw:  nazabits.NewBitWriter(buf),
		buf: buf,
	}
}

func (b *bitBuf) writeBits(n uint, v uint32) {
	for i := int(n) - 1; i >= 0; i-- {
		b.bw.WriteBit(uint8((v >> uint(i)) & 1))
	}
	b.bits += int(n)
}

func (b *bitBuf) writeUe(v uint32) {
	lead := uint(0)
	for (uint32(1) << (lead + 1)) <= v+1 {
		lead++
	}
	b.writeBits(lead, 0)
	b.writeBits(lead+1, v+1)
}

func (b *bitBuf) bytes() []byte {
	n := (b.bits + 7) / 8
	return b.buf[:n]
}

func testSps() []byte {
	b := newBitBuf()
	b.writeUe(0)
	b.writeUe(0)
	b.writeUe(2)
	b.writeUe(0)
	b.writeBits(1, 0)
	b.writeUe(0)
	b.writeUe(0)
	b.writeBits(1, 1)
	return append([]byte{0x67, 0x42, 0x00, 0x1e}, b.bytes()...)
}

func testPps() []byte {
	b := newBitBuf()
	b.writeUe(0)
	b.writeUe(0)
	b.writeBits(1, 0)
	b.writeBits(1, 0)
	return append([]byte{0x68}, b.bytes()...)
}

func testSlice(idr bool, sliceType uint32, frameNum uint32) []byte {
	b := newBitBuf()
	b.writeUe(0)
	b.writeUe(sliceType)
	b.writeUe(0)
	b.writeBits(4, frameNum)
	if idr {
		b.writeUe(0)
	}
	b.writeBits(8, 0xaa)
	header := byte(0x41)
	if idr {
		header = 0x65
	}
	return append([]byte{header}, b.bytes()...)
}

func annexb(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0x00, 0x00, 0x01)
		out = append(out, n...)
	}
	return out
}

// IDR P P P I P P P IDR P，freq=4时应该留下0、4、8三帧
func TestH264RateSelect(t *testing.T) {
	stream := annexb(
		testSps(),
		testPps(),
		testSlice(true, 7, 0),  // 0 IDR
		testSlice(false, 5, 1), // 1 P
		testSlice(false, 5, 2), // 2 P
		testSlice(false, 5, 3), // 3 P
		testSlice(false, 7, 4), // 4 I（全I的非IDR）
		testSlice(false, 5, 5), // 5 P
		testSlice(false, 5, 6), // 6 P
		testSlice(false, 5, 7), // 7 P
		testSlice(true, 7, 0),  // 8 IDR
		testSlice(false, 5, 1), // 9 P
	)
	ctx := avc.NewContext(es.NewUnitScanner(es.NewFileSource(bytes.NewReader(stream))))
	f := &H264Filter{
		Ctx:  ctx,
		Mode: ModeRate,
		Freq: 4,
	}
	f.Reset()

	var keptTypes []uint8
	for {
		frame, _, err := f.NextFilteredFrame()
		if err != nil {
			assert.Equal(t, io.EOF, err)
			break
		}
		if frame == nil {
			// 重放指令，这条流里不应该出现
			t.Fatal("unexpected repeat directive")
		}
		keptTypes = append(keptTypes, frame.PrimaryStart.Type)
	}

	assert.Equal(t, 3, len(keptTypes))
	assert.Equal(t, avc.NaluTypeIdrSlice, keptTypes[0])
	assert.Equal(t, avc.NaluTypeSlice, keptTypes[1])
	assert.Equal(t, avc.NaluTypeIdrSlice, keptTypes[2])
}

// strip模式P帧永远不留，除非allref
func TestH264Strip(t *testing.T) {
	stream := annexb(
		testSps(),
		testPps(),
		testSlice(true, 7, 0),
		testSlice(false, 5, 1),
		testSlice(false, 7, 2),
		testSlice(false, 5, 3),
	)
	ctx := avc.NewContext(es.NewUnitScanner(es.NewFileSource(bytes.NewReader(stream))))
	f := &H264Filter{
		Ctx:  ctx,
		Mode: ModeStrip,
	}
	f.Reset()

	var kept int
	for {
		frame, _, err := f.NextStrippedFrame()
		if err != nil {
			break
		}
		assert.Equal(t, true, frame.PrimaryStart.Type == avc.NaluTypeIdrSlice || frame.AllSlicesI())
		kept++
	}
	assert.Equal(t, 2, kept) // IDR和全I那帧
}
