// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/reverse"
)

// ----- 造测试码流用的小工具 ---------------------------------------------------

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

// baseline SPS：sps_id=0, log2_max_frame_num=4, poc_type=2, frame_mbs_only=1
func testSps() []byte {
	b := newBitBuf()
	b.writeUe(0) // seq_parameter_set_id
	b.writeUe(0) // log2_max_frame_num_minus4
	b.writeUe(2) // pic_order_cnt_type
	b.writeUe(0) // max_num_ref_frames
	b.writeBits(1, 0)
	b.writeUe(0) // pic_width_in_mbs_minus1
	b.writeUe(0) // pic_height_in_map_units_minus1
	b.writeBits(1, 1) // frame_mbs_only_flag
	return append([]byte{0x67, 0x42, 0x00, 0x1e}, b.bytes()...)
}

func testPps() []byte {
	b := newBitBuf()
	b.writeUe(0)      // pic_parameter_set_id
	b.writeUe(0)      // seq_parameter_set_id
	b.writeBits(1, 0) // entropy_coding_mode_flag
	b.writeBits(1, 0) // bottom_field_pic_order_in_frame_present_flag
	return append([]byte{0x68}, b.bytes()...)
}

// 一个slice NAL。idr决定nal_unit_type，sliceType/frameNum进slice header
func testSlice(idr bool, sliceType uint32, frameNum uint32) []byte {
	b := newBitBuf()
	b.writeUe(0)         // first_mb_in_slice
	b.writeUe(sliceType) // slice_type
	b.writeUe(0)         // pic_parameter_set_id
	b.writeBits(4, frameNum)
	if idr {
		b.writeUe(0) // idr_pic_id
	}
	b.writeBits(8, 0xaa) // 随便一点slice data
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

func newTestContext(stream []byte) *Context {
	return NewContext(es.NewUnitScanner(es.NewFileSource(bytes.NewReader(stream))))
}

// ----- 正式的测试 -------------------------------------------------------------

func TestParseSps(t *testing.T) {
	sps, err := ParseSps(testSps())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(66), sps.ProfileIdc)
	assert.Equal(t, uint32(0), sps.SpsId)
	assert.Equal(t, uint32(4), sps.Log2MaxFrameNum)
	assert.Equal(t, uint32(2), sps.PicOrderCntType)
	assert.Equal(t, uint8(1), sps.FrameMbsOnlyFlag)
}

func TestParsePps(t *testing.T) {
	pps, err := ParsePps(testPps())
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0), pps.PpsId)
	assert.Equal(t, uint32(0), pps.SpsId)
}

func TestNalu2Rbsp(t *testing.T) {
	in := []byte{0x65, 0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x03}
	out := Nalu2Rbsp(in)
	assert.Equal(t, []byte{0x65, 0x00, 0x00, 0x01, 0x00, 0x00, 0x03}, out)
}

func TestSliceTypes(t *testing.T) {
	assert.Equal(t, SliceTypeI, NormalizeSliceType(2))
	assert.Equal(t, SliceTypeI, NormalizeSliceType(7))
	assert.Equal(t, SliceTypeP, NormalizeSliceType(5))
	assert.Equal(t, "I", SliceTypeReadable(7))
}

func TestAccessUnitBoundary(t *testing.T) {
	stream := annexb(
		testSps(),
		testPps(),
		testSlice(true, 7, 0),  // IDR
		testSlice(false, 5, 1), // P
		testSlice(false, 5, 2), // P
	)
	ctx := newTestContext(stream)

	au1, err := ctx.NextAccessUnit()
	assert.Equal(t, nil, err)
	assert.IsNotNil(t, au1.PrimaryStart)
	assert.Equal(t, NaluTypeIdrSlice, au1.PrimaryStart.Type)
	assert.Equal(t, true, au1.AllSlicesI())
	// SPS和PPS归属第一个AU
	assert.Equal(t, 3, len(au1.Units))

	au2, err := ctx.NextAccessUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, NaluTypeSlice, au2.PrimaryStart.Type)
	assert.Equal(t, false, au2.AllSlicesI())
	assert.Equal(t, true, au2.AllSlicesIOrP())

	au3, err := ctx.NextAccessUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(2), au3.PrimaryStart.Slice.FrameNum)

	_, err = ctx.NextAccessUnit()
	assert.Equal(t, io.EOF, err)
}

func TestAccessUnitAud(t *testing.T) {
	aud := []byte{0x09, 0x10}
	stream := annexb(
		testSps(),
		testPps(),
		aud,
		testSlice(true, 7, 0),
		aud,
		testSlice(false, 5, 1),
	)
	ctx := newTestContext(stream)

	au1, err := ctx.NextAccessUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(au1.Units)) // SPS PPS AUD IDR
	assert.Equal(t, NaluTypeIdrSlice, au1.PrimaryStart.Type)

	au2, err := ctx.NextAccessUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(au2.Units)) // AUD P
}

func TestParamDict(t *testing.T) {
	stream := annexb(
		testSps(),
		testPps(),
		testSlice(true, 7, 0),
	)
	ctx := newTestContext(stream)
	for {
		if _, err := ctx.NextAccessUnit(); err != nil {
			break
		}
	}
	assert.Equal(t, 1, len(ctx.SpsRecords))
	assert.Equal(t, 1, len(ctx.PpsRecords))

	// 记下的位置回读出来的就是SPS unit本身的字节
	src := es.NewFileSource(bytes.NewReader(annexb(testSps(), testPps(), testSlice(true, 7, 0))))
	rec := ctx.SpsRecords[0]
	data, err := es.ReadData(src, rec.Posn, rec.Length)
	assert.Equal(t, nil, err)
	assert.Equal(t, append([]byte{0x00, 0x00, 0x01}, testSps()...), data)
}

func TestRememberReverse(t *testing.T) {
	stream := annexb(
		testSps(),
		testPps(),
		testSlice(true, 7, 0),  // IDR -> 收
		testSlice(false, 5, 1), // P -> 不收
		testSlice(false, 7, 2), // 全I -> 收
	)
	ctx := newTestContext(stream)
	ctx.Reverse = reverse.NewData(true)
	for {
		if _, err := ctx.NextAccessUnit(); err != nil {
			break
		}
	}
	assert.Equal(t, 2, ctx.Reverse.Length())
	assert.Equal(t, reverse.KindIdr, ctx.Reverse.Entries[0].Kind)
	assert.Equal(t, reverse.KindAllI, ctx.Reverse.Entries[1].Kind)
}
