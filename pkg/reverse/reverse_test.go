// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package reverse

import (
	"bytes"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

// 七段假的"帧"数据铺在一个buffer里：seqh + 5个I + 没人引用的尾巴
var (
	segSeqHdr = []byte("SEQHDR|")
	segFrames = [][]byte{
		[]byte("FRAME00|"),
		[]byte("FRAME10|"),
		[]byte("FRAME20|"),
		[]byte("FRAME30|"),
		[]byte("FRAME40|"),
	}
)

func buildCatalog(t *testing.T) (*Data, es.ByteSource) {
	var buf []byte
	data := NewData(false)

	append_ := func(b []byte, index uint32, kind FrameKind) {
		posn := es.Offset{Infile: int64(len(buf))}
		buf = append(buf, b...)
		err := data.Remember(index, posn, len(b), kind, 0)
		assert.Equal(t, nil, err)
	}

	append_(segSeqHdr, 0, KindSeqHeader)
	for i, f := range segFrames {
		append_(f, uint32(i*10), KindI)
	}

	return data, es.NewFileSource(bytes.NewReader(buf))
}

// catalog里I帧在0/10/20/30/40，freq=2时倒放输出40、20、0，
// 每帧之前带上它需要的sequence header（变了才重发）
func TestOutputInReverseEs(t *testing.T) {
	data, src := buildCatalog(t)

	var out bytes.Buffer
	w := &Writer{
		Src:   src,
		Data:  data,
		Freq:  2,
		EsOut: &out,
	}
	err := w.OutputInReverse()
	assert.Equal(t, nil, err)

	expected := append([]byte{}, segSeqHdr...)
	expected = append(expected, segFrames[4]...)
	expected = append(expected, segFrames[2]...)
	expected = append(expected, segFrames[0]...)
	assert.Equal(t, expected, out.Bytes())

	assert.Equal(t, uint32(3), data.PicturesWritten)
	// 最后写出的是catalog里位置1的条目（第一个I）
	assert.Equal(t, 1, data.FirstWritten)
}

func TestOutputInReverseAll(t *testing.T) {
	data, src := buildCatalog(t)

	var out bytes.Buffer
	w := &Writer{
		Src:   src,
		Data:  data,
		Freq:  0,
		EsOut: &out,
	}
	err := w.OutputInReverse()
	assert.Equal(t, nil, err)

	// freq=0输出全部锚点，位置严格递减
	expected := append([]byte{}, segSeqHdr...)
	for i := len(segFrames) - 1; i >= 0; i-- {
		expected = append(expected, segFrames[i]...)
	}
	assert.Equal(t, expected, out.Bytes())
	assert.Equal(t, uint32(5), data.PicturesWritten)
}

func TestOutputInReverseTs(t *testing.T) {
	data, src := buildCatalog(t)

	var out bytes.Buffer
	w := &Writer{
		Src:        src,
		Data:       data,
		Freq:       0,
		TsWriter:   ts.NewWriter(&out),
		VideoPid:   ts.DefaultPidVideo,
		StreamId:   0xe0,
		StreamType: ts.StreamTypeMpeg2Video,
		Tsid:       ts.DefaultTsid,
		ProgramNum: ts.DefaultProgramNumber,
		PmtPid:     ts.DefaultPidPmt,
	}
	err := w.OutputInReverse()
	assert.Equal(t, nil, err)

	// 全是完整TS包，都以0x47开头
	b := out.Bytes()
	assert.Equal(t, 0, len(b)%ts.PacketSize)
	for i := 0; i < len(b); i += ts.PacketSize {
		assert.Equal(t, byte(0x47), b[i])
	}
}

func TestNoData(t *testing.T) {
	data := NewData(true)
	var out bytes.Buffer
	w := &Writer{
		Src:   es.NewFileSource(bytes.NewReader(nil)),
		Data:  data,
		EsOut: &out,
	}
	assert.Equal(t, ErrNoData, w.OutputInReverse())

	// 只有sequence header条目也算没数据
	_ = data.Remember(0, es.Offset{}, 4, KindSeqHeader, 0)
	assert.Equal(t, ErrNoData, w.OutputInReverse())
}

func TestRememberMonotonic(t *testing.T) {
	data := NewData(false)
	err := data.Remember(1, es.Offset{Infile: 100}, 10, KindI, 0)
	assert.Equal(t, nil, err)
	err = data.Remember(2, es.Offset{Infile: 50}, 10, KindI, 0)
	assert.Equal(t, ErrReverse, err)
}
